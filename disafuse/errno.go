package disafuse

import (
	"syscall"

	"github.com/wwylele/disafs-go/disa"
)

// mkdirErrno/rmdirErrno/unlinkErrno/lookupErrno/renameErrno translate disa.FsResult
// into the POSIX errno the calling operation expects, per the table
// in spec §7. The mapping is per-operation because the same
// FsResult means different things to different syscalls (DirExists
// is EEXIST for mkdir but EISDIR for unlink).
func mkdirErrno(res disa.FsResult) syscall.Errno {
	switch res {
	case disa.ResultOK:
		return 0
	case disa.ResultInvalidPath, disa.ResultPathNotFound:
		return syscall.ENOENT
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	case disa.ResultDirExists, disa.ResultFileExists:
		return syscall.EEXIST
	default:
		return syscall.EIO
	}
}

func rmdirErrno(res disa.FsResult) syscall.Errno {
	switch res {
	case disa.ResultOK:
		return 0
	case disa.ResultInvalidPath, disa.ResultPathNotFound, disa.ResultNotFound:
		return syscall.ENOENT
	case disa.ResultFileInPath, disa.ResultFileExists:
		return syscall.ENOTDIR
	default:
		return syscall.EIO
	}
}

func unlinkErrno(res disa.FsResult) syscall.Errno {
	switch res {
	case disa.ResultOK:
		return 0
	case disa.ResultInvalidPath, disa.ResultPathNotFound, disa.ResultNotFound:
		return syscall.ENOENT
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	case disa.ResultDirExists:
		return syscall.EISDIR
	default:
		return syscall.EIO
	}
}

func lookupErrno(res disa.FsResult) syscall.Errno {
	switch res {
	case disa.ResultOK:
		return 0
	case disa.ResultInvalidPath, disa.ResultPathNotFound, disa.ResultNotFound:
		return syscall.ENOENT
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	default:
		return syscall.EIO
	}
}

// renameErrno covers the plain failure modes of the final, now-strict
// MoveFile/MoveDir call once Rename has already resolved and (if
// needed) removed the destination: the destination-type dispatch
// itself — DirExists/FileExists meaning EISDIR, ENOTDIR or ENOTEMPTY
// depending on which endpoint is which type — happens in Rename
// directly, matching main.cpp's rename() switch, not here.
func renameErrno(res disa.FsResult) syscall.Errno {
	switch res {
	case disa.ResultOK:
		return 0
	case disa.ResultInvalidPath, disa.ResultPathNotFound, disa.ResultNotFound:
		return syscall.ENOENT
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	default:
		return syscall.EIO
	}
}
