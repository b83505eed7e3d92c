// Command disafuse mounts a 3DS DISA save container as a read/write
// POSIX filesystem. It follows the go-fuse examples' own main-package
// shape (flag-based options, fs.Mount, server.Wait) — see
// example/statfs and example/root-ino in the go-fuse distribution.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/wwylele/disafs-go/disa"
	"github.com/wwylele/disafs-go/disafuse"
	"github.com/wwylele/disafs-go/keys"
	"github.com/wwylele/disafs-go/vfile"
)

func main() {
	log.SetFlags(log.Lmicroseconds)

	debug := flag.Bool("debug", false, "print FUSE debugging messages.")
	movableSed := flag.String("movable-sed", "", "movable.sed path; if set, the source is treated as an SD-encrypted save and decrypted with the derived device key.")
	sdSubPath := flag.String("sd-subpath", "", "the save's subpath under the SD card root, used to derive its AES-CTR IV (required with -movable-sed).")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] SOURCE MOUNTPOINT\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	source, mountpoint := flag.Arg(0), flag.Arg(1)

	disk, err := vfile.OpenDisk(source)
	if err != nil {
		log.Fatalf("disafuse: opening %s: %v", source, err)
	}
	defer disk.Close()

	var container vfile.File = disk
	if *movableSed != "" {
		if *sdSubPath == "" {
			log.Fatalf("disafuse: -sd-subpath is required with -movable-sed")
		}
		device, err := keys.LoadMovableSeed(*movableSed)
		if err != nil {
			log.Fatalf("disafuse: loading movable.sed: %v", err)
		}
		// boot9.bin KeyX values are console firmware secrets with no
		// fixed public constant; a real deployment supplies them out
		// of band. Left as a TODO since no pack example retrieves them.
		var boot9 keys.Boot9KeyX
		ctrKey := boot9.CTRKey(device)
		iv := keys.SDSaveIV(*sdSubPath)
		container = vfile.NewAesCtrFile(disk, ctrKey[:], iv[:])
	}

	d := disa.OpenContainer(container)
	root := disafuse.NewRoot(d)

	opts := &fs.Options{}
	opts.Debug = *debug
	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		log.Fatalf("disafuse: mount failed: %v", err)
	}
	log.Printf("mounted %s at %s", source, mountpoint)
	server.Wait()
}
