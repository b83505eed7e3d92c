package disa

import "github.com/wwylele/disafs-go/vfile"

// hashSeed is the ad-hoc parent-seeded rotational XOR constant from
// spec §4.10/§9: re-implementers must preserve this bit-for-bit, since
// it determines bucket placement of existing on-disk entries.
const hashSeed uint32 = 0x091A2B3C

// hashTableBucket computes the bucket for (parent, name), grounded on
// GetHashTableBucket in metadata_table.cpp.
func hashTableBucket(name Name, parent uint32, bucketCount uint32) uint32 {
	h := parent ^ hashSeed
	for i := 0; i < 4; i++ {
		h = (h >> 1) | (h << 31)
		h ^= uint32(name[i*4])
		h ^= uint32(name[i*4+1]) << 8
		h ^= uint32(name[i*4+2]) << 16
		h ^= uint32(name[i*4+3]) << 24
	}
	return h % bucketCount
}

// metaTable is the shared skeleton of DirectoryTable/FileTable: a
// flat entry table of fixed entrySize records plus a separate
// bucket-indexed hash table for (parent, name) lookup. Grounded on
// the MetadataTable<EntrySize> template in metadata_table.cpp. Slot 0
// is always the sentinel holding {current_count, max_count, ...,
// free_list_head} (spec §3); no entry is ever stored there.
type metaTable struct {
	entries        vfile.File
	hash           vfile.File
	entrySize      int64
	hashBucketCnt  uint32
}

func newMetaTable(entries, hash vfile.File, entrySize int64) metaTable {
	return metaTable{
		entries:       entries,
		hash:          hash,
		entrySize:     entrySize,
		hashBucketCnt: uint32(hash.FileSize() / 4),
	}
}

func (t *metaTable) getU32(index uint32, offset int64) uint32 {
	return leU32(t.entries.ReadAt(int64(index)*t.entrySize+offset, 4))
}

func (t *metaTable) setU32(index uint32, offset int64, v uint32) {
	buf := make([]byte, 4)
	putLeU32(buf, v)
	t.entries.WriteAt(int64(index)*t.entrySize+offset, buf)
}

func (t *metaTable) getU64(index uint32, offset int64) uint64 {
	raw := t.entries.ReadAt(int64(index)*t.entrySize+offset, 8)
	return uint64(leU32(raw[0:4])) | uint64(leU32(raw[4:8]))<<32
}

func (t *metaTable) setU64(index uint32, offset int64, v uint64) {
	buf := make([]byte, 8)
	putLeU32(buf[0:4], uint32(v))
	putLeU32(buf[4:8], uint32(v>>32))
	t.entries.WriteAt(int64(index)*t.entrySize+offset, buf)
}

func (t *metaTable) getName(index uint32, offset int64) Name {
	var n Name
	copy(n[:], t.entries.ReadAt(int64(index)*t.entrySize+offset, 16))
	return n
}

func (t *metaTable) setName(index uint32, offset int64, n Name) {
	t.entries.WriteAt(int64(index)*t.entrySize+offset, n[:])
}

// Field offsets shared by both entry layouts (spec §3).
const (
	offParent  = 0x00
	offName    = 0x04
	offNext    = 0x14
)

func (t *metaTable) collisionOffset() int64 { return t.entrySize - 4 }

func (t *metaTable) GetParent(i uint32) uint32 { return t.getU32(i, offParent) }
func (t *metaTable) SetParent(i uint32, v uint32) { t.setU32(i, offParent, v) }
func (t *metaTable) GetName(i uint32) Name { return t.getName(i, offName) }
func (t *metaTable) SetName(i uint32, n Name) { t.setName(i, offName, n) }
func (t *metaTable) GetNext(i uint32) uint32 { return t.getU32(i, offNext) }
func (t *metaTable) SetNext(i uint32, v uint32) { t.setU32(i, offNext, v) }

func (t *metaTable) getCollision(i uint32) uint32 { return t.getU32(i, t.collisionOffset()) }
func (t *metaTable) setCollision(i uint32, v uint32) { t.setU32(i, t.collisionOffset(), v) }

// Slot 0 sentinel fields: current_count and max_count alias offParent
// and offName's first 4 bytes (0x0, 0x4); next_dummy aliases the
// collision field. Encapsulated behind distinct accessors per the
// design note in spec §9 to avoid conflating "hash collision next"
// with "next free slot".
func (t *metaTable) getCurrentCount() uint32 { return t.getU32(0, 0x0) }
func (t *metaTable) setCurrentCount(v uint32) { t.setU32(0, 0x0, v) }
func (t *metaTable) getMaxCount() uint32      { return t.getU32(0, 0x4) }
func (t *metaTable) getNextDummy(i uint32) uint32 { return t.getU32(i, t.collisionOffset()) }
func (t *metaTable) setNextDummy(i uint32, v uint32) { t.setU32(i, t.collisionOffset(), v) }

// FindIndex looks up (name, parent) via the hash bucket's collision
// chain, returning 0 if absent. Grounded on
// MetadataTable::FindIndex.
func (t *metaTable) FindIndex(name Name, parent uint32) uint32 {
	if parent == 0 {
		panic("disa: parent index 0 is never valid")
	}
	bucket := hashTableBucket(name, parent, t.hashBucketCnt)
	current := t.getBucketValue(bucket)
	for current != 0 {
		if t.GetParent(current) == parent && t.GetName(current) == name {
			return current
		}
		current = t.getCollision(current)
	}
	return 0
}

func (t *metaTable) getBucketValue(bucket uint32) uint32 {
	return leU32(t.hash.ReadAt(int64(bucket)*4, 4))
}

func (t *metaTable) setBucketValue(bucket uint32, v uint32) {
	buf := make([]byte, 4)
	putLeU32(buf, v)
	t.hash.WriteAt(int64(bucket)*4, buf)
}

// allocate claims a slot: first from the free-slot chain, else the
// next never-used slot if capacity remains. Returns 0 if exhausted
// (spec §7 kind 4).
func (t *metaTable) allocate() uint32 {
	freeIndex := t.getNextDummy(0)
	if freeIndex == 0 {
		curCount := t.getCurrentCount()
		maxCount := t.getMaxCount()
		if curCount == maxCount {
			return 0
		}
		t.setCurrentCount(curCount + 1)
		return curCount
	}
	nextFree := t.getNextDummy(freeIndex)
	t.setNextDummy(0, nextFree)
	return freeIndex
}

// free returns index to the free-slot chain, zeroing its user fields
// by copying slot 0's raw bytes over it (matching Free in
// metadata_table.cpp), then threading it onto the chain via the
// collision field.
func (t *metaTable) free(index uint32) {
	if index == 0 {
		panic("disa: cannot free slot 0")
	}
	dummy := t.entries.ReadAt(0, int(t.entrySize))
	t.entries.WriteAt(int64(index)*t.entrySize, dummy)
	t.setNextDummy(0, index)
}

func (t *metaTable) addToHashTable(index uint32) {
	if index == 0 {
		panic("disa: cannot hash-link slot 0")
	}
	parent := t.GetParent(index)
	name := t.GetName(index)
	bucket := hashTableBucket(name, parent, t.hashBucketCnt)
	collision := t.getBucketValue(bucket)
	t.setCollision(index, collision)
	t.setBucketValue(bucket, index)
}

func (t *metaTable) removeFromHashTable(index uint32) {
	if index == 0 {
		panic("disa: cannot hash-unlink slot 0")
	}
	parent := t.GetParent(index)
	name := t.GetName(index)
	bucket := hashTableBucket(name, parent, t.hashBucketCnt)
	curCollision := t.getBucketValue(bucket)
	if curCollision == index {
		t.setBucketValue(bucket, t.getCollision(index))
		return
	}
	for {
		if curCollision == 0 {
			panic("disa: entry not found in its own hash bucket")
		}
		next := t.getCollision(curCollision)
		if next == index {
			t.setCollision(curCollision, t.getCollision(index))
			return
		}
		curCollision = next
	}
}

// Add allocates a slot, fills parent/name, and links it into the
// hash bucket. Returns 0 if capacity is exhausted.
func (t *metaTable) Add(name Name, parent uint32) uint32 {
	if parent == 0 {
		panic("disa: parent index 0 is never valid")
	}
	index := t.allocate()
	if index == 0 {
		return 0
	}
	t.SetParent(index, parent)
	t.SetName(index, name)
	t.addToHashTable(index)
	return index
}

// Remove unlinks index from its hash bucket and frees its slot.
func (t *metaTable) Remove(index uint32) {
	if index == 0 {
		panic("disa: cannot remove slot 0")
	}
	t.removeFromHashTable(index)
	t.free(index)
}

// Move unlinks, mutates (parent, name), and relinks into the new
// bucket.
func (t *metaTable) Move(index uint32, name Name, parent uint32) {
	if index == 0 {
		panic("disa: cannot move slot 0")
	}
	t.removeFromHashTable(index)
	t.SetName(index, name)
	t.SetParent(index, parent)
	t.addToHashTable(index)
}

// ListSiblings walks the singly-linked next_sibling chain starting at
// head, returning the names in order.
func (t *metaTable) ListSiblings(head uint32) []Name {
	var result []Name
	for head != 0 {
		result = append(result, t.GetName(head))
		head = t.GetNext(head)
	}
	return result
}
