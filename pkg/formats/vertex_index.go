package formats

import (
	"slices"
	"sort"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// vertexKey holds the raw source indices of one face corner, one per layout
// component in layout order. Unused trailing entries stay zero.
type vertexKey [geometry.MaxComponents]uint32

// less compares the first n entries lexicographically.
func (k *vertexKey) less(other *vertexKey, n int) bool {
	for i := 0; i < n; i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

func (k *vertexKey) equal(other *vertexKey, n int) bool {
	for i := 0; i < n; i++ {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

type indexEntry struct {
	key  vertexKey
	slot uint32
}

// vertexIndex maps corner keys to vertex buffer slots for the mesh being
// built. Entries are kept sorted by key.
type vertexIndex struct {
	width   int // key entries in use
	entries []indexEntry
}

func newVertexIndex(width int) *vertexIndex {
	return &vertexIndex{width: width}
}

// lookupOrInsert returns the slot already assigned to key, or calls create to
// append a new vertex and records the slot it returns. If create reports
// failure nothing is recorded and ok is false.
func (x *vertexIndex) lookupOrInsert(key vertexKey, create func() (uint32, bool)) (slot uint32, ok bool) {
	// upper bound: first entry greater than key
	pos := sort.Search(len(x.entries), func(i int) bool {
		return key.less(&x.entries[i].key, x.width)
	})
	if pos > 0 && x.entries[pos-1].key.equal(&key, x.width) {
		return x.entries[pos-1].slot, true
	}

	slot, ok = create()
	if !ok {
		return 0, false
	}
	x.entries = slices.Insert(x.entries, pos, indexEntry{key: key, slot: slot})
	return slot, true
}

func (x *vertexIndex) size() int {
	return len(x.entries)
}

// reset forgets all keys but keeps the allocation for the next mesh.
func (x *vertexIndex) reset() {
	x.entries = x.entries[:0]
}
