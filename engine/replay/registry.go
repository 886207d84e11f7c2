package replay

import (
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

/**
 * @brief Per-category mapping from content hash to created handle. Slots are
 * boxed so their address never moves: work items capture the slot pointer at
 * enqueue time and workers publish into it later. During replay the driver
 * goroutine is the only one inserting; workers only write through slot
 * pointers handed to them, so the map itself needs no lock.
 */
type HandleRegistry struct {
	slots map[metadata.Hash]*metadata.Handle
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		slots: make(map[metadata.Hash]*metadata.Handle),
	}
}

// GetOrInsert returns the stable slot for hash, creating a null slot on first
// use.
func (hr *HandleRegistry) GetOrInsert(hash metadata.Hash) *metadata.Handle {
	if slot, exists := hr.slots[hash]; exists {
		return slot
	}
	slot := new(metadata.Handle)
	hr.slots[hash] = slot
	return slot
}

func (hr *HandleRegistry) Len() int {
	return len(hr.slots)
}

// Each visits every entry in ascending hash order.
func (hr *HandleRegistry) Each(visit func(hash metadata.Hash, handle metadata.Handle)) {
	hashes := make([]metadata.Hash, 0, len(hr.slots))
	for hash := range hr.slots {
		hashes = append(hashes, hash)
	}
	slices.Sort(hashes)
	for _, hash := range hashes {
		visit(hash, *hr.slots[hash])
	}
}

// DrainAndDestroy hands every non-null handle to the destructor exactly once
// and nulls the slot. Called at teardown, after the worker pool has been
// joined.
func (hr *HandleRegistry) DrainAndDestroy(destroy func(handle metadata.Handle)) {
	hr.Each(func(hash metadata.Hash, handle metadata.Handle) {
		if handle != metadata.NullHandle {
			destroy(handle)
		}
		*hr.slots[hash] = metadata.NullHandle
	})
}
