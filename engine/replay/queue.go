package replay

import (
	"sync"

	"github.com/spaghettifunk/relic/engine/containers"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/**
 * @brief One unit of deferred creation. Exactly one of the config pointers is
 * set, matching kind. The descriptor is read-only and outlives the item;
 * output is the deserializer's slot, registrySlot the registry's. Both are
 * stable addresses.
 */
type workItem struct {
	hash metadata.Hash
	kind metadata.ResourceType

	shaderModule *metadata.ShaderModuleConfig
	graphics     *metadata.GraphicsPipelineConfig
	compute      *metadata.ComputePipelineConfig

	output       *metadata.Handle
	registrySlot *metadata.Handle
}

/**
 * @brief A single FIFO shared across all deferred categories. One mutex
 * guards the ring and both counters; the two condition variables share it.
 * queuedCount and completedCount only ever increase, and are equal exactly
 * when no work is queued or in flight.
 */
type workQueue struct {
	mu            sync.Mutex
	workAvailable *sync.Cond
	workDone      *sync.Cond

	items          *containers.RingQueue[workItem]
	queuedCount    uint64
	completedCount uint64
	shuttingDown   bool
}

func newWorkQueue() *workQueue {
	wq := &workQueue{
		items: containers.NewRingQueue[workItem](64),
	}
	wq.workAvailable = sync.NewCond(&wq.mu)
	wq.workDone = sync.NewCond(&wq.mu)
	return wq
}

func (wq *workQueue) push(item workItem) {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	wq.items.Enqueue(item)
	wq.queuedCount++
	wq.workAvailable.Signal()
}

// popBlocking returns the next item, blocking while the queue is empty. The
// second return is false once shutdown has been requested; any items still
// queued at that point are discarded.
func (wq *workQueue) popBlocking() (workItem, bool) {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	for !wq.shuttingDown && wq.items.IsEmpty() {
		wq.workAvailable.Wait()
	}
	if wq.shuttingDown {
		return workItem{}, false
	}

	item, _ := wq.items.Dequeue()
	return item, true
}

func (wq *workQueue) markCompleted() {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	wq.completedCount++
	if wq.completedCount == wq.queuedCount {
		// Makes sense to signal the driver now.
		wq.workDone.Signal()
	}
}

// barrier blocks until every pushed item has completed.
func (wq *workQueue) barrier() {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	for wq.queuedCount != wq.completedCount {
		wq.workDone.Wait()
	}
}

func (wq *workQueue) shutdown() {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	wq.shuttingDown = true
	wq.workAvailable.Broadcast()
}

func (wq *workQueue) counts() (queued, completed uint64) {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.queuedCount, wq.completedCount
}
