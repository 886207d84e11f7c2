package replay

import (
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueueFIFO(t *testing.T) {
	wq := newWorkQueue()

	for i := 0; i < 8; i++ {
		wq.push(workItem{hash: metadata.Hash(i)})
	}

	for i := 0; i < 8; i++ {
		item, ok := wq.popBlocking()
		require.True(t, ok)
		assert.Equal(t, metadata.Hash(i), item.hash)
		wq.markCompleted()
	}

	queued, completed := wq.counts()
	assert.Equal(t, uint64(8), queued)
	assert.Equal(t, uint64(8), completed)
}

func TestWorkQueueBarrier(t *testing.T) {
	wq := newWorkQueue()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok := wq.popBlocking()
				if !ok {
					return
				}
				time.Sleep(time.Millisecond)
				wq.markCompleted()
			}
		}()
	}

	for i := 0; i < 32; i++ {
		wq.push(workItem{hash: metadata.Hash(i)})
	}
	wq.barrier()

	queued, completed := wq.counts()
	assert.Equal(t, queued, completed)
	assert.Equal(t, uint64(32), queued)

	// Counters keep increasing monotonically across a second round.
	for i := 0; i < 16; i++ {
		wq.push(workItem{hash: metadata.Hash(i)})
	}
	wq.barrier()

	queued, completed = wq.counts()
	assert.Equal(t, queued, completed)
	assert.Equal(t, uint64(48), queued)

	wq.shutdown()
	wg.Wait()
}

func TestWorkQueueBarrierOnIdleQueue(t *testing.T) {
	wq := newWorkQueue()

	done := make(chan struct{})
	go func() {
		wq.barrier()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("barrier blocked on an idle queue")
	}
}

func TestWorkQueueShutdownDiscardsQueuedItems(t *testing.T) {
	wq := newWorkQueue()

	wq.push(workItem{hash: 1})
	wq.push(workItem{hash: 2})
	wq.shutdown()

	_, ok := wq.popBlocking()
	assert.False(t, ok)
}

func TestWorkQueueShutdownWakesAllWaiters(t *testing.T) {
	wq := newWorkQueue()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := wq.popBlocking()
			assert.False(t, ok)
		}()
	}

	// Give the waiters a moment to block on the condition variable.
	time.Sleep(10 * time.Millisecond)
	wq.shutdown()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not observe shutdown")
	}
}
