package chainclient

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteQueueSerializesSameChain(t *testing.T) {
	q := NewWriteQueue()
	var concurrent int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(1, func() error {
				n := atomic.AddInt32(&concurrent, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&concurrent, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent, "writes on the same chain must never overlap")
}

func TestWriteQueueAllowsDifferentChainsInParallel(t *testing.T) {
	q := NewWriteQueue()
	var wg sync.WaitGroup
	start := time.Now()

	for _, chainID := range []int64{1, 2} {
		chainID := chainID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(chainID, func() error {
				time.Sleep(30 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 60*time.Millisecond, "different chains should not serialize")
}
