package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	l := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(ClaimKey(1))
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len())
}

func TestLocker_IndependentKeys(t *testing.T) {
	l := New()

	unlock := l.Lock(BidKey(1))
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := l.Lock(BidKey(2))
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "independent key blocked")
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "bid:7", BidKey(7))
	assert.Equal(t, "claim:7", ClaimKey(7))
	assert.NotEqual(t, BidKey(7), ClaimKey(7))
	assert.Equal(t, "issue:7", IssueKey(7))
}
