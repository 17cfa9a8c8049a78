package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFixedClock_StaysPut(t *testing.T) {
	clock := NewFixedClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestFixedClock_ConvertsToUTC(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	clock := NewFixedClock(time.Date(2025, 6, 1, 7, 0, 0, 0, zone))
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	clock := NewFixedClock(epoch)

	clock.Advance(36 * time.Hour)
	assert.Equal(t, "2025-06-03T00:00:00Z", clock.Now().Format(time.RFC3339))

	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(epoch)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(numGoroutines*time.Second), clock.Now())
}
