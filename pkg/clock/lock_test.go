package clock_test

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/librescoot/ssp/pkg/clock"
)

func TestTimedMutexExcludesConcurrentLockers(t *testing.T) {
	m := clock.NewTimedMutex()
	assert.Assert(t, m.Lock(time.Second))

	locked := make(chan bool, 1)
	go func() {
		locked <- m.Lock(30 * time.Millisecond)
	}()

	assert.Assert(t, !<-locked, "lock held elsewhere should time out rather than succeed")

	m.Unlock()
	assert.Assert(t, m.Lock(time.Second))
	m.Unlock()
}

func TestTimedMutexUnlockOfUnlockedPanics(t *testing.T) {
	m := clock.NewTimedMutex()
	assert.Assert(t, m.Lock(time.Second))
	m.Unlock()

	defer func() {
		r := recover()
		assert.Assert(t, r != nil, "double unlock should panic")
	}()
	m.Unlock()
}

func TestElapsedWrapsAroundUint32Boundary(t *testing.T) {
	var mark uint32 = 0xFFFFFFF0
	var now uint32 = 0x00000010 // wrapped past zero, 32 ticks later
	assert.Assert(t, clock.Elapsed(now, mark, 30*time.Millisecond))
	assert.Assert(t, !clock.Elapsed(now, mark, 40*time.Millisecond))
}
