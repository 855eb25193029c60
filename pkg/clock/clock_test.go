package clock

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpForSendStartsFromZero(t *testing.T) {
	var c Clock
	assert.Equal(t, int64(0), c.Value(), "new clock should start at 0")
	assert.Equal(t, int64(0), c.BumpForSend(), "first send is stamped with the pre-increment value")
	assert.Equal(t, int64(1), c.Value())
}

func TestBumpForSendMonotonicallyIncreases(t *testing.T) {
	var c Clock
	prev := int64(-1)
	for i := 0; i < 100; i++ {
		ts := c.BumpForSend()
		require.Greater(t, ts, prev, "send %d", i)
		prev = ts
	}
	assert.Equal(t, int64(100), c.Value())
}

func TestBumpForReceiveMaxPlusOne(t *testing.T) {
	var c Clock
	for i := 0; i < 5; i++ {
		c.BumpForSend()
	}

	// max(5, 10)+1 = 11
	ts, err := c.BumpForReceive(10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), ts)

	// max(11, 3)+1 = 12
	ts, err = c.BumpForReceive(3)
	require.NoError(t, err)
	assert.Equal(t, int64(12), ts)
}

func TestBumpForReceiveEqualTimestamp(t *testing.T) {
	var c Clock
	ts, err := c.BumpForReceive(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ts)

	ts, err = c.BumpForReceive(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ts)
}

func TestBumpForReceiveNegative(t *testing.T) {
	var c Clock
	_, err := c.BumpForReceive(-1)
	require.ErrorIs(t, err, ErrNegativeTimestamp)
	assert.Equal(t, int64(0), c.Value(), "rejected input must not move the clock")
	assert.Equal(t, uint64(0), c.Updates())
}

func TestMixedSequenceStrictlyIncreasing(t *testing.T) {
	var c Clock
	readings := []int64{c.Value()}
	received := []int64{0, 7, 2, 2, 30, 1}
	for _, r := range received {
		c.BumpForSend()
		readings = append(readings, c.Value())
		_, err := c.BumpForReceive(r)
		require.NoError(t, err)
		readings = append(readings, c.Value())
	}
	for i := 1; i < len(readings); i++ {
		assert.Greater(t, readings[i], readings[i-1], "reading %d", i)
	}
	assert.Equal(t, uint64(2*len(received)), c.Updates())
}

func TestConcurrentSendsAreDistinct(t *testing.T) {
	var c Clock
	const goroutines = 50
	const perGoroutine = 200

	stamps := make(chan int64, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				stamps <- c.BumpForSend()
			}
		}()
	}
	wg.Wait()
	close(stamps)

	var got []int64
	for ts := range stamps {
		got = append(got, ts)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, ts := range got {
		require.Equal(t, int64(i), ts, "timestamps must be exactly 0..N-1 with no repeats")
	}
	assert.Equal(t, int64(goroutines*perGoroutine), c.Value())
}

func TestConcurrentReceivesNoLostUpdates(t *testing.T) {
	var c Clock
	goroutines := 4 * runtime.GOMAXPROCS(0)
	const perGoroutine = 5000

	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < perGoroutine; i++ {
				// A stale timestamp: each receive must add exactly 1.
				if _, err := c.BumpForReceive(0); err != nil {
					t.Error(err)
					return
				}
				if i%64 == 0 {
					runtime.Gosched()
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	total := goroutines * perGoroutine
	assert.Equal(t, int64(total), c.Value())
	assert.Equal(t, uint64(total), c.Updates())
}

func TestBumpForReceiveRetriesAfterInterleavedUpdate(t *testing.T) {
	var c Clock
	loaded := make(chan struct{})
	proceed := make(chan struct{})
	var paused atomic.Bool
	testHookReceiveLoaded = func() {
		if paused.CompareAndSwap(false, true) {
			close(loaded)
			<-proceed
		}
	}
	t.Cleanup(func() { testHookReceiveLoaded = nil })

	first := make(chan int64, 1)
	go func() {
		ts, err := c.BumpForReceive(0)
		if err != nil {
			t.Error(err)
		}
		first <- ts
	}()

	// The first receive has read 0 and is parked before writing.
	<-loaded
	ts, err := c.BumpForReceive(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ts)
	close(proceed)

	assert.Equal(t, int64(2), <-first, "the parked receive must build on the interleaved one")
	assert.Equal(t, int64(2), c.Value())
	assert.Equal(t, uint64(2), c.Updates())
}

func TestConcurrentMixedCausality(t *testing.T) {
	var c Clock
	const goroutines = 16
	const perGoroutine = 300

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if g%2 == 0 {
					c.BumpForSend()
					continue
				}
				recv := int64(i * 3)
				ts, err := c.BumpForReceive(recv)
				if err != nil {
					t.Error(err)
					return
				}
				if ts <= recv {
					t.Errorf("receive of %d produced %d", recv, ts)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	total := uint64(goroutines * perGoroutine)
	assert.Equal(t, total, c.Updates())
	assert.GreaterOrEqual(t, c.Value(), int64(total))
}

func TestTotalOrderLess_DifferentTimestamps(t *testing.T) {
	assert.True(t, TotalOrderLess(1, 1, 2, 0), "expected (1,1) < (2,0)")
	assert.False(t, TotalOrderLess(2, 0, 1, 1), "expected (2,0) NOT < (1,1)")
}

func TestTotalOrderLess_SameTimestamp_TieBreakByProcess(t *testing.T) {
	assert.True(t, TotalOrderLess(5, 0, 5, 1))
	assert.False(t, TotalOrderLess(5, 1, 5, 0))
}

func TestTotalOrderLess_Equal(t *testing.T) {
	assert.False(t, TotalOrderLess(5, 0, 5, 0), "strict less")
}
