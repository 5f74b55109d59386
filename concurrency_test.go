package diskpool

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 5 (concurrent bump): 100 goroutines bump keys 0..99
// concurrently, then draining via TryEvict 100 times returns exactly
// that key set, regardless of interleaving.
func TestConcurrentBumpDrainsExactKeySet(t *testing.T) {
	for _, newPolicy := range []func() Policy{
		func() Policy { return NewLRUPolicy() },
		func() Policy { return NewClockPolicy() },
	} {
		p := newPolicy()
		var wg sync.WaitGroup
		for i := int64(0); i < 100; i++ {
			wg.Add(1)
			go func(k int64) {
				defer wg.Done()
				p.Bump(k)
			}(i)
		}
		wg.Wait()

		require.Equal(t, 100, p.Len())

		got := make([]int64, 0, 100)
		for {
			k, ok := p.TryEvict()
			if !ok {
				break
			}
			got = append(got, k)
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

		want := make([]int64, 100)
		for i := range want {
			want[i] = int64(i)
		}
		assert.Equal(t, want, got)
	}
}

// Concurrent leases of distinct pages against a small pool run the
// miss path in parallel without any data race (run with -race to
// catch latch/table violations). The file is fresh, so only pages
// inside the preallocated range load; the rest fail with a short read
// and are skipped. The check is that the resident count stays within
// the rental headroom.
func TestConcurrentLeaseDistinctPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, testPageSize, 4, NewLRUPolicy())
	require.NoError(t, err)
	defer m.Dispose()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			buf, err := m.Lease(ctx, id, LatchRead)
			if err != nil {
				return
			}
			_ = buf[0]
			_ = m.Return(id, LatchRead)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Stats().ResidentFrames, rentalCapacity(4))
}

// Concurrent misses on the *same* page must all observe a resident
// frame afterward and must not race on installing it (singleflight
// coalescing, spec §4.4's "retry on race").
func TestConcurrentLeaseSamePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, testPageSize, 4, NewLRUPolicy())
	require.NoError(t, err)
	defer m.Dispose()

	ctx := context.Background()
	var wg sync.WaitGroup
	bufs := make([][]byte, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			buf, err := m.Lease(ctx, 1, LatchRead)
			require.NoError(t, err)
			bufs[idx] = buf
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(bufs); i++ {
		assert.Same(t, &bufs[0][0], &bufs[i][0])
	}
	for range bufs {
		require.NoError(t, m.Return(1, LatchRead))
	}
	assert.Equal(t, 1, m.Stats().ResidentFrames)
}
