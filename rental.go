package diskpool

import (
	"context"
	"math"
)

// bufferRental is the fixed-size pool of page_size byte slices that
// frames rent from and return to. Sized at ceil(frameCapacity*1.25)
// per spec §3/§4.4, so a burst of concurrent misses never fails
// admission for want of a buffer: the headroom absorbs the transient
// overshoot that eviction has not yet caught up with.
type bufferRental struct {
	pageSize int
	slots    chan []byte
}

func rentalCapacity(frameCapacity int) int {
	return int(math.Ceil(float64(frameCapacity) * 1.25))
}

func newBufferRental(pageSize, frameCapacity int) *bufferRental {
	n := rentalCapacity(frameCapacity)
	slots := make(chan []byte, n)
	for i := 0; i < n; i++ {
		slots <- make([]byte, pageSize)
	}
	return &bufferRental{pageSize: pageSize, slots: slots}
}

// rent blocks until a buffer is available or ctx is cancelled.
func (r *bufferRental) rent(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-r.slots:
		return buf, nil
	case <-ctx.Done():
		return nil, ErrCancelled
	}
}

// put returns buf to the pool. buf must not be retained by the caller
// after this call (spec §5 "a buffer returned must not be retained
// elsewhere").
func (r *bufferRental) put(buf []byte) {
	if len(buf) != r.pageSize {
		// Defensive: a buffer of the wrong size must never re-enter the
		// pool, since every renter assumes exactly page_size bytes.
		buf = make([]byte, r.pageSize)
	}
	select {
	case r.slots <- buf:
	default:
		// Pool is at its sized capacity; this can only happen if a
		// buffer was put back twice, which is a caller bug. Drop it
		// rather than block or panic.
	}
}
