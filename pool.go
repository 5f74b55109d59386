// Package diskpool implements a fixed-capacity, concurrency-safe
// cache of fixed-size pages backed by a single file, with pluggable
// eviction policies (LRU, CLOCK) and per-page reader/writer latching.
package diskpool

import (
	"context"
	"strconv"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager is the buffer manager from spec §4.4: the frame table, the
// replacement policy, the store adapter, the rental buffer pool and
// the dirty queue, wired together behind the public operations in
// spec §6.
type Manager struct {
	pageSize      int
	frameCapacity int

	store   pageStore
	table   *frameTable
	policy  Policy
	rental  *bufferRental
	dirty   *dirtyQueue
	loading singleflight.Group

	log     *zap.Logger
	metrics *Metrics

	disposed atomic.Bool
}

// Open creates (or reopens) the buffer manager backed by the file at
// path, per spec §6's create(path, page_size, frame_capacity, policy).
func Open(path string, pageSize, frameCapacity int, policy Policy, opts ...Option) (*Manager, error) {
	if pageSize <= 0 || frameCapacity <= 0 {
		return nil, ErrInvalidArg
	}
	if policy == nil {
		policy = NewLRUPolicy()
	}

	s, err := openStore(path, pageSize, frameCapacity)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		pageSize:      pageSize,
		frameCapacity: frameCapacity,
		store:         s,
		table:         newFrameTable(),
		policy:        policy,
		rental:        newBufferRental(pageSize, frameCapacity),
		dirty:         newDirtyQueue(),
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lease is spec §4.4's lease(page_id, latch_kind). It resolves id to
// a frame via the table (hit), or loads from the store into a rented
// buffer and installs a new frame (miss), then acquires the
// requested latch on the resulting frame and bumps the policy.
func (m *Manager) Lease(ctx context.Context, pageID int64, kind LatchKind) ([]byte, error) {
	if m.disposed.Load() {
		return nil, ErrDisposed
	}
	if kind == LatchNone {
		return nil, ErrBadLatchRequest
	}

	for {
		if f, ok := m.table.get(pageID); ok {
			err := f.latch.Acquire(ctx, kind)
			if err == errFrameEvicted {
				continue
			}
			if err != nil {
				return nil, err
			}
			m.policy.Bump(pageID)
			m.metrics.observeLease(true)
			return f.buf, nil
		}

		m.metrics.observeLease(false)
		f, err := m.loadAndInstall(ctx, pageID)
		if err != nil {
			return nil, err
		}

		err = f.latch.Acquire(ctx, kind)
		if err == errFrameEvicted {
			continue
		}
		if err != nil {
			return nil, err
		}
		m.policy.Bump(pageID)
		return f.buf, nil
	}
}

// loadAndInstall is the miss path. Concurrent misses for the same
// page id are coalesced by singleflight.Group so only one goroutine
// reads the store and installs the frame; the rest simply wait on the
// same call and receive the installed frame (see SPEC_FULL EXP-7).
func (m *Manager) loadAndInstall(ctx context.Context, pageID int64) (*frame, error) {
	key := strconv.FormatInt(pageID, 10)
	v, err, _ := m.loading.Do(key, func() (interface{}, error) {
		return m.installFrame(ctx, pageID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*frame), nil
}

func (m *Manager) installFrame(ctx context.Context, pageID int64) (*frame, error) {
	buf, err := m.rental.rent(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.readPageCancellable(ctx, pageID, buf); err != nil {
		return nil, err
	}

	if m.table.len() >= m.frameCapacity {
		m.evictOnce()
	}

	f := newFrame(pageID, buf)
	installed, won := m.table.tryAdd(pageID, f)
	if !won {
		// Reachable when an earlier singleflight call for pageID
		// finished installing the frame after this caller's table
		// miss but before its own Do call began: the existing frame
		// is adopted and this buffer goes back to the pool.
		m.rental.put(buf)
		return installed, nil
	}
	m.log.Debug("installed frame", zap.Int64("page_id", pageID))
	m.metrics.setResidentFrames(m.table.len())
	return f, nil
}

// readPageCancellable wraps the (blocking, non-cancellable) store
// read in a goroutine so a caller's context can interrupt the wait.
// On cancellation the in-flight read is left to finish in the
// background and its buffer is returned to the rental pool then,
// never handed back to the canceled caller — satisfying spec
// scenario 6 ("rented buffer returned to the rental pool") without
// ever letting two owners touch the same buffer at once.
func (m *Manager) readPageCancellable(ctx context.Context, pageID int64, buf []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- m.store.readPage(pageID, buf)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.rental.put(buf)
			return err
		}
		return nil
	case <-ctx.Done():
		go func() {
			<-done
			m.rental.put(buf)
		}()
		return ErrCancelled
	}
}

// evictOnce is one eviction attempt per spec §4.5. It takes the
// victim's write latch non-blocking as the atomic "is any latch
// held" test from invariant I2: success means readers == 0 and
// writer == false at that instant, and leaves the caller holding
// exclusive access until the frame is either released back
// (ineligible) or destroyed (evicted).
func (m *Manager) evictOnce() {
	victim, ok := m.policy.TryEvict()
	if !ok {
		return
	}
	f, ok := m.table.get(victim)
	if !ok {
		// Race: the policy had the id, but the frame is already gone.
		// The load proceeds and may itself overshoot capacity briefly
		// (spec §4.5), bounded by the rental pool's 1.25x headroom.
		return
	}

	if !f.latch.TryAcquire(LatchWrite) {
		m.policy.Bump(victim)
		m.metrics.observeEviction("skipped_latched")
		return
	}
	if f.dirty {
		f.latch.Release(LatchWrite)
		m.policy.Bump(victim)
		m.metrics.observeEviction("skipped_dirty")
		return
	}

	f.latch.destroy()
	m.table.remove(victim)
	m.rental.put(f.buf)
	m.metrics.observeEviction("evicted")
	m.metrics.setResidentFrames(m.table.len())
}

// Return releases the latch kind previously obtained by Lease for
// pageID. A non-resident page is a no-op per spec §4.4, except that
// implementations may report NotFound; this one does, since
// invariant I2 means absence here can only be caller error (the
// caller's own latch would have kept the frame resident).
func (m *Manager) Return(pageID int64, kind LatchKind) error {
	if m.disposed.Load() {
		return ErrDisposed
	}
	if kind == LatchNone {
		return ErrBadLatchRequest
	}
	f, ok := m.table.get(pageID)
	if !ok {
		return pageErr(ErrNotFound, pageID, 0, nil)
	}
	f.latch.Release(kind)
	return nil
}

// MarkDirty is spec §4.4's mark_dirty(page_id): the caller must hold
// the frame's write latch (invariant I4). Returns false, not an
// error, when the page is not resident.
func (m *Manager) MarkDirty(pageID int64) (bool, error) {
	if m.disposed.Load() {
		return false, ErrDisposed
	}
	f, ok := m.table.get(pageID)
	if !ok {
		return false, nil
	}
	if !f.latch.HasWriteLatch() {
		return false, pageErr(ErrLatchViolation, pageID, 0, nil)
	}
	f.dirty = true
	m.dirty.push(pageID)
	m.policy.Bump(pageID)
	m.metrics.setDirtyDepth(m.dirty.depth())
	return true, nil
}

// ReadThrough is spec §4.4's bypass path: reads pageID directly into
// a freshly rented buffer without installing a frame or touching the
// policy. The caller owns the buffer's lifetime and must hand it back
// via ReleaseBuffer.
func (m *Manager) ReadThrough(ctx context.Context, pageID int64) ([]byte, error) {
	if m.disposed.Load() {
		return nil, ErrDisposed
	}
	buf, err := m.rental.rent(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.readPageCancellable(ctx, pageID, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReleaseBuffer returns a buffer obtained from ReadThrough to the
// rental pool. Callers must not retain buf after calling this.
func (m *Manager) ReleaseBuffer(buf []byte) {
	m.rental.put(buf)
}

// Flush is spec §4.4's flush(page_id): resolves to a frame and
// delegates to the frame-level flush. Returns false (no error) if
// the page is not resident or not dirty.
func (m *Manager) Flush(pageID int64) (bool, error) {
	if m.disposed.Load() {
		return false, ErrDisposed
	}
	f, ok := m.table.get(pageID)
	if !ok {
		return false, nil
	}
	return m.flushFrame(f)
}

// flushFrame is spec §4.4's flush(frame): precondition is that f is
// dirty and the caller holds its write latch. On I/O failure the
// dirty flag is left set, so the flush is retry-safe.
func (m *Manager) flushFrame(f *frame) (bool, error) {
	if !f.dirty {
		return false, nil
	}
	if !f.latch.HasWriteLatch() {
		return false, pageErr(ErrLatchViolation, f.pageID, 0, nil)
	}
	if err := m.store.writePage(f.pageID, f.buf); err != nil {
		m.log.Warn("flush failed", zap.Int64("page_id", f.pageID), zap.Error(err))
		m.metrics.observeFlush(false)
		return false, err
	}
	f.dirty = false
	m.metrics.observeFlush(true)
	return true, nil
}

// FlushAll is spec §4.4's flush_all(): snapshot the dirty queue, then
// attempt to flush each frame in snapshot order, continuing after
// per-frame failures and aggregating them (no short-circuit). Unlike
// Flush, FlushAll takes each frame's write latch itself for the
// duration of the write-back, since it runs without an external
// caller already holding one (spec §4.5's "a separately scheduled
// writer is acceptable").
func (m *Manager) FlushAll(ctx context.Context) error {
	if m.disposed.Load() {
		return ErrDisposed
	}

	seen := make(map[int64]bool)
	var errs error
	for _, pageID := range m.dirty.snapshot() {
		if seen[pageID] {
			continue
		}
		seen[pageID] = true

		f, ok := m.table.get(pageID)
		if !ok {
			continue
		}
		if err := f.latch.Acquire(ctx, LatchWrite); err != nil {
			if err == errFrameEvicted {
				// Only clean frames are evicted; nothing to write back.
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		_, err := m.flushFrame(f)
		f.latch.Release(LatchWrite)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	m.metrics.setDirtyDepth(m.dirty.depth())
	return errs
}

// Stats is the SPEC_FULL EXP-11 observability extension: a
// point-in-time snapshot that never touches the store latch.
type Stats struct {
	ResidentFrames int
	DirtyDepth     int
	PolicyLen      int
}

func (m *Manager) Stats() Stats {
	return Stats{
		ResidentFrames: m.table.len(),
		DirtyDepth:     m.dirty.depth(),
		PolicyLen:      m.policy.Len(),
	}
}

// Dispose tears the manager down: Lease, Return, MarkDirty,
// ReadThrough, Flush and FlushAll invoked afterward fail with
// ErrDisposed (spec §9's "explicit lifecycle" pattern, subsuming the
// source's throw-if-disposed checks). Stats and ReleaseBuffer do not
// check the lifecycle state.
func (m *Manager) Dispose() error {
	if !m.disposed.CompareAndSwap(false, true) {
		return nil
	}
	return m.store.close()
}
