package diskpool

import (
	"io"
	"os"
	"sync"
)

// PageSize and frame capacity are the two configuration knobs spec §6
// names. PageSize is fixed for the life of a file; there is no
// package-level default because every store is explicit about it.

// pageStore is the backing-store contract the buffer manager depends
// on. It exists as an interface (rather than the manager holding a
// concrete *store) so tests can substitute a store that stalls or
// fails deterministically, e.g. to exercise cancellation mid-read.
type pageStore interface {
	readPage(pageID int64, out []byte) error
	writePage(pageID int64, buf []byte) error
	close() error
}

var _ pageStore = (*store)(nil)

// store is the backing store adapter from spec §4.1: one open file,
// one mutual-exclusion primitive serializing seek+read/write because
// the file cursor (via Seek) is shared state, a random-access hint
// applied at open time, write-through by syncing after every page
// write, and exclusive-write /
// shared-read semantics best-effort enforced via flock on platforms
// that support it.
type store struct {
	mu       sync.Mutex
	f        *os.File
	pageSize int
}

// openStore opens path for random-access read/write, requests
// preallocation of pageSize*frameCapacity bytes and a random-access
// hint (both best-effort, platform-specific — see disk_unix.go /
// disk_other.go), and attempts to take an exclusive advisory write
// lock so concurrent diskpool processes fail fast rather than
// silently interleaving writes.
func openStore(path string, pageSize, frameCapacity int) (*store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, pageErr(ErrIo, 0, 0, err)
	}

	if err := lockExclusive(f); err != nil {
		f.Close()
		return nil, pageErr(ErrIo, 0, 0, err)
	}

	// Best-effort: a filesystem that rejects preallocation or advice
	// degrades to a plain sparse file rather than failing open, per
	// spec §4.1 "if the file system supports it".
	_ = preallocate(f, int64(pageSize)*int64(frameCapacity))
	_ = adviseRandom(f)

	return &store{f: f, pageSize: pageSize}, nil
}

func (s *store) offset(pageID int64) int64 {
	return (pageID - 1) * int64(s.pageSize)
}

// withStoreLatch is the scoped-acquisition primitive from spec §4.1:
// it guarantees release on all exit paths, including a panic
// unwinding through op.
func (s *store) withStoreLatch(op func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return op()
}

// readPage seeks to (pageID-1)*page_size and reads exactly page_size
// bytes into out. A short read, or a seek that lands somewhere other
// than the expected offset, fails with ErrShortIo.
func (s *store) readPage(pageID int64, out []byte) error {
	if len(out) != s.pageSize {
		return pageErr(ErrIo, pageID, 0, io.ErrShortBuffer)
	}
	offset := s.offset(pageID)
	return s.withStoreLatch(func() error {
		got, err := s.f.Seek(offset, io.SeekStart)
		if err != nil {
			return pageErr(ErrIo, pageID, offset, err)
		}
		if got != offset {
			return pageErr(ErrShortIo, pageID, offset, nil)
		}
		n, err := io.ReadFull(s.f, out)
		if err != nil {
			return pageErr(ErrShortIo, pageID, offset, err)
		}
		if n != s.pageSize {
			return pageErr(ErrShortIo, pageID, offset, nil)
		}
		return nil
	})
}

// writePage seeks to (pageID-1)*page_size and writes exactly
// page_size bytes from buf, then flushes write-through to the
// device.
func (s *store) writePage(pageID int64, buf []byte) error {
	if len(buf) != s.pageSize {
		return pageErr(ErrIo, pageID, 0, io.ErrShortWrite)
	}
	offset := s.offset(pageID)
	return s.withStoreLatch(func() error {
		got, err := s.f.Seek(offset, io.SeekStart)
		if err != nil {
			return pageErr(ErrIo, pageID, offset, err)
		}
		if got != offset {
			return pageErr(ErrShortIo, pageID, offset, nil)
		}
		n, err := s.f.Write(buf)
		if err != nil {
			return pageErr(ErrIo, pageID, offset, err)
		}
		if n != s.pageSize {
			return pageErr(ErrShortIo, pageID, offset, nil)
		}
		if err := s.f.Sync(); err != nil {
			return pageErr(ErrIo, pageID, offset, err)
		}
		return nil
	})
}

func (s *store) close() error {
	return s.f.Close()
}
