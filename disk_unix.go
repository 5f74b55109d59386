//go:build unix

package diskpool

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate requests size bytes of backing storage for f (spec §4.1
// "preallocates page_size*frame_capacity bytes if the file system
// supports it"). Fallocate with mode 0 also extends a shorter file to
// size bytes, so pages inside that range read back as zeros before
// they are first written. ENOTSUP/EOPNOTSUPP from
// filesystems that don't implement fallocate (notably some network
// and FUSE filesystems) is swallowed by the caller, which treats
// preallocation as best-effort.
func preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}

// adviseRandom tells the kernel this file is accessed by random page
// offsets, never sequentially, matching the buffer pool's access
// pattern (spec §6 "random-access hints").
func adviseRandom(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}

// lockExclusive takes a non-blocking advisory exclusive lock so a
// second diskpool process opening the same file fails fast instead of
// silently racing writes (spec §4.1 "demands exclusive write").
func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}
