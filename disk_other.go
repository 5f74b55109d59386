//go:build !unix

package diskpool

import "os"

// Non-Unix platforms (notably Windows, following the array-db
// example's file.go/db_windows.go split) get no preallocation or
// access-pattern advisory API in the standard library; both are
// genuinely best-effort per spec §4.1, so they no-op here rather than
// failing store construction.
func preallocate(f *os.File, size int64) error { return nil }

func adviseRandom(f *os.File) error { return nil }

func lockExclusive(f *os.File) error { return nil }
