// Command diskpoolctl is host glue around the buffer manager: it is
// not part of the core this module specifies, just a small driver
// that opens a page file and exercises a lease/write/flush cycle so
// the package can be poked at from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/storagecore/diskpool"
)

func main() {
	var (
		path     = flag.String("file", "pages.db", "path to the backing page file")
		pageSize = flag.Int("page-size", 4096, "page size in bytes")
		frames   = flag.Int("frames", 128, "resident frame capacity")
		policy   = flag.String("policy", "lru", "replacement policy: lru or clock")
		pageID   = flag.Int64("page", 1, "page id to write and flush")
	)
	flag.Parse()

	if err := run(*path, *pageSize, *frames, *policy, *pageID); err != nil {
		log.Fatal(err)
	}
}

func run(path string, pageSize, frames int, policyName string, pageID int64) error {
	var policy diskpool.Policy
	switch policyName {
	case "clock":
		policy = diskpool.NewClockPolicy()
	case "lru":
		policy = diskpool.NewLRUPolicy()
	default:
		return fmt.Errorf("unknown policy %q", policyName)
	}

	m, err := diskpool.Open(path, pageSize, frames, policy)
	if err != nil {
		return err
	}
	defer m.Dispose()

	ctx := context.Background()
	buf, err := m.Lease(ctx, pageID, diskpool.LatchWrite)
	if err != nil {
		return err
	}
	copy(buf, []byte(fmt.Sprintf("diskpoolctl touched page %d\n", pageID)))

	if _, err := m.MarkDirty(pageID); err != nil {
		return err
	}
	if _, err := m.Flush(pageID); err != nil {
		return err
	}
	if err := m.Return(pageID, diskpool.LatchWrite); err != nil {
		return err
	}

	stats := m.Stats()
	fmt.Fprintf(os.Stdout, "resident=%d dirty=%d policy_len=%d\n",
		stats.ResidentFrames, stats.DirtyDepth, stats.PolicyLen)
	return nil
}
