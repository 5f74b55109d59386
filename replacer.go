package diskpool

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Policy is the replacement-policy contract from spec §4.2: an
// ordered set of page ids supporting bump (mark used), evict-victim,
// and evict-specific. Implementations serialize all three operations
// behind a single policy-wide lock and never block on I/O.
type Policy interface {
	// Bump promotes key to the most-recently-used position,
	// inserting it if absent. Idempotent: repeated bumps of the same
	// key never produce duplicate entries.
	Bump(key int64)

	// TryEvict chooses and removes a victim per the policy's order.
	// The second return is false when the policy holds no keys.
	TryEvict() (int64, bool)

	// TryEvictKey removes a specific key if present, reporting
	// whether it was found.
	TryEvictKey(key int64) bool

	// Len reports how many keys the policy currently tracks.
	Len() int
}

// unboundedLRUSize sizes the underlying simplelru.LRU large enough
// that its own capacity-triggered eviction never fires: the buffer
// manager, not the policy, owns capacity enforcement (spec §4.5). The
// policy is used purely as an ordered-set-with-index.
const unboundedLRUSize = 1 << 30

// LRUPolicy is the LRU replacement policy: a doubly-linked list of
// keys with a hash index from key to node, built on the teacher's
// hashicorp/golang-lru dependency rather than a hand-rolled
// container/list, since simplelru.LRU.Add already gives the exact
// "promote if present, else insert at head" semantics bump requires.
type LRUPolicy struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[int64, struct{}]
}

var _ Policy = (*LRUPolicy)(nil)

// NewLRUPolicy constructs an LRU policy.
func NewLRUPolicy() *LRUPolicy {
	lru, err := simplelru.NewLRU[int64, struct{}](unboundedLRUSize, nil)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// unboundedLRUSize never is.
		panic(err)
	}
	return &LRUPolicy{lru: lru}
}

func (p *LRUPolicy) Bump(key int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Add(key, struct{}{})
}

func (p *LRUPolicy) TryEvict() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, _, ok := p.lru.RemoveOldest()
	if !ok {
		return 0, false
	}
	return key, true
}

func (p *LRUPolicy) TryEvictKey(key int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Remove(key)
}

func (p *LRUPolicy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}
