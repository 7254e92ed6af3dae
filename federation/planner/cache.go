package planner

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// PlanCache remembers planned trees by the shape of their input. Entries
// expire after a TTL and the least recently used entry is evicted when
// the cache is full. A nil *PlanCache is a valid, always-missing cache.
type PlanCache struct {
	mu      sync.Mutex
	entries map[planKey]*list.Element
	lru     *list.List // front is most recently used

	maxSize int
	ttl     time.Duration

	hits, misses int64
}

// planKey is the sha256 of an input tree and the options that shape its plan
type planKey [sha256.Size]byte

type cacheEntry struct {
	key     planKey
	planned *plan.Tree
	stored  time.Time
}

// NewPlanCache creates a cache of at most maxSize plans (default 1000)
// kept for ttl (default 5 minutes)
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{
		entries: make(map[planKey]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns a copy of the plan cached for t under opts. Callers own
// the returned tree.
func (c *PlanCache) Get(t *plan.Tree, opts PlannerOptions) (*plan.Tree, bool) {
	if c == nil {
		return nil, false
	}
	key := keyOf(t, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if time.Since(e.stored) > c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return e.planned.Clone(), true
}

// Put stores a copy of the plan produced for t under opts
func (c *PlanCache) Put(t, planned *plan.Tree, opts PlannerOptions) {
	if c == nil || planned == nil {
		return
	}
	key := keyOf(t, opts)
	entry := &cacheEntry{key: key, planned: planned.Clone(), stored: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.lru.MoveToFront(el)
		return
	}
	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.lru.PushFront(entry)
}

// Clear drops every plan and resets the statistics
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[planKey]*list.Element)
	c.lru.Init()
	c.hits, c.misses = 0, 0
}

// Stats returns the hit and miss counts and the number of cached plans
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.lru.Len()
}

// keyOf hashes the formatted tree, the node IDs with the full content of
// their modifiers and leaf inputs, the lock set and the enabled rewrite
// steps. Formatting abbreviates Values rows, so modifiers go in by Key.
// Node IDs are part of the key: a cached plan is only reused where the
// caller's handles address the same nodes.
func keyOf(t *plan.Tree, opts PlannerOptions) planKey {
	h := sha256.New()
	fmt.Fprintf(h, "tree:%s\n", t.String())
	if root := t.Root(); root != plan.NoNode {
		t.Walk(root, func(id plan.NodeID) bool {
			fmt.Fprintf(h, "%d:%s[%s]", id, t.Kind(id), modifierKeys(t.Modifiers(id)))
			if cq := t.CQuery(id); cq != nil {
				fmt.Fprintf(h, "in%s opt%s", cq.RequiredInputs, cq.OptionalInputs)
			}
			h.Write([]byte{';'})
			return true
		})
	}
	fmt.Fprintf(h, "\nlocked:%v\n", t.Locked())
	fmt.Fprintf(h, "steps:%t,%t,%t,%t,%t,%t,%t",
		opts.EnableCartesianDetection,
		opts.EnableCartesianDistribution,
		opts.EnableUnionDistribution,
		opts.EnableFilterPushdown,
		opts.EnableJoinOrdering,
		opts.EnableFilterJoinInteraction,
		opts.EnableFinalPushdown)

	var key planKey
	h.Sum(key[:0])
	return key
}

// modifierKeys lists the membership keys of mods in a fixed order
func modifierKeys(mods query.ModifierSet) string {
	keys := make([]string, 0, mods.Len())
	for _, m := range mods.All() {
		keys = append(keys, m.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
