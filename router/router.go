// Package router implements the federated routing and referral cache: a
// longest-prefix map from Path to the backend referral that owns that
// subtree, and the batch-splitting algorithm that uses it to fan a
// heterogeneous batch out to the correct backends while preserving
// per-request ordering.
package router

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/path"
)

// Referral describes which backend cluster owns the subtree rooted at Path.
type Referral struct {
	Path  path.Path
	TTL   time.Duration
	Addrs []string
}

// Pathed is implemented by request operation types so the router can
// classify them without knowing their concrete shape. A pathless operation
// (Clear, Heartbeat) returns ("", false) and always routes to the default
// backend.
type Pathed interface {
	Path() (path.Path, bool)
}

type cacheEntry struct {
	expiry   time.Time
	referral Referral
}

// Router is an ordered path -> referral cache with TTL-based eviction and
// longest-prefix lookup.
type Router struct {
	mu     sync.Mutex
	cached map[path.Path]cacheEntry
}

// New returns an empty Router.
func New() *Router {
	return &Router{cached: make(map[path.Path]cacheEntry)}
}

// AddReferral installs r, keyed on its path, overwriting any previous entry
// for that path. Expiry is computed from now + r.TTL.
func (r *Router) AddReferral(ref Referral) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached[ref.Path] = cacheEntry{expiry: time.Now().Add(ref.TTL), referral: ref}
}

// GetReferral returns the exact-path cached referral for p, if any. It does
// not evict expired entries (routing does that lazily); callers that need a
// freshness guarantee should check TTL themselves against time.Now().
func (r *Router) GetReferral(p path.Path) (Referral, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cached[p]
	if !ok {
		return Referral{}, false
	}
	return e.referral, true
}

// Len returns the number of cached referrals.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cached)
}

// SubBatch is one bucket produced by RouteBatch: either the items destined
// for a specific referral's backend, or (Default == true) the items
// destined for the default backend.
type SubBatch[T any] struct {
	Backend path.Path
	Default bool
	Items   []backend.Indexed[T]
}

// RouteBatch classifies each operation in batch by its path's longest
// matching referral (or the default backend if none applies), preserving
// ascending-index order within each resulting sub-batch. Expired entries
// encountered during the scan are evicted before RouteBatch returns.
func RouteBatch[T Pathed](r *Router, batch []T) []SubBatch[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	keys := make([]path.Path, 0, len(r.cached))
	for k := range r.cached {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	order := make([]path.Path, 0, 4)
	seen := make(map[path.Path]bool, 4)
	buckets := make(map[path.Path][]backend.Indexed[T], 4)
	var defaultBucket []backend.Indexed[T]
	gc := make(map[path.Path]bool)

	for idx, op := range batch {
		item := backend.Indexed[T]{Index: idx, Value: op}
		p, ok := op.Path()
		if !ok {
			defaultBucket = append(defaultBucket, item)
			continue
		}

		matchKey, matched, expired := longestPrefixMatch(keys, r.cached, p, now)
		switch {
		case matched:
			buckets[matchKey] = append(buckets[matchKey], item)
			if !seen[matchKey] {
				seen[matchKey] = true
				order = append(order, matchKey)
			}
		case expired:
			gc[matchKey] = true
			defaultBucket = append(defaultBucket, item)
		default:
			defaultBucket = append(defaultBucket, item)
		}
	}

	for k := range gc {
		delete(r.cached, k)
	}

	out := make([]SubBatch[T], 0, len(order)+1)
	if len(defaultBucket) > 0 {
		out = append(out, SubBatch[T]{Default: true, Items: defaultBucket})
	}
	for _, k := range order {
		out = append(out, SubBatch[T]{Backend: k, Items: buckets[k]})
	}
	return out
}

// longestPrefixMatch walks keys (sorted ascending) in descending order
// starting from the greatest key <= p, stopping at the first
// component-aligned prefix of p it finds (keys rejected for alignment are
// skipped and the walk goes on to shorter ones, but a found-and-expired
// entry is terminal: it is not superseded by a shorter still-valid
// referral).
func longestPrefixMatch(keys []path.Path, cached map[path.Path]cacheEntry, p path.Path, now time.Time) (key path.Path, matched bool, expired bool) {
	hi := sort.Search(len(keys), func(i int) bool { return keys[i] > p })
	for i := hi - 1; i >= 0; i-- {
		k := keys[i]
		if !isPrefixAligned(string(k), string(p)) {
			continue
		}
		entry := cached[k]
		if now.Before(entry.expiry) {
			return k, true, false
		}
		return k, false, true
	}
	return "", false, false
}

// isPrefixAligned reports whether p is a component-aligned prefix of q: p
// equals q, or q continues immediately past p with a '/'. This rules out
// "/foo" matching "/foobar".
func isPrefixAligned(p, q string) bool {
	if p == q {
		return true
	}
	if p == "/" {
		return strings.HasPrefix(q, "/")
	}
	return strings.HasPrefix(q, p+"/")
}
