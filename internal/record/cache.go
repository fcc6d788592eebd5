// Package record provides case-insensitive field resolution over loosely
// typed JSON records, backed by a bounded process-wide cache, plus typed
// parameter extractors that never fail on absence or shape mismatch.
package record

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Record is an incoming JSON object as decoded by encoding/json.
type Record = map[string]interface{}

const defaultMaxEntries = 4096

// FieldCache maps a record's identity to a per-record name map
// (lower-cased field name → canonical field name). Entries are immutable
// after insertion; when the entry count exceeds the ceiling the whole
// generation is swapped for an empty one, so in-flight readers never see a
// partially cleared structure.
type FieldCache struct {
	maxEntries int64
	gen        atomic.Pointer[cacheGen]
	hits       atomic.Uint64
	misses     atomic.Uint64
}

type cacheGen struct {
	m    sync.Map // uint64 → map[string]string
	size atomic.Int64
}

// NewFieldCache creates a cache that holds at most maxEntries name maps.
// A non-positive ceiling selects the default.
func NewFieldCache(maxEntries int) *FieldCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c := &FieldCache{maxEntries: int64(maxEntries)}
	c.gen.Store(&cacheGen{})
	return c
}

// DefaultCache is the process-wide cache used by the package-level lookup
// and extractor functions.
var DefaultCache = NewFieldCache(defaultMaxEntries)

// Resolve returns the value of the named field, matching case-insensitively.
// Absence is a normal outcome, not an error.
func (c *FieldCache) Resolve(rec Record, name string) (interface{}, bool) {
	// Exact-name match is the fast path; never touches the cache.
	if v, ok := rec[name]; ok {
		return v, true
	}
	if len(rec) == 0 {
		return nil, false
	}

	key := strings.ToLower(name)
	id := identity(rec)
	gen := c.gen.Load()

	if entry, ok := gen.m.Load(id); ok {
		names := entry.(map[string]string)
		if canon, ok := names[key]; ok {
			// Guard against identity collisions between distinct records:
			// the mapped canonical name must still resolve on this record.
			if v, ok := rec[canon]; ok {
				c.hits.Add(1)
				return v, true
			}
			gen.m.Delete(id)
			gen.size.Add(-1)
		} else if len(names) == len(rec) {
			// Name map matches this record's shape and the field is not in
			// it: genuinely absent.
			c.hits.Add(1)
			return nil, false
		} else {
			gen.m.Delete(id)
			gen.size.Add(-1)
		}
	}

	c.misses.Add(1)
	names := buildNameMap(rec)
	c.insert(id, names)

	if canon, ok := names[key]; ok {
		v, ok := rec[canon]
		return v, ok
	}
	return nil, false
}

// CanonicalName reports the field's actual casing in the record.
func (c *FieldCache) CanonicalName(rec Record, name string) (string, bool) {
	if _, ok := rec[name]; ok {
		return name, true
	}
	key := strings.ToLower(name)
	for canon := range rec {
		if strings.ToLower(canon) == key {
			return canon, true
		}
	}
	return "", false
}

// Stats returns the cumulative hit and miss counters.
func (c *FieldCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached name maps in the current generation.
func (c *FieldCache) Len() int {
	return int(c.gen.Load().size.Load())
}

func (c *FieldCache) insert(id uint64, names map[string]string) {
	gen := c.gen.Load()
	if gen.size.Load() >= c.maxEntries {
		// Replace the whole generation rather than evicting incrementally;
		// a lost race means another writer already swapped.
		c.gen.CompareAndSwap(gen, &cacheGen{})
		gen = c.gen.Load()
	}
	if _, loaded := gen.m.LoadOrStore(id, names); !loaded {
		gen.size.Add(1)
	}
}

// identity hashes the record's field-name set. Two records with the same
// field names (any values) share a name map, which is exactly the data the
// map carries.
func identity(rec Record) uint64 {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func buildNameMap(rec Record) map[string]string {
	names := make(map[string]string, len(rec))
	for k := range rec {
		names[strings.ToLower(k)] = k
	}
	return names
}

// Lookup resolves a field against the process-wide cache.
func Lookup(rec Record, name string) (interface{}, bool) {
	return DefaultCache.Resolve(rec, name)
}
