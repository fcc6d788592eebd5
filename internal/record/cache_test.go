package record

import (
	"fmt"
	"testing"
)

func TestResolve_ExactMatch(t *testing.T) {
	c := NewFieldCache(16)
	rec := Record{"Status": "active"}

	v, ok := c.Resolve(rec, "Status")
	if !ok || v != "active" {
		t.Fatalf("Resolve = (%v, %v)", v, ok)
	}

	// The exact-name fast path must not touch the cache.
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("stats = (%d, %d), want (0, 0)", hits, misses)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	c := NewFieldCache(16)
	rec := Record{"CustomerName": "Alice", "OrderID": 7}

	for _, probe := range []string{"customername", "CUSTOMERNAME", "customerName"} {
		v, ok := c.Resolve(rec, probe)
		if !ok || v != "Alice" {
			t.Errorf("Resolve(%q) = (%v, %v), want Alice", probe, v, ok)
		}
	}

	// First probe misses and populates; the rest hit the cached name map.
	hits, misses := c.Stats()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}

func TestResolve_Absent(t *testing.T) {
	c := NewFieldCache(16)
	rec := Record{"Status": "active"}

	if _, ok := c.Resolve(rec, "Region"); ok {
		t.Error("absent field resolved")
	}
	// A second probe for a different absent name answers from the cached
	// shape without rebuilding.
	if _, ok := c.Resolve(rec, "Country"); ok {
		t.Error("absent field resolved")
	}
	if hits, _ := c.Stats(); hits != 1 {
		t.Errorf("hits = %d, want 1 for shape-complete absence", hits)
	}
}

func TestResolve_EmptyRecord(t *testing.T) {
	c := NewFieldCache(16)
	if _, ok := c.Resolve(Record{}, "Anything"); ok {
		t.Error("empty record resolved a field")
	}
	if _, ok := c.Resolve(nil, "Anything"); ok {
		t.Error("nil record resolved a field")
	}
}

func TestResolve_NullValue(t *testing.T) {
	c := NewFieldCache(16)
	rec := Record{"Comment": nil}

	v, ok := c.Resolve(rec, "comment")
	if !ok {
		t.Fatal("explicit null should be found")
	}
	if v != nil {
		t.Errorf("value = %v, want nil", v)
	}
}

func TestCacheOverflow(t *testing.T) {
	c := NewFieldCache(4)

	// Distinct field-name sets, each occupying one cache entry. The probe
	// name differs in case so the lookup goes through the cache.
	for i := 0; i < 10; i++ {
		rec := Record{fmt.Sprintf("Field%d", i): i}
		if _, ok := c.Resolve(rec, fmt.Sprintf("field%d", i)); !ok {
			t.Fatalf("record %d did not resolve", i)
		}
	}

	// The generation swap keeps the entry count at or below the ceiling.
	if c.Len() > 4 {
		t.Errorf("Len = %d, want <= 4 after overflow", c.Len())
	}

	// Lookups still work after the swap.
	rec := Record{"Field9": 9}
	if v, ok := c.Resolve(rec, "FIELD9"); !ok || v != 9 {
		t.Errorf("post-overflow Resolve = (%v, %v)", v, ok)
	}
}

func TestResolve_IdentityCollisionGuard(t *testing.T) {
	c := NewFieldCache(16)

	// Same field-name set, so both records share one cached name map.
	first := Record{"Status": "active"}
	second := Record{"Status": "closed"}

	if v, _ := c.Resolve(first, "status"); v != "active" {
		t.Errorf("first = %v", v)
	}
	if v, _ := c.Resolve(second, "status"); v != "closed" {
		t.Errorf("second = %v, cached canonical name must re-resolve per record", v)
	}
}

func TestCanonicalName(t *testing.T) {
	c := NewFieldCache(16)
	rec := Record{"CustomerName": "Alice"}

	if name, ok := c.CanonicalName(rec, "customername"); !ok || name != "CustomerName" {
		t.Errorf("CanonicalName = (%q, %v)", name, ok)
	}
	if _, ok := c.CanonicalName(rec, "missing"); ok {
		t.Error("missing field reported a canonical name")
	}
}

func TestNewFieldCache_DefaultCeiling(t *testing.T) {
	c := NewFieldCache(0)
	if c.maxEntries != defaultMaxEntries {
		t.Errorf("maxEntries = %d, want %d", c.maxEntries, defaultMaxEntries)
	}
}
