package reload

import (
	"testing"

	"github.com/swarmguard/acdat"
	"github.com/swarmguard/acdat/internal/automatoncache"
)

func TestHashEntriesIsOrderIndependent(t *testing.T) {
	a := []acdat.Entry{{Key: "he", Value: 1}, {Key: "she", Value: 2}}
	b := []acdat.Entry{{Key: "she", Value: 2}, {Key: "he", Value: 1}}
	if hashEntries(a) != hashEntries(b) {
		t.Fatalf("expected order-independent hashing to agree")
	}
}

func TestHashEntriesDetectsChange(t *testing.T) {
	a := []acdat.Entry{{Key: "he", Value: 1}}
	b := []acdat.Entry{{Key: "he", Value: 2}}
	if hashEntries(a) == hashEntries(b) {
		t.Fatalf("expected a value change to change the hash")
	}
}

func TestBuildOrRestoreUsesCacheOnSecondCall(t *testing.T) {
	cache, err := automatoncache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("automatoncache.Open: %v", err)
	}
	defer cache.Close()

	entries := []acdat.Entry{{Key: "he", Value: "H"}, {Key: "she", Value: "S"}}

	var hits, misses int
	w := &Watcher{
		ignoreCase: false,
		cache:      cache,
		onCacheResult: func(hit bool) {
			if hit {
				hits++
			} else {
				misses++
			}
		},
	}

	first, err := w.buildOrRestore(entries)
	if err != nil {
		t.Fatalf("buildOrRestore (first): %v", err)
	}
	if misses != 1 || hits != 0 {
		t.Fatalf("after first call: hits=%d misses=%d, want 0/1", hits, misses)
	}

	// A second Watcher over the same cache simulates a process restart:
	// the pattern set is unchanged so the rebuild should be served from
	// Badger instead of re-running the double array construction.
	w2 := &Watcher{
		ignoreCase: false,
		cache:      cache,
		onCacheResult: func(hit bool) {
			if hit {
				hits++
			} else {
				misses++
			}
		},
	}
	second, err := w2.buildOrRestore(entries)
	if err != nil {
		t.Fatalf("buildOrRestore (second): %v", err)
	}
	if hits != 1 || misses != 1 {
		t.Fatalf("after second call: hits=%d misses=%d, want 1/1", hits, misses)
	}

	if first.Count() != second.Count() {
		t.Fatalf("Count() mismatch: %d vs %d", first.Count(), second.Count())
	}
	if v, ok := second.ValueOf("she"); !ok || v != "S" {
		t.Fatalf("ValueOf(she) = %v, %v, want S, true", v, ok)
	}
}
