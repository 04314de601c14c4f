// linktracker_test.go -- linearizable RecordOrGet under concurrent callers

package engine

import (
	"sync"
	"testing"
)

func TestLinkTrackerFirstWins(t *testing.T) {
	assert := newAsserter(t)

	lt := NewLinkTracker()
	key := LinkKey{Dev: 1, Rdev: 0, Ino: 42}

	p1 := lt.RecordOrGet(key, "/dst/a")
	assert(p1.First, "expected first caller to win")

	p2 := lt.RecordOrGet(key, "/dst/b")
	assert(!p2.First, "expected second caller to lose")
	assert(p2.Existing == "/dst/a", "exp existing /dst/a, saw %s", p2.Existing)

	assert(lt.Len() == 1, "exp 1 tracked key, saw %d", lt.Len())
}

// TestLinkTrackerConcurrentRace pits many goroutines against the same
// key; exactly one may observe First == true, regardless of scheduling.
func TestLinkTrackerConcurrentRace(t *testing.T) {
	assert := newAsserter(t)

	lt := NewLinkTracker()
	key := LinkKey{Dev: 7, Rdev: 0, Ino: 99}

	const n = 256
	results := make([]Placement, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = lt.RecordOrGet(key, "/dst/contender")
		}(i)
	}
	wg.Wait()

	firsts := 0
	for _, r := range results {
		if r.First {
			firsts++
		}
	}
	assert(firsts == 1, "exp exactly 1 winner, saw %d", firsts)
}

func TestLinkTrackerResetStartsNewEpoch(t *testing.T) {
	assert := newAsserter(t)

	lt := NewLinkTracker()
	key := LinkKey{Dev: 1, Rdev: 0, Ino: 1}

	p1 := lt.RecordOrGet(key, "/dst/a")
	assert(p1.First, "expected first caller to win")

	lt.Reset()
	assert(lt.Len() == 0, "exp empty tracker after reset")

	p2 := lt.RecordOrGet(key, "/dst/b")
	assert(p2.First, "expected first caller to win again after reset")
}
