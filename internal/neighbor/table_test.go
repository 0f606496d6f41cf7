package neighbor

import (
	"testing"
	"time"
)

func TestStoreUpserts(t *testing.T) {
	tab := NewTable()

	tab.Store(2, -65, false, false, false)
	info, ok := tab.Get(2)
	if !ok {
		t.Fatal("entry missing after Store")
	}
	if info.RSSI != -65 || info.HasInternetIndirect {
		t.Fatalf("unexpected entry: %+v", info)
	}

	// Second store replaces every field, last write wins.
	tab.Store(2, -70, false, true, true)
	info, _ = tab.Get(2)
	if info.RSSI != -70 || !info.HasInternetIndirect || !info.Visited {
		t.Fatalf("upsert did not replace fields: %+v", info)
	}
	if tab.Len() != 1 {
		t.Fatalf("duplicate entry for same id, len=%d", tab.Len())
	}
}

func TestStoreClearsLock(t *testing.T) {
	tab := NewTable()
	tab.Store(5, -60, false, false, true)
	tab.Store(5, -60, false, false, false)
	if info, _ := tab.Get(5); info.Visited {
		t.Fatal("Store with visited=false must release the path lock")
	}
}

func TestRemoveStaleBoundary(t *testing.T) {
	tab := NewTable()
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	clock := base
	tab.SetClock(func() time.Time { return clock })

	tab.Store(1, -60, false, false, false) // seen at t=0
	clock = base.Add(1 * time.Second)
	tab.Store(2, -60, false, false, false) // seen at t=1s

	// Sweep at t=30s: neighbour 1 is exactly 30s old (not *more* than the
	// threshold), neighbour 2 is 29s old. Both survive.
	if n := tab.RemoveStale(base.Add(30*time.Second), DefaultStaleAfter); n != 0 {
		t.Fatalf("removed %d entries at the boundary", n)
	}
	if tab.Len() != 2 {
		t.Fatalf("len=%d after boundary sweep", tab.Len())
	}

	// Sweep at t=31s: neighbour 1 is now 31s silent and goes; neighbour 2
	// was refreshed at 1s so it is 30s old and stays.
	if n := tab.RemoveStale(base.Add(31*time.Second), DefaultStaleAfter); n != 1 {
		t.Fatalf("removed %d entries, want 1", n)
	}
	if _, ok := tab.Get(1); ok {
		t.Fatal("stale neighbour 1 still present")
	}
	if _, ok := tab.Get(2); !ok {
		t.Fatal("fresh neighbour 2 was removed")
	}
}

func TestRefreshKeepsLearnedState(t *testing.T) {
	tab := NewTable()
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := base
	tab.SetClock(func() time.Time { return clock })

	// Learned via ACK and then locked by a routing decision.
	tab.Store(2, -65, false, true, false)
	tab.SetVisited(2, true)

	// A later liveness beacon stamps LastSeen/RSSI and nothing else.
	clock = base.Add(10 * time.Second)
	tab.Refresh(2, -58)

	info, _ := tab.Get(2)
	if info.RSSI != -58 || !info.LastSeen.Equal(clock) {
		t.Fatalf("refresh did not restamp: %+v", info)
	}
	if !info.HasInternetIndirect {
		t.Fatal("refresh erased the learned indirect-internet bit")
	}
	if !info.Visited {
		t.Fatal("refresh cleared the path lock")
	}
}

func TestRefreshInsertsUnknownNeighbour(t *testing.T) {
	tab := NewTable()
	tab.Refresh(7, -70)
	info, ok := tab.Get(7)
	if !ok {
		t.Fatal("refresh did not create an entry for a new neighbour")
	}
	if info.RSSI != -70 || info.HasInternetDirect || info.HasInternetIndirect || info.Visited {
		t.Fatalf("new entry not zeroed: %+v", info)
	}
}

func TestUpdateInternetKeepsLock(t *testing.T) {
	tab := NewTable()
	tab.Store(4, -65, false, false, true)

	tab.UpdateInternet(4, -62, true, false)

	info, _ := tab.Get(4)
	if !info.HasInternetDirect || info.HasInternetIndirect {
		t.Fatalf("internet bits not applied: %+v", info)
	}
	if !info.Visited {
		t.Fatal("internet update cleared the path lock")
	}
}

func TestSetVisitedKeepsLastSeen(t *testing.T) {
	tab := NewTable()
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := base
	tab.SetClock(func() time.Time { return clock })

	tab.Store(3, -55, false, false, false)
	clock = base.Add(10 * time.Second)
	tab.SetVisited(3, true)

	info, _ := tab.Get(3)
	if !info.Visited {
		t.Fatal("SetVisited did not lock")
	}
	if !info.LastSeen.Equal(base) {
		t.Fatalf("SetVisited stamped LastSeen: %v", info.LastSeen)
	}
}
