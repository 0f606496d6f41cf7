package routing

import (
	"testing"

	"thor-mesh/internal/neighbor"
)

func TestBestNextHopEmptyTable(t *testing.T) {
	if _, ok := BestNextHop(neighbor.NewTable()); ok {
		t.Fatal("empty table produced a next hop")
	}
}

func TestScoreTiers(t *testing.T) {
	cases := []struct {
		name string
		info neighbor.Info
		want int
	}{
		{"direct goldilocks", neighbor.Info{RSSI: -65, HasInternetDirect: true}, 350},
		{"indirect goldilocks", neighbor.Info{RSSI: -65, HasInternetIndirect: true}, 250},
		{"explore goldilocks", neighbor.Info{RSSI: -65}, 150},
		{"visited goldilocks", neighbor.Info{RSSI: -65, Visited: true}, 60},
		{"explore too near", neighbor.Info{RSSI: -40}, 50},
		{"explore too far", neighbor.Info{RSSI: -95}, 80},
		{"direct too near", neighbor.Info{RSSI: -30, HasInternetDirect: true}, 250},
		{"direct too far", neighbor.Info{RSSI: -100, HasInternetDirect: true}, 280},
		{"near boundary -50 is goldilocks", neighbor.Info{RSSI: -50}, 150},
		{"far boundary -80 is goldilocks", neighbor.Info{RSSI: -80}, 150},
		{"just past near boundary", neighbor.Info{RSSI: -49}, 50},
		{"just past far boundary", neighbor.Info{RSSI: -81}, 80},
	}
	for _, c := range cases {
		if got := Score(c.info); got != c.want {
			t.Fatalf("%s: score=%d want %d", c.name, got, c.want)
		}
	}
}

func TestGradientOrdering(t *testing.T) {
	tab := neighbor.NewTable()
	tab.Store(10, -65, false, false, false) // exploration: 150
	tab.Store(20, -65, false, true, false)  // indirect:    250
	tab.Store(30, -65, true, false, false)  // direct:      350

	hop, ok := BestNextHop(tab)
	if !ok || hop != 30 {
		t.Fatalf("direct gateway not preferred: hop=%d ok=%v", hop, ok)
	}

	tab = neighbor.NewTable()
	tab.Store(10, -65, false, false, false)
	tab.Store(20, -65, false, true, false)
	if hop, _ = BestNextHop(tab); hop != 20 {
		t.Fatalf("indirect not preferred over exploration: hop=%d", hop)
	}

	tab = neighbor.NewTable()
	tab.Store(10, -65, false, false, true)  // visited exploration: 60
	tab.Store(20, -65, false, false, false) // fresh exploration: 150
	if hop, _ = BestNextHop(tab); hop != 20 {
		t.Fatalf("locked path preferred over fresh one: hop=%d", hop)
	}
}

func TestGoldilocksPreference(t *testing.T) {
	tab := neighbor.NewTable()
	tab.Store(1, -40, false, false, false) // too near:   50
	tab.Store(2, -65, false, false, false) // goldilocks: 150
	tab.Store(3, -95, false, false, false) // too far:    80

	hop, ok := BestNextHop(tab)
	if !ok || hop != 2 {
		t.Fatalf("goldilocks neighbour not preferred: hop=%d", hop)
	}

	// Without the goldilocks candidate, too-far beats too-near.
	tab = neighbor.NewTable()
	tab.Store(1, -40, false, false, false)
	tab.Store(3, -95, false, false, false)
	if hop, _ = BestNextHop(tab); hop != 3 {
		t.Fatalf("too-far should outrank too-near: hop=%d", hop)
	}
}

func TestTieBreakAscendingID(t *testing.T) {
	tab := neighbor.NewTable()
	tab.Store(42, -65, false, false, false)
	tab.Store(7, -65, false, false, false)
	tab.Store(1000, -65, false, false, false)

	hop, ok := BestNextHop(tab)
	if !ok || hop != 7 {
		t.Fatalf("tie not broken by lowest id: hop=%d", hop)
	}
}

func TestNegativeScoresYieldNoCandidate(t *testing.T) {
	// A non-empty table can still have no viable hop: visited neighbours
	// outside the goldilocks band score -40 / -10, below the floor.
	tab := neighbor.NewTable()
	tab.Store(1, -45, false, false, true) // visited too near: -40
	tab.Store(2, -90, false, false, true) // visited too far:  -10

	if hop, ok := BestNextHop(tab); ok {
		t.Fatalf("negative-scoring table produced hop %d", hop)
	}

	// A visited neighbour in the goldilocks band (60) stays viable.
	tab.Store(3, -65, false, false, true)
	hop, ok := BestNextHop(tab)
	if !ok || hop != 3 {
		t.Fatalf("hop=%d ok=%v, want the goldilocks candidate", hop, ok)
	}
}

func TestScoringDeterminism(t *testing.T) {
	tab := neighbor.NewTable()
	tab.Store(3, -72, false, true, false)
	tab.Store(9, -55, true, false, true)
	tab.Store(14, -88, false, false, false)

	first, ok := BestNextHop(tab)
	if !ok {
		t.Fatal("no hop found")
	}
	for i := 0; i < 100; i++ {
		if hop, _ := BestNextHop(tab); hop != first {
			t.Fatalf("call %d returned %d, first call returned %d", i, hop, first)
		}
	}
}
