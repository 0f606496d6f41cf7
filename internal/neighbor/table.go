package neighbor

import "time"

// DefaultStaleAfter is the staleness window; a design parameter, not a
// hard constant - the host's expiry ticker passes whatever it wants.
const DefaultStaleAfter = 30 * time.Second

// Info is everything a node knows about one neighbour. One entry per id,
// last write wins.
type Info struct {
	LastSeen            time.Time
	RSSI                int // dBm, supplied out-of-band by the transport
	HasInternetDirect   bool
	HasInternetIndirect bool
	Visited             bool // path lock; cleared only by an explicit Store
}

// Table maps neighbour node id to its reachability state. It has no
// internal locking: the router serialises all access to the table and
// the packet queue under one mutex, because a scoring decision reads the
// table and then flips a lock flag as a single step.
type Table struct {
	entries map[uint32]Info

	// now is injectable so expiry is testable with simulated time.
	now func() time.Time
}

func NewTable() *Table {
	return &Table{
		entries: make(map[uint32]Info),
		now:     time.Now,
	}
}

// SetClock replaces the table's time source. Tests only.
func (t *Table) SetClock(now func() time.Time) {
	t.now = now
}

// Store upserts the entry for id, unconditionally replacing every field
// and stamping LastSeen. Storing with visited=false is the unlock path.
func (t *Table) Store(id uint32, rssi int, hasDirect, hasIndirect, visited bool) {
	t.entries[id] = Info{
		LastSeen:            t.now(),
		RSSI:                rssi,
		HasInternetDirect:   hasDirect,
		HasInternetIndirect: hasIndirect,
		Visited:             visited,
	}
}

// Refresh stamps LastSeen and RSSI for id, keeping every learned flag.
// A periodic HELLO proves the neighbour is alive but says nothing about
// internet reach, and liveness must never clear a path lock. Unknown ids
// get a fresh zeroed entry.
func (t *Table) Refresh(id uint32, rssi int) {
	info := t.entries[id]
	info.LastSeen = t.now()
	info.RSSI = rssi
	t.entries[id] = info
}

// UpdateInternet stamps LastSeen, RSSI and the internet bits an ACK
// carries, preserving the path-lock flag. Only delivery confirmation
// clears a lock, via Store.
func (t *Table) UpdateInternet(id uint32, rssi int, hasDirect, hasIndirect bool) {
	info := t.entries[id]
	info.LastSeen = t.now()
	info.RSSI = rssi
	info.HasInternetDirect = hasDirect
	info.HasInternetIndirect = hasIndirect
	t.entries[id] = info
}

// SetVisited flips only the path-lock flag of an existing entry, leaving
// LastSeen untouched; a routing decision is not a sighting.
func (t *Table) SetVisited(id uint32, visited bool) {
	if info, ok := t.entries[id]; ok {
		info.Visited = visited
		t.entries[id] = info
	}
}

// RemoveStale deletes every neighbour whose LastSeen is more than
// staleAfter in the past, measured against now.
func (t *Table) RemoveStale(now time.Time, staleAfter time.Duration) int {
	removed := 0
	for id, info := range t.entries {
		if now.Sub(info.LastSeen) > staleAfter {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

func (t *Table) Get(id uint32) (Info, bool) {
	info, ok := t.entries[id]
	return info, ok
}

func (t *Table) Len() int {
	return len(t.entries)
}

// IDs returns the neighbour ids in map order; callers who need a
// deterministic order sort it themselves.
func (t *Table) IDs() []uint32 {
	ids := make([]uint32, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}
