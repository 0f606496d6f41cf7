package routing

import (
	"log"
	"sync"
	"time"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/neighbor"
	"thor-mesh/internal/packet"
	"thor-mesh/internal/queue"
)

// Disposition reports what happened to a packet handed to the router, so
// callers can tell a queued packet from a delivered or expired one
// instead of guessing from an empty buffer.
type Disposition int

const (
	Forwarded Disposition = iota
	Queued
	Delivered
	DroppedExpired
	RejectedMalformed
)

func (d Disposition) String() string {
	switch d {
	case Forwarded:
		return "FORWARDED"
	case Queued:
		return "QUEUED"
	case Delivered:
		return "DELIVERED"
	case DroppedExpired:
		return "DROPPED_EXPIRED"
	case RejectedMalformed:
		return "REJECTED_MALFORMED"
	default:
		return "UNKNOWN"
	}
}

// txKey identifies one in-flight transaction for lock correlation.
type txKey struct {
	origin   uint32
	sequence uint32
}

// pathLock remembers which neighbour a transaction was routed through and
// who handed us the packet, so a delivery ACK can be walked back hop by
// hop.
type pathLock struct {
	next    uint32
	prev    uint32
	hasPrev bool
}

// Router is the per-node protocol handler: origination, ingestion, TTL
// enforcement, forwarding decisions and path-lock management. It owns the
// neighbour table and the store-and-forward queue, guarded by a single
// mutex: scoring reads the table and then flips a lock flag as one
// logical step that must never interleave with a concurrent store or
// drain.
type Router struct {
	ownerID    uint32
	myInternet bool

	mu          sync.Mutex
	table       *neighbor.Table
	packetQueue *queue.Queue

	// pendingLocks maps an in-flight (origin, sequence) pair to the
	// neighbour locked for it, so the backward ACK can release exactly
	// the path it confirms.
	pendingLocks map[txKey]pathLock

	// prevHops remembers who handed us a packet that is still waiting in
	// the queue, so a drain-time lock can be walked back too.
	prevHops map[txKey]uint32

	sequence uint32

	bus *eventBus.EventBus
}

// NewRouter constructs the protocol handler for one node. bus may be nil.
func NewRouter(ownerID uint32, bus *eventBus.EventBus) *Router {
	return &Router{
		ownerID:      ownerID,
		table:        neighbor.NewTable(),
		packetQueue:  queue.New(),
		pendingLocks: make(map[txKey]pathLock),
		prevHops:     make(map[txKey]uint32),
		bus:          bus,
	}
}

func (r *Router) OwnerID() uint32 { return r.ownerID }

// SetInternet marks whether this node itself is a gateway; the bit rides
// on every ACK it sends.
func (r *Router) SetInternet(has bool) {
	r.mu.Lock()
	r.myInternet = has
	r.mu.Unlock()
}

func (r *Router) HasInternet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.myInternet
}

// NextSequence hands out origination sequence numbers.
func (r *Router) NextSequence() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	return r.sequence
}

// CreateHello builds a ready-to-broadcast HELLO announcing our presence.
func (r *Router) CreateHello(destID, sequence uint32) []byte {
	h := packet.CreateHello(destID, r.ownerID, r.ownerID, sequence)
	return h.Serialise()
}

// CreateAck builds an ACK. For a HELLO reply originID is our own id; for
// a delivery ACK walking a path backward it is the DATA packet's origin.
// Either way it carries our own internet bit and whether any neighbour of
// ours has direct internet, which is how a node two hops from a gateway
// learns it is worth routing this way.
func (r *Router) CreateAck(destID, originID, nextHopID, sequence uint32) []byte {
	r.mu.Lock()
	intNeighbour := r.anyNeighbourWithInternet()
	myInternet := r.myInternet
	r.mu.Unlock()

	h := packet.CreateAck(destID, r.ownerID, originID, nextHopID, sequence, myInternet, intNeighbour)
	return h.Serialise()
}

// anyNeighbourWithInternet reports whether some current neighbour is a
// gateway. Callers hold r.mu.
func (r *Router) anyNeighbourWithInternet() bool {
	for _, id := range r.table.IDs() {
		if info, ok := r.table.Get(id); ok && info.HasInternetDirect {
			return true
		}
	}
	return false
}

// HandleHello decodes a HELLO header. It deliberately does not touch the
// neighbour table: RSSI lives in the physical layer, not the header, so
// the transport calls StoreNeighbor separately with what it measured.
func (r *Router) HandleHello(buf []byte) (packet.Header, error) {
	return packet.DeserialiseHeader(buf)
}

// HandleAck decodes an ACK header; same transport-agnostic split as
// HandleHello.
func (r *Router) HandleAck(buf []byte) (packet.Header, error) {
	return packet.DeserialiseHeader(buf)
}

// StoreNeighbor merges externally observed reachability into the table.
// This is also the unlock path: storing with visited=false releases a
// previously locked neighbour.
func (r *Router) StoreNeighbor(id uint32, rssi int, hasDirect, hasIndirect, visited bool) {
	r.mu.Lock()
	r.table.Store(id, rssi, hasDirect, hasIndirect, visited)
	r.mu.Unlock()

	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventNeighborStored,
		NodeID:      r.ownerID,
		OtherNodeID: id,
		RSSI:        rssi,
	})
}

// RefreshNeighbor records a liveness sighting (a periodic HELLO): it
// stamps LastSeen and RSSI but keeps the learned internet bits and any
// path lock on the entry.
func (r *Router) RefreshNeighbor(id uint32, rssi int) {
	r.mu.Lock()
	r.table.Refresh(id, rssi)
	r.mu.Unlock()

	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventNeighborStored,
		NodeID:      r.ownerID,
		OtherNodeID: id,
		RSSI:        rssi,
	})
}

// UpdateNeighbor merges the internet bits an ACK carries into the table
// without touching the entry's path lock; only ReleasePath clears locks.
func (r *Router) UpdateNeighbor(id uint32, rssi int, hasDirect, hasIndirect bool) {
	r.mu.Lock()
	r.table.UpdateInternet(id, rssi, hasDirect, hasIndirect)
	r.mu.Unlock()

	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventNeighborStored,
		NodeID:      r.ownerID,
		OtherNodeID: id,
		RSSI:        rssi,
	})
}

// RemoveStaleNeighbors drops every neighbour silent for longer than
// staleAfter. The host calls this periodically; there is no timer inside
// the core.
func (r *Router) RemoveStaleNeighbors(now time.Time, staleAfter time.Duration) int {
	r.mu.Lock()
	removed := r.table.RemoveStale(now, staleAfter)
	r.mu.Unlock()

	if removed > 0 {
		r.bus.Publish(eventBus.Event{
			Type:   eventBus.EventNeighborExpired,
			NodeID: r.ownerID,
			Count:  removed,
		})
	}
	return removed
}

// Neighbor exposes one table entry for the host (ACK bookkeeping, tests).
func (r *Router) Neighbor(id uint32) (neighbor.Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Get(id)
}

func (r *Router) NeighborCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Len()
}

func (r *Router) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packetQueue.Len()
}

// SendPacket originates a DATA packet. If a next hop scores, the path is
// locked and the serialised bytes come back ready to transmit now;
// otherwise the packet waits in the queue (silently dropped at capacity)
// for a later drain.
func (r *Router) SendPacket(destID, originID, sequence uint32, payload []byte) ([]byte, Disposition) {
	p := packet.CreateData(destID, r.ownerID, originID, sequence, payload)

	r.mu.Lock()
	hop, ok := BestNextHop(r.table)
	if ok {
		r.lockPathLocked(hop, originID, sequence, 0, false)
		p.Header.NextHopID = hop
		p.Header.Visited = true
		r.mu.Unlock()

		log.Printf("[thor] Node %d: originating DATA seq=%d for %d via %d", r.ownerID, sequence, destID, hop)
		r.bus.Publish(eventBus.Event{
			Type:        eventBus.EventPacketSent,
			NodeID:      r.ownerID,
			OtherNodeID: hop,
			Sequence:    sequence,
			TTL:         p.Header.TTL,
		})
		return p.Serialise(), Forwarded
	}

	kept := r.packetQueue.Enqueue(p)
	r.mu.Unlock()

	if kept {
		log.Printf("[thor] Node %d: no route for %d, queued DATA seq=%d", r.ownerID, destID, sequence)
		r.bus.Publish(eventBus.Event{
			Type:     eventBus.EventPacketQueued,
			NodeID:   r.ownerID,
			Sequence: sequence,
		})
	} else {
		r.bus.Publish(eventBus.Event{
			Type:     eventBus.EventQueueOverflow,
			NodeID:   r.ownerID,
			Sequence: sequence,
		})
	}
	return nil, Queued
}

// HandleData ingests a DATA packet from the transport. The returned bytes
// are non-nil only when the disposition is Forwarded; the decoded packet
// is valid for every disposition except RejectedMalformed, so a Delivered
// payload can be handed to the application.
func (r *Router) HandleData(buf []byte) ([]byte, packet.Packet, Disposition) {
	p, err := packet.Deserialise(buf)
	if err != nil {
		return nil, packet.Packet{}, RejectedMalformed
	}

	// Hop budget exhausted: dropped before any decrement, no expiry
	// acknowledgement. Expected attrition, not a fault.
	if p.Header.TTL <= 1 {
		r.bus.Publish(eventBus.Event{
			Type:     eventBus.EventPacketExpired,
			NodeID:   r.ownerID,
			Sequence: p.Header.Sequence,
			TTL:      p.Header.TTL,
		})
		return nil, p, DroppedExpired
	}

	if p.Header.DestinationID == r.ownerID {
		log.Printf("[thor] Node %d: DATA seq=%d arrived, payload=%q", r.ownerID, p.Header.Sequence, p.Payload)
		r.bus.Publish(eventBus.Event{
			Type:        eventBus.EventPacketDelivered,
			NodeID:      r.ownerID,
			OtherNodeID: p.Header.OriginID,
			Sequence:    p.Header.Sequence,
			Payload:     string(p.Payload),
		})
		return nil, p, Delivered
	}

	p.Header.TTL--

	// We are about to become the transmitter, whether the packet leaves
	// now or waits in the queue. The incoming sender is the hop a
	// delivery ACK must be walked back through.
	prevHop := p.Header.SenderID
	p.Header.SenderID = r.ownerID

	r.mu.Lock()
	hop, ok := BestNextHop(r.table)
	if ok {
		r.lockPathLocked(hop, p.Header.OriginID, p.Header.Sequence, prevHop, true)
		p.Header.NextHopID = hop
		p.Header.Visited = true
		r.mu.Unlock()

		log.Printf("[thor] Node %d: forwarding DATA seq=%d from %d to %d via %d (ttl %d)",
			r.ownerID, p.Header.Sequence, p.Header.OriginID, p.Header.DestinationID, hop, p.Header.TTL)
		r.bus.Publish(eventBus.Event{
			Type:        eventBus.EventPacketForwarded,
			NodeID:      r.ownerID,
			OtherNodeID: hop,
			Sequence:    p.Header.Sequence,
			TTL:         p.Header.TTL,
		})
		return p.Serialise(), p, Forwarded
	}

	kept := r.packetQueue.Enqueue(p)
	if kept {
		r.prevHops[txKey{p.Header.OriginID, p.Header.Sequence}] = prevHop
	}
	r.mu.Unlock()

	if kept {
		log.Printf("[thor] Node %d: no route onward for %d, muling DATA seq=%d",
			r.ownerID, p.Header.DestinationID, p.Header.Sequence)
		r.bus.Publish(eventBus.Event{
			Type:     eventBus.EventPacketQueued,
			NodeID:   r.ownerID,
			Sequence: p.Header.Sequence,
		})
	} else {
		r.bus.Publish(eventBus.Event{
			Type:     eventBus.EventQueueOverflow,
			NodeID:   r.ownerID,
			Sequence: p.Header.Sequence,
		})
	}
	return nil, p, Queued
}

// ProcessQueue is the periodic / idle-time drain hook. One scoring
// decision routes the whole batch; either the entire queue empties or
// nothing happens.
func (r *Router) ProcessQueue() [][]byte {
	r.mu.Lock()
	res, ok := r.packetQueue.Drain(r.table, BestNextHop)
	if !ok {
		r.mu.Unlock()
		return nil
	}
	for _, h := range res.Headers {
		key := txKey{h.OriginID, h.Sequence}
		lock := pathLock{next: res.NextHop}
		if prev, ok := r.prevHops[key]; ok {
			lock.prev, lock.hasPrev = prev, true
			delete(r.prevHops, key)
		}
		r.pendingLocks[key] = lock
	}
	r.mu.Unlock()

	log.Printf("[thor] Node %d: drained %d packets via %d", r.ownerID, len(res.Batch), res.NextHop)
	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventQueueDrained,
		NodeID:      r.ownerID,
		OtherNodeID: res.NextHop,
		Count:       len(res.Batch),
	})
	return res.Batch
}

// lockPathLocked records the routing decision that selected hop for the
// (origin, sequence) transaction. Callers hold r.mu.
func (r *Router) lockPathLocked(hop, originID, sequence, prev uint32, hasPrev bool) {
	r.table.SetVisited(hop, true)
	r.pendingLocks[txKey{originID, sequence}] = pathLock{next: hop, prev: prev, hasPrev: hasPrev}

	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventPathLocked,
		NodeID:      r.ownerID,
		OtherNodeID: hop,
		Sequence:    sequence,
	})
}

// ReleasePath unlocks the neighbour locked for the (origin, sequence)
// transaction a backward-propagating ACK just confirmed. The release goes
// through Store with visited=false, as delivery success is the only thing
// allowed to clear a path lock. The returned prevHop is the neighbour the
// ACK should continue backward to; it is zero when we originated the
// packet and the walk ends here.
func (r *Router) ReleasePath(originID, sequence uint32) (prevHop uint32, ok bool) {
	key := txKey{originID, sequence}

	r.mu.Lock()
	lock, found := r.pendingLocks[key]
	if !found {
		r.mu.Unlock()
		return 0, false
	}
	delete(r.pendingLocks, key)

	if info, present := r.table.Get(lock.next); present {
		r.table.Store(lock.next, info.RSSI, info.HasInternetDirect, info.HasInternetIndirect, false)
	}
	r.mu.Unlock()

	log.Printf("[thor] Node %d: released path via %d for origin=%d seq=%d", r.ownerID, lock.next, originID, sequence)
	r.bus.Publish(eventBus.Event{
		Type:        eventBus.EventPathReleased,
		NodeID:      r.ownerID,
		OtherNodeID: lock.next,
		Sequence:    sequence,
	})
	if lock.hasPrev {
		return lock.prev, true
	}
	return 0, true
}

// PendingLocks reports how many transactions still hold a path lock.
func (r *Router) PendingLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingLocks)
}
