// Package queue is the store-and-forward buffer: packets with no viable
// next hop wait here until a drain finds one, turning the node into a
// data mule in the meantime.
package queue

import (
	"thor-mesh/internal/neighbor"
	"thor-mesh/internal/packet"
)

// Capacity bounds the queue. Insertion beyond it is a silent no-op: an
// explicit, lossy resource-exhaustion policy with no back-pressure.
const Capacity = 50

// PickFunc is the next-hop scorer the drain consults, invoked once per
// drain call so the whole batch is routed consistently.
type PickFunc func(*neighbor.Table) (uint32, bool)

// DrainResult is one drained batch: the encoded buffers ready to
// transmit, their headers as stamped, and the neighbour they were all
// routed through.
type DrainResult struct {
	Batch   [][]byte
	Headers []packet.Header
	NextHop uint32
}

// Queue is a bounded FIFO of packets awaiting a route. Like the neighbour
// table it carries no lock of its own; the router serialises access.
type Queue struct {
	packets []packet.Packet
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends p if there is room and silently drops it otherwise.
// Reports whether the packet was kept.
func (q *Queue) Enqueue(p packet.Packet) bool {
	if len(q.packets) >= Capacity {
		return false
	}
	q.packets = append(q.packets, p)
	return true
}

func (q *Queue) Len() int {
	return len(q.packets)
}

// Drain routes the entire queue through one scoring decision. If the
// queue is empty or pick yields no candidate it returns ok=false and
// leaves the queue untouched. Otherwise it locks the chosen neighbour,
// stamps every packet's next hop and visited bit, encodes them all in
// insertion order, and clears the queue.
func (q *Queue) Drain(table *neighbor.Table, pick PickFunc) (DrainResult, bool) {
	if len(q.packets) == 0 {
		return DrainResult{}, false
	}

	hop, ok := pick(table)
	if !ok {
		return DrainResult{}, false
	}

	table.SetVisited(hop, true)

	res := DrainResult{
		Batch:   make([][]byte, 0, len(q.packets)),
		Headers: make([]packet.Header, 0, len(q.packets)),
		NextHop: hop,
	}
	for i := range q.packets {
		q.packets[i].Header.NextHopID = hop
		q.packets[i].Header.Visited = true
		res.Batch = append(res.Batch, q.packets[i].Serialise())
		res.Headers = append(res.Headers, q.packets[i].Header)
	}
	q.packets = nil
	return res, true
}
