package node

import (
	"log"
	"math/rand"
	"time"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
	"thor-mesh/internal/neighbor"
	"thor-mesh/internal/packet"
	"thor-mesh/internal/routing"
)

// Tick intervals for the host-side scheduler. The core has no timers of
// its own; these drive the periodic hooks it exposes.
const (
	helloInterval = 10 * time.Second
	sweepInterval = 5 * time.Second
	drainInterval = 2 * time.Second
)

// nodeImpl is a concrete implementation of mesh.INode: it owns a router,
// pumps frames off the air into it, and runs the hello/expiry/drain
// timers the protocol core leaves to the host.
type nodeImpl struct {
	id          uint32
	coordinates mesh.Coordinates
	frames      chan mesh.Frame
	quit        chan struct{}

	router *routing.Router

	bus *eventBus.EventBus
}

// NewNode creates a node with a random id at the given position.
func NewNode(lat, long float64, bus *eventBus.EventBus) mesh.INode {
	return NewNodeWithID(uint32(rand.Int31()), lat, long, bus)
}

// NewNodeWithID creates a node with a fixed id; scenarios use this so
// gateways and victims are addressable.
func NewNodeWithID(id uint32, lat, long float64, bus *eventBus.EventBus) mesh.INode {
	log.Printf("[thor] Created node %d at (%.2f, %.2f)", id, lat, long)
	return &nodeImpl{
		id:          id,
		coordinates: mesh.CreateCoordinates(lat, long),
		frames:      make(chan mesh.Frame, 64),
		quit:        make(chan struct{}),
		router:      routing.NewRouter(id, bus),
		bus:         bus,
	}
}

func (n *nodeImpl) GetID() uint32 {
	return n.id
}

// Router exposes the protocol core, mainly for scenarios and tests.
func (n *nodeImpl) Router() *routing.Router {
	return n.router
}

func (n *nodeImpl) HasInternet() bool {
	return n.router.HasInternet()
}

// SetInternet marks this node as a gateway.
func (n *nodeImpl) SetInternet(has bool) {
	n.router.SetInternet(has)
}

// Run is the node's main goroutine: frames in, timers around.
func (n *nodeImpl) Run(net mesh.INetwork) {
	log.Printf("[thor] Node %d: started", n.id)
	defer log.Printf("[thor] Node %d: stopped", n.id)

	hello := time.NewTicker(helloInterval)
	sweep := time.NewTicker(sweepInterval)
	drain := time.NewTicker(drainInterval)
	defer hello.Stop()
	defer sweep.Stop()
	defer drain.Stop()

	for {
		select {
		case f := <-n.frames:
			n.HandleFrame(net, f)
		case <-hello.C:
			n.BroadcastHello(net)
		case <-sweep.C:
			n.router.RemoveStaleNeighbors(time.Now(), neighbor.DefaultStaleAfter)
		case <-drain.C:
			n.DrainQueue(net)
		case <-n.quit:
			return
		}
	}
}

func (n *nodeImpl) Stop() {
	close(n.quit)
}

// SendData originates a DATA packet toward destID. If the router has a
// hop it goes on the air immediately, otherwise it waits in the queue for
// a drain tick.
func (n *nodeImpl) SendData(net mesh.INetwork, destID uint32, payload []byte) {
	seq := n.router.NextSequence()
	buf, disp := n.router.SendPacket(destID, n.id, seq, payload)
	if disp == routing.Forwarded {
		net.Broadcast(buf, n)
	}
}

// BroadcastHello announces our presence; neighbours answer with ACKs
// carrying their internet bits.
func (n *nodeImpl) BroadcastHello(net mesh.INetwork) {
	buf := n.router.CreateHello(packet.BroadcastID, n.router.NextSequence())
	net.Broadcast(buf, n)
}

// DrainQueue is the periodic store-and-forward hook.
func (n *nodeImpl) DrainQueue(net mesh.INetwork) {
	for _, buf := range n.router.ProcessQueue() {
		net.Broadcast(buf, n)
	}
}

// HandleFrame dispatches one received transmission by packet kind. The
// radio is a broadcast medium, so anything not addressed to us is
// dropped here, not in the core.
func (n *nodeImpl) HandleFrame(net mesh.INetwork, f mesh.Frame) {
	h, err := packet.DeserialiseHeader(f.Data)
	if err != nil {
		log.Printf("[thor] Node %d: undecodable frame: %v", n.id, err)
		return
	}
	if h.SenderID == n.id {
		return
	}

	switch h.Type {
	case packet.KindHello:
		n.handleHello(net, f.RSSI, h)
	case packet.KindAck:
		n.handleAck(net, f.RSSI, h)
	case packet.KindData:
		n.handleData(net, f.Data, h)
	default:
		log.Printf("[thor] Node %d: unknown packet kind %d from %d", n.id, h.Type, h.SenderID)
	}
}

// handleHello learns the sender as a neighbour (header decode and table
// store are separate steps: RSSI comes from the radio, not the header)
// and answers with an ACK carrying our internet visibility. A HELLO is a
// liveness beacon: it refreshes LastSeen and RSSI but must not disturb
// the internet bits learned from ACKs or an outstanding path lock.
func (n *nodeImpl) handleHello(net mesh.INetwork, rssi int, h packet.Header) {
	hdr, err := n.router.HandleHello(h.Serialise())
	if err != nil {
		return
	}

	n.router.RefreshNeighbor(hdr.SenderID, rssi)

	ack := n.router.CreateAck(hdr.SenderID, n.id, hdr.SenderID, hdr.Sequence+1)
	net.Broadcast(ack, n)
}

// handleAck refreshes the sender's entry with the two-hop internet bits
// the ACK carries, and - when the ACK confirms one of our in-flight
// transactions - releases the path lock and keeps walking it backward.
func (n *nodeImpl) handleAck(net mesh.INetwork, rssi int, h packet.Header) {
	if h.DestinationID != n.id && h.NextHopID != n.id {
		return
	}
	hdr, err := n.router.HandleAck(h.Serialise())
	if err != nil {
		return
	}

	n.router.UpdateNeighbor(hdr.SenderID, rssi, hdr.MyInternet, hdr.IntNeighbour)

	if hdr.OriginID == hdr.SenderID {
		// Plain HELLO reply, no transaction attached.
		return
	}
	if prev, ok := n.router.ReleasePath(hdr.OriginID, hdr.Sequence); ok && prev != 0 {
		back := n.router.CreateAck(hdr.OriginID, hdr.OriginID, prev, hdr.Sequence)
		net.Broadcast(back, n)
	}
}

// handleData runs the forwarding core and acts on its disposition:
// retransmit a forward, start the backward ACK on delivery, or nothing.
func (n *nodeImpl) handleData(net mesh.INetwork, data []byte, h packet.Header) {
	if h.NextHopID != n.id && h.NextHopID != packet.BroadcastID && h.DestinationID != n.id {
		return
	}

	buf, pkt, disp := n.router.HandleData(data)
	switch disp {
	case routing.Forwarded:
		net.Broadcast(buf, n)
	case routing.Delivered:
		// Confirmation propagates hop by hop back along the locked path;
		// the previous transmitter is still in the header we received.
		ack := n.router.CreateAck(pkt.Header.OriginID, pkt.Header.OriginID, pkt.Header.SenderID, pkt.Header.Sequence)
		net.Broadcast(ack, n)
	}
}

func (n *nodeImpl) GetFrameChan() chan mesh.Frame {
	return n.frames
}

func (n *nodeImpl) GetQuitChan() chan struct{} {
	return n.quit
}

func (n *nodeImpl) GetPosition() mesh.Coordinates {
	return n.coordinates
}

func (n *nodeImpl) SetPosition(coord mesh.Coordinates) {
	n.coordinates = coord
}
