package network

import (
	"log"
	"sync"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
)

// maxRange is the distance (metres) beyond which a transmission is not
// heard at all.
const maxRange = 1000.0

// NetworkImpl is an in-memory radio medium: broadcasts reach every node
// in range, each with the RSSI its own link would produce.
type NetworkImpl struct {
	mu    sync.RWMutex
	nodes map[uint32]mesh.INode

	joinRequests  chan mesh.INode
	leaveRequests chan uint32

	bus *eventBus.EventBus
}

func NewNetwork(bus *eventBus.EventBus) *NetworkImpl {
	return &NetworkImpl{
		nodes:         make(map[uint32]mesh.INode),
		joinRequests:  make(chan mesh.INode),
		leaveRequests: make(chan uint32),
		bus:           bus,
	}
}

// Run is the main goroutine for the network, handling joins/leaves.
func (net *NetworkImpl) Run() {
	for {
		select {
		case newNode := <-net.joinRequests:
			net.addNode(newNode)
		case nodeID := <-net.leaveRequests:
			net.removeNode(nodeID)
		}
	}
}

func (net *NetworkImpl) Join(n mesh.INode) {
	net.joinRequests <- n
}

func (net *NetworkImpl) Leave(nodeID uint32) {
	net.leaveRequests <- nodeID
}

// Broadcast delivers the bytes to every node in range of the sender. Each
// receiver gets its own copy of the buffer and its own link RSSI; the
// sender never hears itself.
func (net *NetworkImpl) Broadcast(data []byte, sender mesh.INode) {
	net.mu.RLock()
	defer net.mu.RUnlock()

	from := sender.GetPosition()
	for id, nd := range net.nodes {
		if id == sender.GetID() {
			continue
		}
		dist := from.DistanceTo(nd.GetPosition())
		if dist > maxRange {
			continue
		}

		frame := mesh.Frame{
			RSSI: mesh.RSSIAt(dist),
			Data: append([]byte(nil), data...),
		}
		select {
		case nd.GetFrameChan() <- frame:
		default:
			log.Printf("[network] Node %d: frame channel full, dropping on the floor", id)
		}
	}
}

func (net *NetworkImpl) addNode(n mesh.INode) {
	net.mu.Lock()
	net.nodes[n.GetID()] = n
	net.mu.Unlock()

	log.Printf("[network] Node %d: joining network", n.GetID())
	net.bus.Publish(eventBus.Event{
		Type:   eventBus.EventNodeJoined,
		NodeID: n.GetID(),
	})

	go n.Run(net)
	n.BroadcastHello(net)
}

func (net *NetworkImpl) removeNode(nodeID uint32) {
	net.mu.Lock()
	nd, ok := net.nodes[nodeID]
	if ok {
		delete(net.nodes, nodeID)
	}
	net.mu.Unlock()

	if !ok {
		return
	}
	log.Printf("[network] Node %d: leaving network", nodeID)
	nd.Stop()
	net.bus.Publish(eventBus.Event{
		Type:   eventBus.EventNodeLeft,
		NodeID: nodeID,
	})
}

// GetNode looks a node up by id.
func (net *NetworkImpl) GetNode(id uint32) (mesh.INode, bool) {
	net.mu.RLock()
	defer net.mu.RUnlock()
	n, ok := net.nodes[id]
	return n, ok
}

// Nodes returns a snapshot of the current members.
func (net *NetworkImpl) Nodes() []mesh.INode {
	net.mu.RLock()
	defer net.mu.RUnlock()
	out := make([]mesh.INode, 0, len(net.nodes))
	for _, n := range net.nodes {
		out = append(out, n)
	}
	return out
}

// LeaveAll stops every node; used at the end of a batch run.
func (net *NetworkImpl) LeaveAll() {
	net.mu.Lock()
	ids := make([]uint32, 0, len(net.nodes))
	for id := range net.nodes {
		ids = append(ids, id)
	}
	net.mu.Unlock()

	for _, id := range ids {
		net.Leave(id)
	}
}
