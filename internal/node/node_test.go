package node

import (
	"testing"

	"thor-mesh/internal/mesh"
)

// fakeNetwork delivers every broadcast synchronously to all other members
// with an RSSI fixed per link, so tests drive the full hello/ack/data
// exchange without goroutines or timers.
type fakeNetwork struct {
	members []mesh.INode
	rssi    int
}

func (f *fakeNetwork) Run() {}

func (f *fakeNetwork) Join(n mesh.INode) { f.members = append(f.members, n) }

func (f *fakeNetwork) Leave(id uint32) {}

func (f *fakeNetwork) Broadcast(data []byte, sender mesh.INode) {
	for _, m := range f.members {
		if m.GetID() == sender.GetID() {
			continue
		}
		m.HandleFrame(f, mesh.Frame{RSSI: f.rssi, Data: append([]byte(nil), data...)})
	}
}

func TestHelloAckDiscovery(t *testing.T) {
	net := &fakeNetwork{rssi: -65}
	a := NewNodeWithID(1, 0, 0, nil).(*nodeImpl)
	c := NewNodeWithID(3, 0, 1, nil).(*nodeImpl)
	c.SetInternet(true)
	net.Join(a)
	net.Join(c)

	a.BroadcastHello(net)

	// C heard the HELLO and stored A; A heard the ACK and stored C with
	// its direct-internet bit.
	if _, ok := c.Router().Neighbor(1); !ok {
		t.Fatal("gateway did not learn the victim")
	}
	info, ok := a.Router().Neighbor(3)
	if !ok {
		t.Fatal("victim did not learn the gateway")
	}
	if !info.HasInternetDirect {
		t.Fatal("ack did not convey direct internet")
	}
	if info.RSSI != -65 {
		t.Fatalf("stored rssi=%d", info.RSSI)
	}
}

func TestTwoHopInternetVisibility(t *testing.T) {
	// B knows gateway C. When A hellos B, B's ACK advertises an internet
	// neighbour, so A stores B as indirectly connected.
	net := &fakeNetwork{rssi: -65}
	a := NewNodeWithID(1, 0, 0, nil).(*nodeImpl)
	b := NewNodeWithID(2, 0, 1, nil).(*nodeImpl)
	net.Join(a)
	net.Join(b)

	b.Router().StoreNeighbor(3, -70, true, false, false)

	a.BroadcastHello(net)

	info, ok := a.Router().Neighbor(2)
	if !ok {
		t.Fatal("A did not learn B")
	}
	if !info.HasInternetIndirect {
		t.Fatal("two-hop internet visibility did not propagate")
	}
	if info.HasInternetDirect {
		t.Fatal("B is not itself a gateway")
	}
}

func TestDeliveryAckReleasesWholePath(t *testing.T) {
	// A -> B -> C: the delivery ACK walks back through B to A, releasing
	// each hop's lock.
	net := &fakeNetwork{rssi: -65}
	a := NewNodeWithID(1, 0, 0, nil).(*nodeImpl)
	b := NewNodeWithID(2, 0, 1, nil).(*nodeImpl)
	c := NewNodeWithID(3, 0, 2, nil).(*nodeImpl)

	// A only knows B; B only knows C (the destination).
	a.Router().StoreNeighbor(2, -65, false, true, false)
	b.Router().StoreNeighbor(3, -65, true, false, false)

	net.Join(a)
	net.Join(b)
	net.Join(c)

	a.SendData(net, 3, []byte("Help Me"))

	if a.Router().PendingLocks() != 0 {
		t.Fatalf("A still holds %d locks", a.Router().PendingLocks())
	}
	if b.Router().PendingLocks() != 0 {
		t.Fatalf("B still holds %d locks", b.Router().PendingLocks())
	}
	if info, _ := a.Router().Neighbor(2); info.Visited {
		t.Fatal("A's path through B still locked")
	}
	if info, _ := b.Router().Neighbor(3); info.Visited {
		t.Fatal("B's path through C still locked")
	}
}

func TestPeriodicHelloKeepsLockAndInternetBits(t *testing.T) {
	// A learned B as an indirect gateway and locked a path through it.
	// B's next liveness beacon must refresh the entry without erasing
	// what A learned or releasing the lock; only a delivery ACK may.
	net := &fakeNetwork{rssi: -58}
	a := NewNodeWithID(1, 0, 0, nil).(*nodeImpl)
	b := NewNodeWithID(2, 0, 1, nil).(*nodeImpl)
	net.Join(a)
	net.Join(b)

	a.Router().StoreNeighbor(2, -65, false, true, false)
	a.SendData(net, 9999, []byte("Help Me"))

	info, _ := a.Router().Neighbor(2)
	if !info.Visited {
		t.Fatal("send did not lock the path through B")
	}

	b.BroadcastHello(net)

	info, _ = a.Router().Neighbor(2)
	if !info.Visited {
		t.Fatal("a plain HELLO released the path lock")
	}
	if !info.HasInternetIndirect {
		t.Fatal("a plain HELLO erased the learned indirect-internet bit")
	}
	if info.RSSI != -58 {
		t.Fatalf("HELLO did not refresh rssi: %d", info.RSSI)
	}
	if a.Router().PendingLocks() != 1 {
		t.Fatalf("pending locks=%d, want the in-flight transaction", a.Router().PendingLocks())
	}
}

func TestQueuedPacketDrainsWhenMuleAppears(t *testing.T) {
	net := &fakeNetwork{rssi: -65}
	a := NewNodeWithID(1, 0, 0, nil).(*nodeImpl)
	b := NewNodeWithID(9999, 0, 1, nil).(*nodeImpl)
	net.Join(a)

	// No neighbours: the packet waits.
	a.SendData(net, 9999, []byte("Help Me"))
	if a.Router().QueueLen() != 1 {
		t.Fatalf("queue len=%d", a.Router().QueueLen())
	}

	// The destination wanders into range and hellos; the next drain tick
	// flushes the queue straight to it.
	net.Join(b)
	b.BroadcastHello(net)
	a.DrainQueue(net)

	if a.Router().QueueLen() != 0 {
		t.Fatal("queue did not drain")
	}
}
