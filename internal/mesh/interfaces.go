package mesh

// Frame is one received radio transmission: the raw bytes plus the RSSI
// the receiver measured. RSSI is deliberately not part of the packet
// header; it only exists at the physical layer.
type Frame struct {
	RSSI int
	Data []byte
}

type INetwork interface {
	Run()
	Join(n INode)
	Leave(nodeID uint32)
	// Broadcast puts bytes on the air; every node in range receives them
	// with its own link RSSI. There is no radio unicast - addressing is
	// the header's job.
	Broadcast(data []byte, sender INode)
}

type INode interface {
	GetID() uint32
	Run(net INetwork)
	Stop()
	SendData(net INetwork, destID uint32, payload []byte)
	BroadcastHello(net INetwork)
	HandleFrame(net INetwork, f Frame)
	GetFrameChan() chan Frame
	GetQuitChan() chan struct{}
	GetPosition() Coordinates
	SetPosition(coord Coordinates)
	HasInternet() bool
}
