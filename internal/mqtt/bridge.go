// Package mqtt bridges a node onto a broker-backed "air" so THOR nodes on
// different machines can hear each other. Radio frames are msgpack
// envelopes because RSSI travels out-of-band next to the raw packet
// bytes, never inside them.
package mqtt

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"thor-mesh/internal/mesh"
)

const airTopic = "thor/air"

// Frame is the on-broker envelope for one transmission.
type Frame struct {
	NodeID uint32 `msgpack:"node_id"`
	RSSI   int    `msgpack:"rssi"`
	Data   []byte `msgpack:"data"`
}

// Bridge manages the MQTT connection and shuttles frames between the
// broker and a local node's frame channel.
type Bridge struct {
	client mqtt.Client
	nodeID uint32

	Frames chan Frame
}

// NewBridge connects to the broker and subscribes to the shared air topic.
func NewBridge(broker string, nodeID uint32) (*Bridge, error) {
	b := &Bridge{
		nodeID: nodeID,
		Frames: make(chan Frame, 100),
	}

	clientID := fmt.Sprintf("thor-%d-%s", nodeID, uuid.New().String()[:8])
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		b.onAir(msg)
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := b.client.Subscribe(airTopic, 0, func(client mqtt.Client, msg mqtt.Message) {
		b.onAir(msg)
	}); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt subscribe: %w", token.Error())
	}
	return b, nil
}

func (b *Bridge) onAir(msg mqtt.Message) {
	var f Frame
	if err := msgpack.Unmarshal(msg.Payload(), &f); err != nil {
		log.Printf("[air] undecodable frame envelope: %v", err)
		return
	}
	if f.NodeID == b.nodeID {
		// Our own transmission echoed back.
		return
	}
	select {
	case b.Frames <- f:
	default:
		log.Printf("[air] frame channel full, dropping")
	}
}

// Transmit publishes packet bytes with the RSSI receivers should pretend
// to have measured. A real radio supplies that per link; the broker air
// is flat, so the sender picks one.
func (b *Bridge) Transmit(data []byte, rssi int) error {
	payload, err := msgpack.Marshal(Frame{NodeID: b.nodeID, RSSI: rssi, Data: data})
	if err != nil {
		return fmt.Errorf("encode frame envelope: %w", err)
	}
	token := b.client.Publish(airTopic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// Pump feeds broker frames into a node until the bridge disconnects.
func (b *Bridge) Pump(net mesh.INetwork, n mesh.INode) {
	for f := range b.Frames {
		n.HandleFrame(net, mesh.Frame{RSSI: f.RSSI, Data: f.Data})
	}
}

// Disconnect performs a clean disconnect from the broker.
func (b *Bridge) Disconnect() {
	b.client.Disconnect(250)
	close(b.Frames)
}

// defaultAirRSSI is what receivers pretend to measure on the flat
// broker air. Mid goldilocks band.
const defaultAirRSSI = -65

// AirNetwork adapts the bridge to the radio interface so a node can run
// with the broker as its only air. Join and Leave are broker-side
// concerns (subscribe happens at connect), so they are no-ops here.
type AirNetwork struct {
	bridge *Bridge
}

func NewAirNetwork(b *Bridge) *AirNetwork {
	return &AirNetwork{bridge: b}
}

func (a *AirNetwork) Run() {}

func (a *AirNetwork) Join(n mesh.INode) {}

func (a *AirNetwork) Leave(nodeID uint32) {}

func (a *AirNetwork) Broadcast(data []byte, sender mesh.INode) {
	if err := a.bridge.Transmit(data, defaultAirRSSI); err != nil {
		log.Printf("[air] transmit failed: %v", err)
	}
}
