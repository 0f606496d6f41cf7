package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
	airmqtt "thor-mesh/internal/mqtt"
	"thor-mesh/internal/node"
)

// Runs a single THOR node whose radio is an MQTT broker. Every instance
// pointed at the same broker shares one flat air, which is enough to
// exercise the protocol across machines without real radios.
func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	id := flag.Uint("id", 0, "node id (0 picks a random one)")
	internet := flag.Bool("internet", false, "node has a direct internet uplink")
	dest := flag.Uint("send-to", 0, "destination id to send a test message to on startup")
	payload := flag.String("payload", "Help Me", "test message payload")
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	bus := eventBus.NewEventBus()

	var n mesh.INode
	if *id != 0 {
		n = node.NewNodeWithID(uint32(*id), 0, 0, bus)
	} else {
		n = node.NewNode(0, 0, bus)
	}
	if *internet {
		if g, ok := n.(interface{ SetInternet(bool) }); ok {
			g.SetInternet(true)
		}
	}

	bridge, err := airmqtt.NewBridge(*broker, n.GetID())
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	air := airmqtt.NewAirNetwork(bridge)

	go n.Run(air)
	go bridge.Pump(air, n)
	n.BroadcastHello(air)
	log.Printf("[airnode] node %d on the air via %s", n.GetID(), *broker)

	if *dest != 0 {
		n.SendData(air, uint32(*dest), []byte(*payload))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	n.Stop()
	bridge.Disconnect()
	log.Printf("[airnode] node %d off the air", n.GetID())
}
