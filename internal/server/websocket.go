package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/network"
)

// Define a WebSocket upgrader.
var upgrader = websocket.Upgrader{
	// Allow any origin for simplicity. Adjust for production use.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler upgrades the connection to WebSocket and pushes events from the EventBus.
func wsHandler(eb *eventBus.EventBus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	eventCh := eb.Subscribe()

	for event := range eventCh {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[server] write error: %v", err)
			return
		}
	}
}

type injectRequest struct {
	SourceID      uint32 `json:"source_id"`
	DestinationID uint32 `json:"destination_id"`
	Payload       string `json:"payload"`
}

// injectHandler accepts a data message from the front end and hands it to
// the named source node for routing.
func injectHandler(net *network.NetworkImpl, w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, ok := net.GetNode(req.SourceID)
	if !ok {
		http.Error(w, "unknown source node", http.StatusNotFound)
		return
	}

	node.SendData(net, req.DestinationID, []byte(req.Payload))
	w.Write([]byte("Message injected"))
}

// StartServer starts the HTTP server with the WebSocket and inject endpoints.
func StartServer(eb *eventBus.EventBus, net *network.NetworkImpl, addr string) {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(eb, w, r)
	})
	http.HandleFunc("/inject", func(w http.ResponseWriter, r *http.Request) {
		injectHandler(net, w, r)
	})

	log.Printf("[server] listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
