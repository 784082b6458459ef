package marketserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/plutus-market/plutus-server/model"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 16

// EventHub fans settlement events out to connected websocket clients. It
// is the settlement coordinator's notification sink: Notify never blocks,
// and a client that cannot keep up is disconnected rather than allowed to
// stall the settlement path.
type EventHub struct {
	maxClients int

	mtx     sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

func NewEventHub(maxClients int) *EventHub {
	return &EventHub{
		maxClients: maxClients,
		clients:    make(map[*websocket.Conn]chan []byte),
	}
}

// Notify implements settlemgr.EventSink.
func (h *EventHub) Notify(event *model.SettlementEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Unable to marshal settlement event: %v", err)
		return
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()
	for conn, send := range h.clients {
		select {
		case send <- payload:
		default:
			log.Warnf("Event feed client %v is not keeping up, dropping", conn.RemoteAddr())
			h.dropLocked(conn)
		}
	}
}

// NumClients returns the number of connected event feed clients.
func (h *EventHub) NumClients() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.clients)
}

func (h *EventHub) add(conn *websocket.Conn) (chan []byte, bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		return nil, false
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return nil, false
	}
	send := make(chan []byte, clientSendBuffer)
	h.clients[conn] = send
	return send, true
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.dropLocked(conn)
}

func (h *EventHub) dropLocked(conn *websocket.Conn) {
	if send, ok := h.clients[conn]; ok {
		close(send)
		delete(h.clients, conn)
	}
}

// Close disconnects all clients and rejects future connections.
func (h *EventHub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.closed = true
	for conn := range h.clients {
		h.dropLocked(conn)
		conn.Close()
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
}

// handleEvents serves GET /api/events: the websocket settlement event
// feed, admin-authenticated when credentials are configured.
func (svr *MarketServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !svr.checkAuth(r) {
		authFail(w)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.Errorf("Unexpected websocket error: %v", err)
		}
		return
	}

	send, ok := svr.eventHub.add(conn)
	if !ok {
		log.Infof("Max websockets exceeded - disconnecting client %s", r.RemoteAddr)
		conn.Close()
		return
	}
	log.Infof("New event feed client %s", r.RemoteAddr)

	// Writer: forward hub payloads until the send channel closes.
	go func() {
		for payload := range send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debugf("Event feed write to %v failed: %v", conn.RemoteAddr(), err)
				break
			}
		}
		conn.Close()
	}()

	// Reader: clients do not send anything meaningful; reading drives the
	// close handshake and detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		svr.eventHub.remove(conn)
		conn.Close()
		log.Infof("Event feed client %s disconnected", r.RemoteAddr)
	}()
}
