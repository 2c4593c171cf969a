package ws

import (
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one live connection bound to an account at connect time.
// An account may hold several clients at once (multiple tabs/devices).
type Client struct {
	AccountID string
	Send      chan []byte
	Conn      *websocket.Conn
}

// Hub tracks which accounts are reachable right now. It owns the
// accountID -> connection-set map; nothing else writes it. An explicit
// instance is created at startup and handed to the connection handlers.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]bool // accountID -> live connections
	Register   chan *Client
	Unregister chan *Client
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        log,
	}
}

// Run drains the lifecycle channels. Connection handlers enqueue here so
// membership changes are serialized with the broadcasts they trigger.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Add(client)
		case client := <-h.Unregister:
			h.Remove(client)
		}
	}
}

// Add registers a connection. When it is the account's first live
// connection, every connected client receives the new online list.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	first := len(h.clients[client.AccountID]) == 0
	if h.clients[client.AccountID] == nil {
		h.clients[client.AccountID] = make(map[*Client]bool)
	}
	h.clients[client.AccountID][client] = true
	if first {
		h.broadcastOnlineLocked()
	}
	h.log.Debug("connection registered", zap.String("accountId", client.AccountID))
}

// Remove unregisters a connection. When the owning account's set becomes
// empty, the online list is re-broadcast.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	conns, ok := h.clients[client.AccountID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.clients, client.AccountID)
		h.broadcastOnlineLocked()
	}
	h.log.Debug("connection unregistered", zap.String("accountId", client.AccountID))
}

// Notify fans a frame out to every live connection of the given accounts.
// Offline accounts are a silent no-op. A client whose send buffer is full
// is dropped so one dead connection cannot stall the rest.
func (h *Hub) Notify(event string, payload interface{}, accountIDs ...string) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		h.log.Error("marshal frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var dropped []*Client
	for _, id := range accountIDs {
		for client := range h.clients[id] {
			select {
			case client.Send <- frame:
			default:
				dropped = append(dropped, client)
			}
		}
	}
	for _, client := range dropped {
		h.log.Warn("dropping stalled connection", zap.String("accountId", client.AccountID))
		h.dropLocked(client)
	}
}

// IsOnline reports whether the account has at least one live connection.
func (h *Hub) IsOnline(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID]) > 0
}

// OnlineAccounts returns the ids of every account with a live connection.
func (h *Hub) OnlineAccounts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineAccountsLocked()
}

func (h *Hub) onlineAccountsLocked() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectionsFor returns the account's live connections; empty when the
// account is offline, never an error.
func (h *Hub) ConnectionsFor(accountID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Client, 0, len(h.clients[accountID]))
	for client := range h.clients[accountID] {
		conns = append(conns, client)
	}
	return conns
}

// broadcastOnlineLocked pushes the full online snapshot to everyone. A
// client too slow to take it just misses this snapshot; the next
// membership change sends a fresh one.
func (h *Hub) broadcastOnlineLocked() {
	frame, err := NewFrame(EventOnlineAccounts, h.onlineAccountsLocked())
	if err != nil {
		h.log.Error("marshal online list", zap.Error(err))
		return
	}
	for _, conns := range h.clients {
		for client := range conns {
			select {
			case client.Send <- frame:
			default:
			}
		}
	}
}
