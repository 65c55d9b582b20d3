package ws

import (
	"net/http"
	"sync"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// client wraps a connection with a write lock. Gorilla websocket
// connections support only one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(msg message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

/* Structure for managing websocket connections for concurrent access */
type connectionsMap struct {
	sync.RWMutex
	// team slug -> connections of team members
	connections map[string]map[*client]bool
}

func (m *connectionsMap) Add(team string, c *client) {
	m.Lock()
	defer m.Unlock()
	set, ok := m.connections[team]
	if !ok {
		set = make(map[*client]bool)
		m.connections[team] = set
	}
	set[c] = true
}

func (m *connectionsMap) Remove(team string, c *client) {
	m.Lock()
	defer m.Unlock()
	if set, ok := m.connections[team]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(m.connections, team)
		}
	}
}

func (m *connectionsMap) List(team string) []*client {
	m.RLock()
	defer m.RUnlock()
	set := m.connections[team]
	clients := make([]*client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// ActivityHub pushes ticket events to connected team members.
type ActivityHub struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
	teams    *connectionsMap
}

func NewActivityHub(log *zap.SugaredLogger) *ActivityHub {
	return &ActivityHub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		teams: &connectionsMap{connections: make(map[string]map[*client]bool)},
	}
}

// Serve upgrades the request and keeps the connection registered until
// the client disconnects. Blocks while the connection lives.
func (h *ActivityHub) Serve(team string, w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn}
	h.teams.Add(team, c)
	defer func() {
		h.teams.Remove(team, c)
		conn.Close()
	}()
	// drain control messages; the stream is one-directional
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Broadcast sends the event to every connection watching the team.
func (h *ActivityHub) Broadcast(team string, event domain.TicketEvent) {
	for _, c := range h.teams.List(team) {
		if err := c.send(message{Type: "ticket.activity", Data: event}); err != nil {
			h.log.Warnw("activity broadcast", "team", team, zap.Error(err))
			h.teams.Remove(team, c)
			c.conn.Close()
		}
	}
}
