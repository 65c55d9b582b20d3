package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bugtrack/bugtrack-server/internal/domain"
)

func newHubServer(hub *ActivityHub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team := strings.TrimPrefix(r.URL.Path, "/ws/")
		hub.Serve(team, w, r)
	}))
}

func dialHub(t *testing.T, server *httptest.Server, team string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + team
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return conn
}

func TestBroadcastReachesTeamOnly(t *testing.T) {
	hub := NewActivityHub(zap.NewNop().Sugar())
	server := newHubServer(hub)
	defer server.Close()

	core := dialHub(t, server, "core-team")
	defer core.Close()
	other := dialHub(t, server, "other-team")
	defer other.Close()

	// wait until Serve registered the connections
	assert.Eventually(t, func() bool {
		return len(hub.teams.List("core-team")) == 1 && len(hub.teams.List("other-team")) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("core-team", domain.TicketEvent{Action: "created", Ticket: "crash-on-login"})

	var msg message
	core.SetReadDeadline(time.Now().Add(time.Second))
	if assert.NoError(t, core.ReadJSON(&msg)) {
		assert.Equal(t, "ticket.activity", msg.Type)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcastConcurrent(t *testing.T) {
	hub := NewActivityHub(zap.NewNop().Sugar())
	server := newHubServer(hub)
	defer server.Close()

	conn := dialHub(t, server, "core-team")
	defer conn.Close()
	assert.Eventually(t, func() bool {
		return len(hub.teams.List("core-team")) == 1
	}, time.Second, 10*time.Millisecond)

	// broadcasts arrive from request handler goroutines, so writes to a
	// single connection must be serialized
	const events = 50
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("core-team", domain.TicketEvent{Action: "commented", Ticket: "crash-on-login"})
		}()
	}
	wg.Wait()

	for i := 0; i < events; i++ {
		var msg message
		conn.SetReadDeadline(time.Now().Add(time.Second))
		if !assert.NoError(t, conn.ReadJSON(&msg)) {
			return
		}
		assert.Equal(t, "ticket.activity", msg.Type)
	}
}

func TestBroadcastDropsClosedConnections(t *testing.T) {
	hub := NewActivityHub(zap.NewNop().Sugar())
	server := newHubServer(hub)
	defer server.Close()

	conn := dialHub(t, server, "core-team")
	assert.Eventually(t, func() bool {
		return len(hub.teams.List("core-team")) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		return len(hub.teams.List("core-team")) == 0
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("core-team", domain.TicketEvent{Action: "created"})
}
