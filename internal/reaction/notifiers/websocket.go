package notifiers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/daniacca/molgrid/internal/reaction"
	"github.com/gorilla/websocket"
)

// ErrNotifierClosed is returned by Notify after Close.
var ErrNotifierClosed = errors.New("notifier closed")

// WebSocketNotifier streams chart events to connected WebSocket clients.
// A client may restrict itself to one chart with the ?chart= query
// parameter.
type WebSocketNotifier struct {
	id        string
	mu        sync.RWMutex
	clients   map[*websocket.Conn]reaction.ChartID
	upgrader  websocket.Upgrader
	broadcast chan reaction.NotificationEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketNotifier creates a new WebSocket notifier
func NewWebSocketNotifier(id string) *WebSocketNotifier {
	notifier := &WebSocketNotifier{
		id:        id,
		clients:   make(map[*websocket.Conn]reaction.ChartID),
		broadcast: make(chan reaction.NotificationEvent, 256),
		done:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	notifier.wg.Add(1)
	go notifier.run()

	return notifier
}

func (wsn *WebSocketNotifier) ID() string {
	return wsn.id
}

func (wsn *WebSocketNotifier) Type() string {
	return "websocket"
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (wsn *WebSocketNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		return
	}
	if !wsn.RegisterClient(conn, reaction.ChartID(r.URL.Query().Get("chart"))) {
		conn.Close()
		return
	}
	go func() {
		defer wsn.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// RegisterClient adds a connection. An empty chart receives every chart's
// events. It returns false once the notifier is closed.
func (wsn *WebSocketNotifier) RegisterClient(conn *websocket.Conn, chart reaction.ChartID) bool {
	if conn == nil {
		return false
	}
	wsn.mu.Lock()
	defer wsn.mu.Unlock()
	select {
	case <-wsn.done:
		return false
	default:
	}
	wsn.clients[conn] = chart
	return true
}

// UnregisterClient removes and closes a connection
func (wsn *WebSocketNotifier) UnregisterClient(conn *websocket.Conn) {
	wsn.mu.Lock()
	defer wsn.mu.Unlock()
	if _, ok := wsn.clients[conn]; ok {
		delete(wsn.clients, conn)
		conn.Close()
	}
}

// Clients returns the number of connected clients
func (wsn *WebSocketNotifier) Clients() int {
	wsn.mu.RLock()
	defer wsn.mu.RUnlock()
	return len(wsn.clients)
}

// Notify queues the event for broadcast.
func (wsn *WebSocketNotifier) Notify(ctx context.Context, event reaction.NotificationEvent) error {
	select {
	case <-wsn.done:
		return ErrNotifierClosed
	default:
	}
	select {
	case wsn.broadcast <- event:
		return nil
	case <-wsn.done:
		return ErrNotifierClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(1 * time.Second):
		return errors.New("notification queue full")
	}
}

// run is the only goroutine writing to client connections.
func (wsn *WebSocketNotifier) run() {
	defer wsn.wg.Done()
	for {
		select {
		case <-wsn.done:
			return
		case event := <-wsn.broadcast:
			wsn.send(event)
		}
	}
}

func (wsn *WebSocketNotifier) send(event reaction.NotificationEvent) {
	jsonData, err := event.JSON()
	if err != nil {
		return
	}

	wsn.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(wsn.clients))
	for conn, chart := range wsn.clients {
		if chart == "" || chart == event.ChartID {
			conns = append(conns, conn)
		}
	}
	wsn.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			wsn.UnregisterClient(conn)
		}
	}
}

// Close disconnects all clients and stops the broadcaster. It is safe to
// call more than once.
func (wsn *WebSocketNotifier) Close() error {
	wsn.closeOnce.Do(func() {
		wsn.mu.Lock()
		close(wsn.done)
		wsn.mu.Unlock()

		wsn.wg.Wait()

		wsn.mu.Lock()
		for conn := range wsn.clients {
			conn.Close()
			delete(wsn.clients, conn)
		}
		wsn.mu.Unlock()
	})
	return nil
}

// GetUpgrader returns the WebSocket upgrader for HTTP handlers
func (wsn *WebSocketNotifier) GetUpgrader() websocket.Upgrader {
	return wsn.upgrader
}
