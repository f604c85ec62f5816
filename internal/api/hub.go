package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stock_dash/internal/event"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	clientBuffer = 256
)

// ConnCounter tracks open websocket clients. infra.Metrics implements it.
type ConnCounter interface {
	IncrementConnections()
	DecrementConnections()
}

// Hub streams bus events to websocket clients. Each client gets its own bus
// subscription, so a slow client only loses its own events.
type Hub struct {
	bus      *event.Bus
	counter  ConnCounter
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
	wg    sync.WaitGroup
}

func NewHub(bus *event.Bus, counter ConnCounter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		bus:     bus,
		counter: counter,
		logger:  logger.With("module", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades the request. ?types=quote_updated,alert_triggered limits
// the stream to those event types.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	var types []event.Type
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, event.Type(t))
			}
		}
	}

	id := "ws-" + uuid.NewString()
	sub := h.bus.Subscribe(id, clientBuffer, types...)

	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	if h.counter != nil {
		h.counter.IncrementConnections()
	}
	h.logger.Info("🔌 Websocket client connected", slog.String("id", id), slog.String("remote", r.RemoteAddr))

	h.wg.Add(1)
	go h.serve(id, conn, sub)
}

func (h *Hub) serve(id string, conn *websocket.Conn, sub *event.Subscriber) {
	defer h.wg.Done()
	defer func() {
		h.bus.Unsubscribe(id)
		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()
		conn.Close()
		if h.counter != nil {
			h.counter.DecrementConnections()
		}
		h.logger.Info("Websocket client disconnected", slog.String("id", id))
	}()

	// Reader: only control frames are expected. It ends when the client goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("Websocket write failed", slog.String("id", id), slog.Any("error", err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, c := range h.conns {
		c.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}
