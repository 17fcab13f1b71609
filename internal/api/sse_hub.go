package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"lraide/internal"
	"lraide/internal/session"
)

// registryStream is the hub key of the registry-wide stream.
const registryStream = "registry"

// SSEHub streams session events to Server-Sent Events clients and keeps a
// count of connected clients per stream.
type SSEHub struct {
	clients   map[string]int
	clientsMu sync.RWMutex
	buffer    int
	ping      time.Duration
	logger    *internal.Logger
}

// NewSSEHub creates a hub with a 30s keep-alive ping.
func NewSSEHub(logger *internal.Logger) *SSEHub {
	return &SSEHub{
		clients: make(map[string]int),
		buffer:  32,
		ping:    30 * time.Second,
		logger:  logger.WithComponent("sse"),
	}
}

// SetPingInterval changes the keep-alive interval for new streams.
func (h *SSEHub) SetPingInterval(d time.Duration) {
	h.clientsMu.Lock()
	h.ping = d
	h.clientsMu.Unlock()
}

func (h *SSEHub) register(key string) time.Duration {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[key]++
	return h.ping
}

func (h *SSEHub) unregister(key string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.clients[key] <= 1 {
		delete(h.clients, key)
		return
	}
	h.clients[key]--
}

// Serve streams events to the client until the request ends or events is
// closed. initial, when non-nil, is sent first as a "view" event so a client
// starts from a consistent state.
func (h *SSEHub) Serve(c *gin.Context, key string, events <-chan session.Event, initial *session.View) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	ping := h.register(key)
	defer h.unregister(key)
	h.logger.Debug("client connected to %s", key)

	c.Status(http.StatusOK)
	if initial != nil {
		c.SSEvent("view", initial)
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				c.SSEvent("end", gin.H{"stream": key})
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true

		case <-time.After(ping):
			c.SSEvent("ping", gin.H{"status": "alive", "timestamp": time.Now().UTC().Format(time.RFC3339)})
			return true

		case <-ctx.Done():
			return false
		}
	})
	h.logger.Debug("client left %s", key)
}

// ClientCount returns the number of connected clients across all streams.
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	n := 0
	for _, c := range h.clients {
		n += c
	}
	return n
}

// StreamClients returns the number of clients on one stream.
func (h *SSEHub) StreamClients(key string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[key]
}

func (s *Server) handleSessionEvents(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	events, cancel := sess.Subscribe(s.hub.buffer)
	defer cancel()
	s.hub.Serve(c, string(sess.ID()), events, sess.View())
}

func (s *Server) handleRegistryEvents(c *gin.Context) {
	events, cancel := s.registry.Subscribe(s.hub.buffer)
	defer cancel()
	s.hub.Serve(c, registryStream, events, nil)
}
