package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/eta"
)

const keepAliveInterval = 15 * time.Second

type streamClient struct {
	send chan []byte
}

// StreamHub pushes every expanded stop's view to SSE clients whenever the
// board changes (poll result, tick, expand or collapse)
type StreamHub struct {
	board   *eta.Board
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

func NewStreamHub(board *eta.Board) *StreamHub {
	return &StreamHub{board: board, clients: make(map[*streamClient]struct{})}
}

// Run broadcasts until ctx is cancelled
func (h *StreamHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.board.Updates():
			h.broadcast()
		}
	}
}

func (h *StreamHub) broadcast() {
	data, err := h.snapshot()
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// slow client, it gets the next update
		}
	}
}

func (h *StreamHub) snapshot() ([]byte, error) {
	return json.Marshal(h.board.Views())
}

// HandleStream handles GET /api/eta/stream
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &streamClient{send: make(chan []byte, 8)}
	h.register(client)
	defer h.unregister(client)

	if initial, err := h.snapshot(); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", initial)
		flusher.Flush()
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-client.send:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *StreamHub) register(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *StreamHub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Clients returns the number of connected clients
func (h *StreamHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
