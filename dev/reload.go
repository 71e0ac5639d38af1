package dev

import (
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"
)

// ReloadMessage is sent to every connected page when inputs change.
const ReloadMessage = "reload"

// Hub keeps the open reload sockets.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan string
	Log   *slog.Logger
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan string)}
}

// Handler serves one page's reload socket until it disconnects.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		ch := make(chan string, 1)
		h.mu.Lock()
		h.conns[conn] = ch
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
			conn.Close()
		}()

		done := make(chan struct{})
		go func() {
			// pages never send; a read returning means the socket closed
			io.Copy(io.Discard, conn)
			close(done)
		}()
		for {
			select {
			case <-done:
				return
			case msg := <-ch:
				if err := websocket.Message.Send(conn, msg); err != nil {
					if h.Log != nil {
						h.Log.Debug("reload send failed", "err", err)
					}
					return
				}
			}
		}
	})
}

// Broadcast queues msg for every connected page. A page that has not taken
// its previous message yet gets only one.
func (h *Hub) Broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.conns {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Len is the number of connected pages.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
