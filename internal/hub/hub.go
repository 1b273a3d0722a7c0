// Package hub fans account events out to the account's open websocket
// connections.
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	AccountID string
	Writer    Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
	log         logrus.FieldLogger
}

func New() *Hub {
	return NewWithLogger(logrus.StandardLogger())
}

func NewWithLogger(log logrus.FieldLogger) *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{}), log: log}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.AccountID] == nil {
		h.connections[conn.AccountID] = make(map[*Connection]struct{})
	}
	h.connections[conn.AccountID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(conn)
}

func (h *Hub) unregisterLocked(conn *Connection) {
	set := h.connections[conn.AccountID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.AccountID)
	}
}

// Count returns the number of open connections for the account.
func (h *Hub) Count(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[accountID])
}

func (h *Hub) snapshot(accountID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.connections[accountID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) Broadcast(accountID string, message []byte) {
	var failed []*Connection
	for _, c := range h.snapshot(accountID) {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.log.WithField("account", accountID).Debug("dropping connection after failed write")
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// Disconnect closes every connection of the account.
func (h *Hub) Disconnect(accountID string) {
	h.mu.Lock()
	set := h.connections[accountID]
	delete(h.connections, accountID)
	h.mu.Unlock()

	for c := range set {
		_ = c.Writer.Close()
	}
}
