package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/hub"
)

// EventsHandler streams the account's events over a websocket.
type EventsHandler struct {
	Hub *hub.Hub
}

type clientMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type      string `json:"type"`
	AccountID string `json:"accountId,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serialises writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) ping(deadline time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *EventsHandler) Serve(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{AccountID: acc.ID, Writer: writer}
	h.Hub.Register(conn)
	log := logrus.WithField("account", acc.ID)
	log.Debug("events connection opened")
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
		log.Debug("events connection closed")
	}()

	hello, _ := json.Marshal(serverMessage{Type: "hello", AccountID: acc.ID})
	if err := writer.Write(hello); err != nil {
		return
	}

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writer.ping(time.Now().Add(writeWait)); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			out, _ := json.Marshal(serverMessage{Type: "pong"})
			_ = writer.Write(out)
		}
	}
}
