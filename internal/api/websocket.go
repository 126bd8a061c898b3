package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams events to a WebSocket client, starting with the
// recent backlog. ?prefix=node.,choice. limits the stream to matching names.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	var prefixes []string
	if p := r.URL.Query().Get("prefix"); p != "" {
		prefixes = strings.Split(p, ",")
	}
	sub := events.Subscribe(prefixes...)
	log := s.log.With(zap.String("remote", r.RemoteAddr))
	log.Debug("ws client connected", zap.Strings("prefixes", prefixes))

	closeConn := func() {
		events.Unsubscribe(sub)
		conn.Close()
	}

	for _, e := range events.RecentMatching(recentEventsCount, prefixes...) {
		if err := writeEvent(conn, e); err != nil {
			log.Debug("ws write recent event failed", zap.Error(err))
			closeConn()
			return
		}
	}

	// Reader goroutine - handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeConn()
			return

		case e, ok := <-sub:
			if !ok {
				// shut down by CloseAllSubscribers
				conn.Close()
				return
			}
			if err := writeEvent(conn, e); err != nil {
				log.Debug("ws write event failed", zap.Error(err))
				closeConn()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
