package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"roomchat/internal/room"
	"roomchat/internal/tracing"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// wsClient pushes JSON snapshots to one websocket peer. Snapshots are
// dropped when the peer falls behind; the next one carries the full state.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			s.logger.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		client := &wsClient{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, wsSendBuffer),
		}
		log := s.logger.WithFields(logrus.Fields{
			"client_id":  client.id,
			"request_id": tracing.GetRequestID(r.Context()),
		})

		push := func(snap room.Snapshot) {
			data, err := json.Marshal(snap)
			if err != nil {
				log.WithError(err).Error("Failed to encode snapshot")
				return
			}
			if !client.enqueue(data) {
				s.registry.IncrementCounter("ws_snapshots_dropped_total", nil, "Snapshots dropped for slow websocket clients")
			}
		}

		unsubscribe := s.session.OnChange(push)
		push(s.session.Snapshot())

		s.registry.AddToCounter("ws_clients_active", 1, nil, "Connected websocket clients")
		log.Info("WebSocket client connected")

		// CloseRead discards inbound frames and cancels ctx when the peer goes away
		ctx := conn.CloseRead(context.WithoutCancel(r.Context()))
		err = client.writeLoop(ctx)

		unsubscribe()
		s.registry.AddToCounter("ws_clients_active", -1, nil, "Connected websocket clients")

		if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			log.Info("WebSocket client disconnected")
		} else {
			log.WithError(err).Debug("WebSocket client closed")
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}
