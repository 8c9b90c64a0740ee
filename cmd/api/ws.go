package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"safeguard/internal/monitor"
)

const (
	statusWSWriteWait = 10 * time.Second
	statusWSPongWait  = 60 * time.Second
	statusWSPingEvery = (statusWSPongWait * 9) / 10
)

var statusWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleStatusWS pushes a snapshot on every state transition. The client
// side is read-only; inbound frames only keep the connection alive.
func (s *apiServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := statusWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(statusWSPongWait)); err != nil {
		log.Printf("status ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(statusWSPongWait))
	})

	writeCh := make(chan monitor.Snapshot, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(statusWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(statusWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(statusWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	sub := s.mon.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					return
				}
				pushStatusWS(writeCh, snap)
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			return
		}
	}
}

func pushStatusWS(writeCh chan monitor.Snapshot, snap monitor.Snapshot) {
	select {
	case writeCh <- snap:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- snap:
	default:
	}
}
