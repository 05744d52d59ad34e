package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"streethustle/internal/game"
	"streethustle/internal/httpmw"
)

// streamed reports whether the view cares about a signal type.
func streamed(t game.SignalType) bool {
	switch t {
	case game.SignalChanged, game.SignalNotice, game.SignalCoin:
		return true
	}
	return false
}

func (a *api) stream(w http.ResponseWriter, r *http.Request) {
	rid := httpmw.RequestIDFromContext(r.Context())
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "request_id", rid, "err", err)
		return
	}
	signals, unsubscribe := a.game.Subscribe(128)
	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()
	a.logger.Info("stream opened", "request_id", rid)

	// The client never sends anything we act on; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !a.send(conn, game.Changed()) {
		return
	}
	for {
		select {
		case <-closed:
			a.logger.Info("stream closed", "request_id", rid)
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if !streamed(sig.Type) {
				continue
			}
			if !a.send(conn, sig) {
				return
			}
		}
	}
}

func (a *api) send(conn *websocket.Conn, sig game.Signal) bool {
	data, err := json.Marshal(sig)
	if err != nil {
		a.logger.Error("marshal signal", "err", err)
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(a.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data) == nil
}
