package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// websocketEvents relays events over a websocket. Client messages are ignored;
// reading only detects disconnects.
func (s *Server) websocketEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.config.EnableCORS,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	conn.SetReadLimit(64 * 1024)
	defer conn.CloseNow()

	l := s.hub.add(r.URL.Query().Get("sessionID"))
	defer s.hub.remove(l)

	ctx := conn.CloseRead(r.Context())

	write := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, data)
	}

	connected := SDKEvent{Type: "server.connected", Properties: json.RawMessage(fmt.Sprintf(`{"listenerId":%q}`, l.id))}
	if err := write(connected); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ev); err != nil {
				return
			}
		}
	}
}
