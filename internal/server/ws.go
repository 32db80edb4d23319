package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/history"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// handleWebSocket attaches a viewer to ?session=. Binary messages are frames,
// text messages are JSON commands. The server pushes state and match events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(s.maxFrameBytes)

	ctx, cancel := context.WithCancel(trace.WithSession(r.Context(), sess.ID))
	defer cancel()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	events, unsubscribe := sess.History().Subscribe()
	go s.pushEvents(ctx, cancel, conn, sess, events, unsubscribe)

	rl := s.limiters.get(sess.ID)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if !rl.allow() {
				log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
				_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
				continue
			}
			img, err := imageutil.DecodeMax(data, s.maxFramePixels)
			if err == nil {
				err = sess.PushFrame(img)
			}
			if err != nil {
				_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
			}
		case websocket.MessageText:
			s.handleCommand(ctx, conn, sess, data)
		}
	}
}

func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, sess *orchestrator.Session, data []byte) {
	var base Message
	if err := json.Unmarshal(data, &base); err != nil {
		return
	}

	switch base.Type {
	case "mode":
		var msg ModeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		mode, err := overlay.ParseMode(msg.Mode)
		if err != nil {
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
			return
		}
		sess.SetMode(mode)
		trace.Logger(ctx).Info("render mode changed", "mode", mode)
	case "state":
		_ = wsjson.Write(ctx, conn, StateMessage{Type: "state", State: stateOf(sess)})
	}
}

// pushEvents writes a state message whenever a new version commits and a
// match message for every history event. It cancels the connection when the
// session goes away.
func (s *Server) pushEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *orchestrator.Session, events <-chan history.Event, unsubscribe func()) {
	defer cancel()
	defer unsubscribe()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var version uint64
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := wsjson.Write(ctx, conn, MatchMessage{Type: "match", Event: ev}); err != nil {
				return
			}
		case <-ticker.C:
			st := stateOf(sess)
			if st.Version == version {
				continue
			}
			version = st.Version
			if err := wsjson.Write(ctx, conn, StateMessage{Type: "state", State: st}); err != nil {
				return
			}
		}
	}
}
