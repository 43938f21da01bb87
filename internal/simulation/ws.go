package simulation

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

const wsReplyTimeout = 60 * time.Second

// wsInbound is one trainee utterance over the socket.
type wsInbound struct {
	Text string `json:"text"`
}

// wsOutbound is one client reply over the socket.
type wsOutbound struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// HandleWS upgrades the request and runs a read-reply loop for one live
// simulation: each trainee message produces exactly one client reply. The
// loop ends when the peer closes or the request context is cancelled.
func (e *Engine) HandleWS(w http.ResponseWriter, r *http.Request, userID string, topic catalog.Topic) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		var in wsInbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return
		}
		if in.Text == "" {
			continue
		}

		replyCtx, cancel := context.WithTimeout(ctx, wsReplyTimeout)
		reply, err := e.ClientReply(replyCtx, userID, topic, in.Text)
		cancel()
		if err != nil {
			slog.Error("client reply failed", "user_id", userID, "topic", topic.Code, "error", err)
			conn.Close(websocket.StatusInternalError, "simulation unavailable")
			return
		}

		if err := wsjson.Write(ctx, conn, wsOutbound{Role: "client", Text: reply}); err != nil {
			return
		}
	}
}
