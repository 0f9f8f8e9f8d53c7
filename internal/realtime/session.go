// Package realtime serves a roadmap view over a WebSocket so the renderer
// can push click and completion events and receive updated views.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/LikhithSP/Knowledge-Tree/internal/orchestrator"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

// Message types.
const (
	TypeView       = "view"
	TypeClick      = "click"
	TypeComplete   = "complete"
	TypeQuiz       = "quiz"
	TypeTopic      = "topic"
	TypeCompletion = "completion"
	TypeError      = "error"
)

const writeTimeout = 10 * time.Second

// ClientMessage is an event sent by the renderer.
type ClientMessage struct {
	Type    string         `json:"type"`
	TopicID string         `json:"topic_id,omitempty"`
	Score   *int           `json:"score,omitempty"`
	Answers map[string]int `json:"answers,omitempty"`
}

// ServerMessage is a reply pushed to the renderer.
type ServerMessage struct {
	Type       string                         `json:"type"`
	View       *orchestrator.View             `json:"view,omitempty"`
	Topic      *roadmap.Topic                 `json:"topic,omitempty"`
	Completion *orchestrator.CompletionResult `json:"completion,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

// Serve upgrades the request and runs a session for o until the client
// disconnects or ctx is cancelled.
func Serve(w http.ResponseWriter, r *http.Request, o *orchestrator.Orchestrator, opts *websocket.AcceptOptions) {
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	if err := Run(r.Context(), conn, o); err != nil {
		slog.Warn("websocket session ended", "error", err)
		conn.Close(websocket.StatusInternalError, "session error")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// Run drives one session on an accepted connection. It returns nil when
// the client closes normally.
func Run(ctx context.Context, conn *websocket.Conn, o *orchestrator.Orchestrator) error {
	view := o.View()
	if err := send(ctx, conn, ServerMessage{Type: TypeView, View: &view}); err != nil {
		return err
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		for _, reply := range handle(ctx, o, msg) {
			if err := send(ctx, conn, reply); err != nil {
				return err
			}
		}
	}
}

func handle(ctx context.Context, o *orchestrator.Orchestrator, msg ClientMessage) []ServerMessage {
	switch msg.Type {
	case TypeView:
		view := o.View()
		return []ServerMessage{{Type: TypeView, View: &view}}

	case TypeClick:
		t, err := o.Click(msg.TopicID)
		if err != nil {
			return []ServerMessage{errorMessage(err)}
		}
		return []ServerMessage{{Type: TypeTopic, Topic: t}}

	case TypeComplete, TypeQuiz:
		var res orchestrator.CompletionResult
		var err error
		if msg.Type == TypeQuiz {
			res, err = o.SubmitQuiz(ctx, msg.TopicID, msg.Answers)
		} else {
			if msg.Score == nil {
				return []ServerMessage{{Type: TypeError, Error: "score is required"}}
			}
			res, err = o.Complete(ctx, msg.TopicID, *msg.Score)
		}
		if err != nil {
			return []ServerMessage{errorMessage(err)}
		}
		view := o.View()
		return []ServerMessage{
			{Type: TypeCompletion, Completion: &res},
			{Type: TypeView, View: &view},
		}
	}
	return []ServerMessage{{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)}}
}

func errorMessage(err error) ServerMessage {
	return ServerMessage{Type: TypeError, Error: err.Error()}
}

func send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}
