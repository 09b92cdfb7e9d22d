package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/realtime"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/utils"
	"github.com/yoockh/scribe/internal/workers"
)

// Enqueuer accepts audio chunks for transcription.
type Enqueuer interface {
	Enqueue(chunk models.Chunk) error
}

type WSHandler struct {
	ctx       context.Context
	sessions  services.SessionService
	queue     Enqueuer
	finalizer services.FinalizeService
	hub       *realtime.Hub
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler builds the session channel endpoint. ctx outlives individual
// connections and scopes the storage calls made on their behalf. An empty
// allowedOrigins accepts any origin.
func NewWSHandler(ctx context.Context, sessions services.SessionService, queue Enqueuer, finalizer services.FinalizeService, hub *realtime.Hub, log *logrus.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		ctx:       ctx,
		sessions:  sessions,
		queue:     queue,
		finalizer: finalizer,
		hub:       hub,
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}

	conn := realtime.NewConn(ws, userID, h.log)
	go conn.WritePump()
	defer func() {
		h.hub.Leave(conn)
		conn.Close()
	}()

	conn.ReadPump(
		func(env realtime.Envelope) { h.dispatch(conn, env) },
		func(err error) {
			_ = conn.Emit(realtime.EventSessionError, realtime.ErrorPayload{
				Message: "invalid message",
				Code:    string(utils.CodeInvalidArgument),
			})
		},
	)
}

func (h *WSHandler) dispatch(conn *realtime.Conn, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventJoinSession:
		h.onJoin(conn, env.Data)
	case realtime.EventAudioStream:
		h.onAudio(conn, env.Data)
	case realtime.EventStopSession:
		h.onStop(conn, env.Data)
	default:
		_ = conn.Emit(realtime.EventSessionError, realtime.ErrorPayload{
			Message: "unknown event " + env.Event,
			Code:    string(utils.CodeInvalidArgument),
		})
	}
}

// decode unmarshals and validates an event payload, answering the sender with
// errEvent on failure.
func decode[T any](conn *realtime.Conn, op, errEvent string, raw json.RawMessage) (*T, bool) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		emitError(conn, errEvent, utils.E(utils.CodeInvalidArgument, op, "invalid payload", err))
		return nil, false
	}
	if err := utils.ValidateStruct(op, &p); err != nil {
		emitError(conn, errEvent, err)
		return nil, false
	}
	return &p, true
}

func emitError(conn *realtime.Conn, event string, err error) {
	_ = conn.Emit(event, realtime.ErrorPayload{
		Message: utils.SafeMessage(err),
		Code:    string(utils.CodeOf(err)),
		Fields:  utils.FieldErrors(err),
	})
}

func (h *WSHandler) onJoin(conn *realtime.Conn, raw json.RawMessage) {
	const op = "WSHandler.Join"

	p, ok := decode[realtime.JoinSessionPayload](conn, op, realtime.EventJoinError, raw)
	if !ok {
		return
	}
	if p.UserID != conn.UserID {
		emitError(conn, realtime.EventJoinError, utils.E(utils.CodeForbidden, op, "userId does not match token", nil))
		return
	}

	session, err := h.sessions.Join(h.ctx, p.SessionID, p.UserID)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"session_id": p.SessionID, "user_id": p.UserID}).Warn("join failed")
		emitError(conn, realtime.EventJoinError, err)
		return
	}

	h.hub.Join(conn, session.SessionID)
	_ = conn.Emit(realtime.EventJoined, realtime.JoinedPayload{SessionID: session.SessionID, State: session.Status})

	h.log.WithFields(logrus.Fields{"session_id": session.SessionID, "user_id": p.UserID, "state": session.Status}).Info("joined session")
}

func (h *WSHandler) onAudio(conn *realtime.Conn, raw json.RawMessage) {
	const op = "WSHandler.AudioStream"

	p, ok := decode[realtime.AudioStreamPayload](conn, op, realtime.EventTranscriptionError, raw)
	if !ok {
		return
	}
	if p.UserID != conn.UserID || !conn.Joined(p.SessionID) {
		emitError(conn, realtime.EventTranscriptionError, utils.E(utils.CodeFailedPrecondition, op, "join the session before streaming", nil))
		return
	}

	err := h.queue.Enqueue(models.Chunk{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Data:      p.Chunk,
		MimeType:  p.MimeType,
		Start:     p.Start,
		End:       p.End,
	})
	if errors.Is(err, workers.ErrSessionStopping) {
		emitError(conn, realtime.EventTranscriptionError, utils.E(utils.CodeFailedPrecondition, op, "session is stopping", err))
		return
	}
	if err != nil {
		emitError(conn, realtime.EventTranscriptionError, utils.E(utils.CodeInternal, op, "failed to queue audio", err))
	}
}

func (h *WSHandler) onStop(conn *realtime.Conn, raw json.RawMessage) {
	const op = "WSHandler.StopSession"

	p, ok := decode[realtime.StopSessionPayload](conn, op, realtime.EventSessionError, raw)
	if !ok {
		return
	}
	if p.UserID != conn.UserID || !conn.Joined(p.SessionID) {
		emitError(conn, realtime.EventSessionError, utils.E(utils.CodeFailedPrecondition, op, "join the session before stopping it", nil))
		return
	}

	h.finalizer.RequestStop(p.SessionID, p.AudioURL)
}
