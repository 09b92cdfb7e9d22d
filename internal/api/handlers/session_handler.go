package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/utils"
)

type SessionHandler struct {
	svc         services.SessionService
	transcripts services.TranscriptService
	finalizer   services.FinalizeService
}

func NewSessionHandler(svc services.SessionService, transcripts services.TranscriptService, finalizer services.FinalizeService) *SessionHandler {
	return &SessionHandler{svc: svc, transcripts: transcripts, finalizer: finalizer}
}

type StartSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type StartSessionResponse struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Status    models.Status `json:"status"`
	CreatedAt string        `json:"created_at"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	const op = "SessionHandler.Start"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
			return
		}
	}
	if err := utils.ValidateStruct(op, &req); err != nil {
		writeError(c, err)
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), userID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StartSessionResponse{
		SessionID: sess.SessionID,
		Title:     sess.Title,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.svc.GetOwned(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// End stops a session over HTTP, for clients that lost their channel.
func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if _, err := h.svc.GetOwned(c.Request.Context(), sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	accepted := h.finalizer.RequestStop(sessionID, "")
	c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID, "accepted": accepted})
}

// Transcript serves the plain-text export as a download.
func (h *SessionHandler) Transcript(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	exp, err := h.transcripts.Export(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		if !utils.IsCode(err, utils.CodeNotFound) && !utils.IsCode(err, utils.CodeInvalidArgument) {
			err = utils.E(utils.CodeInternal, "SessionHandler.Transcript", "failed to export transcript", err)
		}
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename()+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(exp.Text()))
}
