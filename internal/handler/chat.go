// Package handler provides HTTP handlers for the support assistant API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/apperr"
	"github.com/brightcart/support-assistant/internal/middleware"
	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/pkg/logger"
)

// Replier is the orchestration surface the chat handler consumes.
type Replier interface {
	Reply(ctx context.Context, sessionID, userText string) (*model.Reply, error)
}

// ChatHandler handles the chat turn endpoint.
type ChatHandler struct {
	service Replier
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service Replier, log *logger.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: log}
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.KindInput), "Invalid request body.")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, string(apperr.KindInput), "Session ID is required.")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, string(apperr.KindInput), "Message is required.")
		return
	}

	log := h.logger.WithSession(middleware.GetCorrelationID(r.Context()), req.SessionID)
	log.Info("processing chat turn", zap.Int("message_length", len(req.Message)))

	reply, err := h.service.Reply(r.Context(), req.SessionID, req.Message)
	if err != nil {
		kind := apperr.KindOf(err)
		log.Error("chat turn failed", zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, apperr.HTTPStatus(kind), string(kind), apperr.MessageOf(err))
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		Reply:     reply.Payload,
		SessionID: reply.SessionID,
	})
}
