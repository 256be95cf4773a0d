// Package service provides the chat orchestration for the support assistant.
package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/apperr"
	"github.com/brightcart/support-assistant/internal/events"
	"github.com/brightcart/support-assistant/internal/llm"
	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/pkg/logger"
	"github.com/brightcart/support-assistant/pkg/metrics"
)

// HistoryStore is the repository surface the orchestrator needs.
type HistoryStore interface {
	History(ctx context.Context, sessionID string) ([]model.Turn, error)
	SaveMessage(ctx context.Context, sessionID, userText string, payload model.GenerationPayload) (*model.Message, error)
}

// TurnCache receives the best-effort cache update after persistence.
type TurnCache interface {
	Append(ctx context.Context, sessionID, userText, assistantText string)
}

// EventSink receives best-effort lifecycle events.
type EventSink interface {
	PublishMessageStored(ctx context.Context, evt events.MessageStored)
}

// Options bounds one chat turn.
type Options struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	MaxMessageLength int
	MaxHistoryTurns  int
	GenerateTimeout  time.Duration
}

// ChatService orchestrates one reply: admission-checked input in, generated
// and durably recorded turn out.
type ChatService struct {
	repo    HistoryStore
	cache   TurnCache
	backend llm.Client
	events  EventSink
	opts    Options
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewChatService creates the reply orchestrator.
func NewChatService(repo HistoryStore, cache TurnCache, backend llm.Client, sink EventSink, opts Options, log *logger.Logger) *ChatService {
	return &ChatService{
		repo:    repo,
		cache:   cache,
		backend: backend,
		events:  sink,
		opts:    opts,
		logger:  log,
		tracer:  otel.Tracer("support-assistant/chat"),
	}
}

// Reply handles one chat turn for a session.
//
// The generation call is the only step bound by an explicit timeout; on
// expiry the in-flight call is cancelled and the turn fails as a timeout
// with nothing persisted. Persistence failure after a successful generation
// propagates without rolling back the already-spent generation. The cache
// update and the event publish never fail the caller.
func (s *ChatService) Reply(ctx context.Context, sessionID, userText string) (*model.Reply, error) {
	ctx, span := s.tracer.Start(ctx, "chat.reply",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if userText == "" {
		return nil, apperr.New(apperr.KindInput, "Message is required.")
	}
	if utf8.RuneCountInString(userText) > s.opts.MaxMessageLength {
		return nil, apperr.New(apperr.KindInput,
			fmt.Sprintf("Message too long. Maximum length is %d characters.", s.opts.MaxMessageLength))
	}

	history, err := s.repo.History(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "Failed to load the conversation.", err)
	}

	gen, err := s.generate(ctx, history, userText)
	if err != nil {
		return nil, err
	}

	payload := model.GenerationPayload{
		Response:  gen.Text,
		Model:     gen.Model,
		CreatedAt: gen.CreatedAt.Format(time.RFC3339),
		MessageID: gen.ID,
	}
	if payload.MessageID == "" {
		payload.MessageID = uuid.NewString()
	}

	msg, err := s.repo.SaveMessage(ctx, sessionID, userText, payload)
	if err != nil {
		// The generation succeeded but could not be recorded. Surfaced,
		// not hidden: the caller sees a persistence failure.
		return nil, apperr.Wrap(apperr.KindPersistence, "Failed to record the conversation.", err)
	}

	s.cache.Append(ctx, sessionID, userText, gen.Text)

	s.events.PublishMessageStored(ctx, events.MessageStored{
		SessionID:   sessionID,
		MessageID:   msg.MessageID,
		Model:       msg.ModelUsed,
		TotalTokens: msg.TotalTokens,
		CreatedAt:   time.Now().UTC(),
	})

	s.logger.Info("chat turn completed",
		zap.String("session_id", sessionID),
		zap.String("message_id", msg.MessageID),
		zap.String("model", msg.ModelUsed),
		zap.Int64("latency_ms", gen.LatencyMs),
	)

	return &model.Reply{Payload: payload, SessionID: sessionID}, nil
}

// generate composes the bounded context window and calls the backend under
// the configured timeout.
func (s *ChatService) generate(ctx context.Context, history []model.Turn, userText string) (*llm.Generation, error) {
	ctx, span := s.tracer.Start(ctx, "chat.generate")
	defer span.End()

	if len(history) > s.opts.MaxHistoryTurns {
		history = history[len(history)-s.opts.MaxHistoryTurns:]
	}

	msgs := make([]llm.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, llm.ChatMessage{Role: string(model.RoleSystem), Content: llm.SupportSystemPrompt})
	for _, turn := range history {
		msgs = append(msgs, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, llm.ChatMessage{Role: string(model.RoleUser), Content: userText})

	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	start := time.Now()
	gen, err := s.backend.Complete(ctx, &llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    msgs,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		classified := llm.ClassifyError(err)
		metrics.RecordLLMCall(s.opts.Model, string(classified.Kind), time.Since(start).Seconds(), 0, 0)
		s.logger.Error("generation failed",
			zap.String("kind", string(classified.Kind)), zap.Error(err))
		return nil, classified
	}

	if gen.Text == "" {
		metrics.RecordLLMCall(gen.Model, "empty", time.Since(start).Seconds(), gen.TokensIn, gen.TokensOut)
		return nil, apperr.New(apperr.KindBackend, "No response received from the AI service.")
	}

	metrics.RecordLLMCall(gen.Model, "success", time.Since(start).Seconds(), gen.TokensIn, gen.TokensOut)
	return gen, nil
}
