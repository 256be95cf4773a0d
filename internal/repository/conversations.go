package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/internal/tokens"
	"github.com/brightcart/support-assistant/pkg/logger"
	"github.com/brightcart/support-assistant/pkg/metrics"
)

// Rows is the slice of pgx.Rows the repository reads through.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// DB abstracts the connection pool so repository logic is testable without
// a live Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// PoolDB adapts a pgxpool.Pool to the DB interface.
type PoolDB struct {
	Pool *pgxpool.Pool
}

func (d PoolDB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := d.Pool.Exec(ctx, sql, args...)
	return err
}

func (d PoolDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return d.Pool.Query(ctx, sql, args...)
}

// TurnCache is consulted before the durable store on history reads and
// refilled best-effort after a miss.
type TurnCache interface {
	Get(ctx context.Context, sessionID string) ([]model.Turn, bool)
	Set(ctx context.Context, sessionID string, turns []model.Turn)
}

// Conversations persists conversations and messages. The durable store is
// authoritative; the cache is a disposable shadow.
type Conversations struct {
	db      DB
	cache   TurnCache
	counter tokens.Counter
	logger  *logger.Logger
}

// New creates a conversation repository.
func New(db DB, cache TurnCache, counter tokens.Counter, log *logger.Logger) *Conversations {
	return &Conversations{
		db:      db,
		cache:   cache,
		counter: counter,
		logger:  log,
	}
}

// EnsureConversation inserts the conversation row if absent. Idempotent and
// race-safe: concurrent first messages for the same session both succeed.
func (r *Conversations) EnsureConversation(ctx context.Context, sessionID string) error {
	err := r.db.Exec(ctx,
		`INSERT INTO conversations (conversation_id) VALUES ($1)
		 ON CONFLICT (conversation_id) DO NOTHING`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("ensure conversation %s: %w", sessionID, err)
	}
	return nil
}

// SaveMessage records one user turn and its generated reply as a single
// append-only row. Token counts for both sides are computed independently
// with the deterministic counter; their sum is stored alongside.
func (r *Conversations) SaveMessage(ctx context.Context, sessionID, userText string, payload model.GenerationPayload) (*model.Message, error) {
	if err := r.EnsureConversation(ctx, sessionID); err != nil {
		return nil, err
	}

	raw, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode generation payload: %w", err)
	}

	msg := &model.Message{
		MessageID:       payload.MessageID,
		ConversationID:  sessionID,
		UserText:        userText,
		RawResponse:     raw,
		ModelUsed:       payload.Model,
		UserTokens:      r.counter.Count(userText),
		AssistantTokens: r.counter.Count(payload.Response),
	}
	msg.TotalTokens = msg.UserTokens + msg.AssistantTokens

	err = r.db.Exec(ctx,
		`INSERT INTO messages
		 (message_id, conversation_id, user_text, llm_response, model_used, user_tokens, assistant_tokens, total_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.MessageID, msg.ConversationID, msg.UserText, msg.RawResponse, msg.ModelUsed,
		msg.UserTokens, msg.AssistantTokens, msg.TotalTokens,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message %s: %w", msg.MessageID, err)
	}

	metrics.MessagesPersisted.Inc()
	r.logger.Info("message saved",
		zap.String("session_id", sessionID),
		zap.String("message_id", msg.MessageID),
		zap.String("model", msg.ModelUsed),
		zap.Int("total_tokens", msg.TotalTokens),
	)
	return msg, nil
}

// History returns the session's conversation as ordered turns. The cache is
// consulted first; on a miss the durable store is queried, the rows are
// exploded into (user, assistant) pairs, and the result is cached
// best-effort. An empty history is a valid outcome and is not cached.
func (r *Conversations) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if turns, ok := r.cache.Get(ctx, sessionID); ok {
		return turns, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_text, llm_response FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var stored []storedExchange
	for rows.Next() {
		var e storedExchange
		if err := rows.Scan(&e.UserText, &e.RawResponse); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		stored = append(stored, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history rows: %w", err)
	}

	turns := explodeTurns(stored)
	if len(turns) > 0 {
		r.cache.Set(ctx, sessionID, turns)
	}
	return turns, nil
}

type storedExchange struct {
	UserText    string
	RawResponse []byte
}

// explodeTurns expands stored exchanges into alternating user/assistant
// turns, preserving insertion order. Assistant text comes from the
// structured payload; an unparseable payload is used verbatim.
func explodeTurns(stored []storedExchange) []model.Turn {
	turns := make([]model.Turn, 0, len(stored)*2)
	for _, e := range stored {
		turns = append(turns, model.Turn{Role: model.RoleUser, Content: e.UserText})

		if len(e.RawResponse) == 0 {
			continue
		}
		content := string(e.RawResponse)
		if p, ok := model.DecodeGenerationPayload(e.RawResponse); ok {
			content = p.Response
		}
		turns = append(turns, model.Turn{Role: model.RoleAssistant, Content: content})
	}
	return turns
}

// Ping verifies durable store connectivity for readiness checks.
func (r *Conversations) Ping(ctx context.Context) error {
	rows, err := r.db.Query(ctx, `SELECT 1`)
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}
