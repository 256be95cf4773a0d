package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/internal/tokens"
	"github.com/brightcart/support-assistant/pkg/logger"
)

type execCall struct {
	sql  string
	args []any
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*[]byte) = row[1].([]byte)
	return nil
}

type fakeDB struct {
	execs   []execCall
	rows    *fakeRows
	execErr error
	qErr    error
	queried bool
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) error {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	return db.execErr
}

func (db *fakeDB) Query(_ context.Context, sql string, _ ...any) (Rows, error) {
	db.queried = true
	if db.qErr != nil {
		return nil, db.qErr
	}
	if db.rows == nil {
		db.rows = &fakeRows{}
	}
	return db.rows, nil
}

type fakeCache struct {
	entries map[string][]model.Turn
	sets    int
}

func (c *fakeCache) Get(_ context.Context, sessionID string) ([]model.Turn, bool) {
	turns, ok := c.entries[sessionID]
	return turns, ok
}

func (c *fakeCache) Set(_ context.Context, sessionID string, turns []model.Turn) {
	if c.entries == nil {
		c.entries = map[string][]model.Turn{}
	}
	c.entries[sessionID] = turns
	c.sets++
}

func newTestRepo(db *fakeDB, cache *fakeCache) *Conversations {
	return New(db, cache, tokens.Approximate{}, logger.NewNop())
}

func payloadJSON(t *testing.T, response, modelName, id string) []byte {
	t.Helper()
	raw, err := json.Marshal(model.GenerationPayload{
		Response:  response,
		Model:     modelName,
		CreatedAt: "2025-06-01T10:00:00Z",
		MessageID: id,
	})
	require.NoError(t, err)
	return raw
}

func TestEnsureConversationUsesUpsert(t *testing.T) {
	db := &fakeDB{}
	repo := newTestRepo(db, &fakeCache{})

	require.NoError(t, repo.EnsureConversation(context.Background(), "s1"))
	require.Len(t, db.execs, 1)
	require.Contains(t, db.execs[0].sql, "ON CONFLICT")
	require.Equal(t, []any{"s1"}, db.execs[0].args)
}

func TestSaveMessageTokenAccounting(t *testing.T) {
	db := &fakeDB{}
	repo := newTestRepo(db, &fakeCache{})

	payload := model.GenerationPayload{
		Response:  "Please share your order ID.",
		Model:     "gpt-4.1",
		CreatedAt: "2025-06-01T10:00:00Z",
		MessageID: "chatcmpl-1",
	}
	msg, err := repo.SaveMessage(context.Background(), "s1", "Where is my order?", payload)
	require.NoError(t, err)

	// Conversation is ensured before the message row is written.
	require.Len(t, db.execs, 2)
	require.Contains(t, db.execs[0].sql, "INSERT INTO conversations")
	require.Contains(t, db.execs[1].sql, "INSERT INTO messages")

	args := db.execs[1].args
	require.Equal(t, "chatcmpl-1", args[0])
	require.Equal(t, "s1", args[1])
	require.Equal(t, "Where is my order?", args[2])
	require.Equal(t, "gpt-4.1", args[4])

	userTokens := args[5].(int)
	assistantTokens := args[6].(int)
	totalTokens := args[7].(int)
	require.Greater(t, userTokens, 0)
	require.Greater(t, assistantTokens, 0)
	require.Equal(t, userTokens+assistantTokens, totalTokens)
	require.Equal(t, totalTokens, msg.TotalTokens)
	require.Equal(t, "chatcmpl-1", msg.MessageID)

	// Stored raw payload must decode back to the structured form.
	decoded, ok := model.DecodeGenerationPayload(args[3].([]byte))
	require.True(t, ok)
	require.Equal(t, payload, decoded)
}

func TestSaveMessagePropagatesInsertFailure(t *testing.T) {
	db := &fakeDB{execErr: errors.New("disk full")}
	repo := newTestRepo(db, &fakeCache{})

	_, err := repo.SaveMessage(context.Background(), "s1", "hi", model.GenerationPayload{
		Response: "hello", Model: "m", MessageID: "id",
	})
	require.Error(t, err)
}

func TestHistoryPrefersCache(t *testing.T) {
	cached := []model.Turn{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}
	db := &fakeDB{}
	repo := newTestRepo(db, &fakeCache{entries: map[string][]model.Turn{"s1": cached}})

	turns, err := repo.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, cached, turns)
	require.False(t, db.queried, "durable store must not be hit on a cache hit")
}

func TestHistoryMissQueriesStoreAndFillsCache(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{rows: [][]any{
		{"first question", payloadJSON(t, "first answer", "m1", "g1")},
		{"second question", payloadJSON(t, "second answer", "m1", "g2")},
	}}}
	cache := &fakeCache{}
	repo := newTestRepo(db, cache)

	turns, err := repo.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []model.Turn{
		{Role: model.RoleUser, Content: "first question"},
		{Role: model.RoleAssistant, Content: "first answer"},
		{Role: model.RoleUser, Content: "second question"},
		{Role: model.RoleAssistant, Content: "second answer"},
	}, turns)

	require.Equal(t, 1, cache.sets)
	require.Equal(t, turns, cache.entries["s1"])
}

func TestHistoryEmptyIsValidAndUncached(t *testing.T) {
	db := &fakeDB{}
	cache := &fakeCache{}
	repo := newTestRepo(db, cache)

	turns, err := repo.History(context.Background(), "fresh")
	require.NoError(t, err)
	require.Empty(t, turns)
	require.Equal(t, 0, cache.sets)
}

func TestHistoryFallsBackToRawPayload(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{rows: [][]any{
		{"question", []byte("plain text, not JSON")},
	}}}
	repo := newTestRepo(db, &fakeCache{})

	turns, err := repo.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []model.Turn{
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, Content: "plain text, not JSON"},
	}, turns)
}

func TestHistoryPropagatesQueryFailure(t *testing.T) {
	db := &fakeDB{qErr: errors.New("connection reset")}
	repo := newTestRepo(db, &fakeCache{})

	_, err := repo.History(context.Background(), "s1")
	require.Error(t, err)
}

func TestExplodeTurnsSkipsAssistantOnEmptyResponse(t *testing.T) {
	turns := explodeTurns([]storedExchange{
		{UserText: "question", RawResponse: nil},
	})
	require.Equal(t, []model.Turn{{Role: model.RoleUser, Content: "question"}}, turns)
}

func TestExplodeTurnsOrderMatchesInsertion(t *testing.T) {
	stored := make([]storedExchange, 0, 3)
	for _, s := range []string{"a", "b", "c"} {
		stored = append(stored, storedExchange{
			UserText:    "q-" + s,
			RawResponse: []byte(`{"response":"r-` + s + `","model":"m","created_at":"t","message_id":"i"}`),
		})
	}

	turns := explodeTurns(stored)
	require.Len(t, turns, 6)
	for i, s := range []string{"a", "b", "c"} {
		require.Equal(t, "q-"+s, turns[i*2].Content)
		require.Equal(t, model.RoleUser, turns[i*2].Role)
		require.Equal(t, "r-"+s, turns[i*2+1].Content)
		require.Equal(t, model.RoleAssistant, turns[i*2+1].Role)
	}
}
