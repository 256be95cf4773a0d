package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brightcart/support-assistant/internal/apperr"
	"github.com/brightcart/support-assistant/internal/events"
	"github.com/brightcart/support-assistant/internal/llm"
	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/pkg/logger"
)

type stubRepo struct {
	history    []model.Turn
	historyErr error
	saveErr    error

	savedSession string
	savedText    string
	savedPayload model.GenerationPayload
	saveCalls    int
}

func (r *stubRepo) History(_ context.Context, _ string) ([]model.Turn, error) {
	return r.history, r.historyErr
}

func (r *stubRepo) SaveMessage(_ context.Context, sessionID, userText string, payload model.GenerationPayload) (*model.Message, error) {
	r.saveCalls++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.savedSession = sessionID
	r.savedText = userText
	r.savedPayload = payload
	return &model.Message{
		MessageID:       payload.MessageID,
		ConversationID:  sessionID,
		ModelUsed:       payload.Model,
		UserTokens:      4,
		AssistantTokens: 6,
		TotalTokens:     10,
	}, nil
}

type stubCache struct {
	appends int
	user    string
	asst    string
}

func (c *stubCache) Append(_ context.Context, _ string, userText, assistantText string) {
	c.appends++
	c.user = userText
	c.asst = assistantText
}

type stubSink struct {
	published []events.MessageStored
}

func (s *stubSink) PublishMessageStored(_ context.Context, evt events.MessageStored) {
	s.published = append(s.published, evt)
}

type stubBackend struct {
	gen   *llm.Generation
	err   error
	block bool

	calls int
	req   *llm.CompletionRequest
}

func (b *stubBackend) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Generation, error) {
	b.calls++
	b.req = req
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.gen, nil
}

func (b *stubBackend) Name() string     { return "stub" }
func (b *stubBackend) Models() []string { return nil }

func defaultOpts() Options {
	return Options{
		Model:            "m1",
		MaxTokens:        500,
		Temperature:      0.3,
		MaxMessageLength: 2000,
		MaxHistoryTurns:  10,
		GenerateTimeout:  15 * time.Second,
	}
}

func newService(repo *stubRepo, cache *stubCache, backend *stubBackend, sink *stubSink, opts Options) *ChatService {
	return NewChatService(repo, cache, backend, sink, opts, logger.NewNop())
}

func okGeneration() *llm.Generation {
	return &llm.Generation{
		Text:      "Please share your order ID.",
		Model:     "m1",
		CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ID:        "g1",
		TokensIn:  40,
		TokensOut: 8,
	}
}

func TestReplyHappyPathEmptyHistory(t *testing.T) {
	repo := &stubRepo{}
	cache := &stubCache{}
	sink := &stubSink{}
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(repo, cache, backend, sink, defaultOpts())

	reply, err := svc.Reply(context.Background(), "s1", "Where is my order?")
	require.NoError(t, err)

	// With no history the context window is exactly [system, user].
	require.Len(t, backend.req.Messages, 2)
	require.Equal(t, "system", backend.req.Messages[0].Role)
	require.Equal(t, llm.SupportSystemPrompt, backend.req.Messages[0].Content)
	require.Equal(t, "user", backend.req.Messages[1].Role)
	require.Equal(t, "Where is my order?", backend.req.Messages[1].Content)

	require.Equal(t, "s1", repo.savedSession)
	require.Equal(t, "Where is my order?", repo.savedText)
	require.Equal(t, model.GenerationPayload{
		Response:  "Please share your order ID.",
		Model:     "m1",
		CreatedAt: "2025-06-01T10:00:00Z",
		MessageID: "g1",
	}, repo.savedPayload)

	require.Equal(t, "g1", reply.Payload.MessageID)
	require.Equal(t, "s1", reply.SessionID)

	require.Equal(t, 1, cache.appends)
	require.Equal(t, "Where is my order?", cache.user)
	require.Equal(t, "Please share your order ID.", cache.asst)

	require.Len(t, sink.published, 1)
	require.Equal(t, 10, sink.published[0].TotalTokens)
}

func TestReplyRejectsOversizedMessage(t *testing.T) {
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(&stubRepo{}, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", strings.Repeat("a", 2001))
	require.Error(t, err)
	require.Equal(t, apperr.KindInput, apperr.KindOf(err))
	require.Equal(t, 0, backend.calls, "backend must not be called")
}

func TestReplyAcceptsMessageAtLimit(t *testing.T) {
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(&stubRepo{}, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", strings.Repeat("a", 2000))
	require.NoError(t, err)
}

func TestReplyRejectsEmptyMessage(t *testing.T) {
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(&stubRepo{}, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "")
	require.Equal(t, apperr.KindInput, apperr.KindOf(err))
	require.Equal(t, 0, backend.calls)
}

func TestReplyTruncatesHistory(t *testing.T) {
	history := make([]model.Turn, 0, 14)
	for i := 0; i < 7; i++ {
		history = append(history,
			model.Turn{Role: model.RoleUser, Content: fmt.Sprintf("q%d", i)},
			model.Turn{Role: model.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(&stubRepo{history: history}, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "latest")
	require.NoError(t, err)

	// system + 10 newest history turns + new user turn
	require.Len(t, backend.req.Messages, 12)
	require.Equal(t, "q2", backend.req.Messages[1].Content)
	require.Equal(t, "a6", backend.req.Messages[10].Content)
	require.Equal(t, "latest", backend.req.Messages[11].Content)
}

func TestReplyTimesOutWithoutPersisting(t *testing.T) {
	opts := defaultOpts()
	opts.GenerateTimeout = 20 * time.Millisecond

	repo := &stubRepo{}
	backend := &stubBackend{block: true}
	svc := newService(repo, &stubCache{}, backend, &stubSink{}, opts)

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.Error(t, err)
	require.Equal(t, apperr.KindBackendTimeout, apperr.KindOf(err))
	require.Equal(t, 0, repo.saveCalls, "timeout must not persist anything")
}

func TestReplyEmptyGenerationIsBackendError(t *testing.T) {
	repo := &stubRepo{}
	backend := &stubBackend{gen: &llm.Generation{Text: "", Model: "m1", ID: "g1"}}
	svc := newService(repo, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.Equal(t, apperr.KindBackend, apperr.KindOf(err))
	require.Equal(t, 0, repo.saveCalls)
}

func TestReplyHistoryLoadFailureIsPersistenceError(t *testing.T) {
	repo := &stubRepo{historyErr: errors.New("connection reset")}
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(repo, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	require.Equal(t, 0, backend.calls)
}

func TestReplyPersistenceFailurePropagates(t *testing.T) {
	repo := &stubRepo{saveErr: errors.New("disk full")}
	cache := &stubCache{}
	sink := &stubSink{}
	backend := &stubBackend{gen: okGeneration()}
	svc := newService(repo, cache, backend, sink, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	require.Equal(t, 0, cache.appends, "cache must not be updated on failed persistence")
	require.Empty(t, sink.published)
}

func TestReplyGeneratesMessageIDWhenBackendOmitsIt(t *testing.T) {
	repo := &stubRepo{}
	gen := okGeneration()
	gen.ID = ""
	svc := newService(repo, &stubCache{}, &stubBackend{gen: gen}, &stubSink{}, defaultOpts())

	reply, err := svc.Reply(context.Background(), "s1", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, reply.Payload.MessageID)
}

func TestReplyClassifiedBackendFailure(t *testing.T) {
	repo := &stubRepo{}
	backend := &stubBackend{err: errors.New("upstream exploded")}
	svc := newService(repo, &stubCache{}, backend, &stubSink{}, defaultOpts())

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.Equal(t, apperr.KindBackend, apperr.KindOf(err))
	require.Equal(t, 0, repo.saveCalls)
}
