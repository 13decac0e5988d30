package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/redis"
)

// stubProvider is a canned model for pipeline tests
type stubProvider struct {
	name     string
	model    string
	response string
	err      error
	calls    int
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Model() string { return p.model }

func (p *stubProvider) Invoke(ctx context.Context, system string, history []domain.Message, message string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

// stubSearcher returns fixed knowledge hits
type stubSearcher struct {
	hits  []domain.KnowledgeHit
	err   error
	calls int
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int) ([]domain.KnowledgeHit, error) {
	s.calls++
	return s.hits, s.err
}

type chatFixture struct {
	svc      ChatService
	primary  *stubProvider
	backup   *stubProvider
	failover *llm.Failover
	searcher *stubSearcher
	sessions SessionService
	quota    QuotaService
	limits   SessionLimitService
	client   *redis.Client
	mr       *miniredis.Miniredis
}

const stubReply = "I've spent most of my career building backend services in Go, with a focus on real-time systems."

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	client, mr := newTestRedis(t)
	log := newServiceLogger(t)

	primary := &stubProvider{name: "Gemini 2.0 Flash", model: "gemini-2.0-flash", response: stubReply}
	backup := &stubProvider{name: "Groq Llama 3.3", model: "llama-3.3-70b-versatile", response: stubReply}
	failover := llm.NewFailover(primary, backup, log)

	searcher := &stubSearcher{hits: []domain.KnowledgeHit{
		{Text: "Worked on distributed pipelines.", Source: "resume", Score: 0.9},
	}}

	sessions := NewSessionService(client, log, 24)
	quota := NewQuotaService(client, log, 500)
	limits := NewSessionLimitService(client, log, 15)

	svc := NewChatService(
		NewValidatorService(500, log),
		NewRateLimitService(client, log, 10, 50, 60),
		limits,
		quota,
		sessions,
		NewCacheService(client, log, nil, 0.85, 24),
		NewNotificationService("", "", "", "", nil, log),
		failover,
		searcher,
		nil,
		log,
		5,
	)

	return &chatFixture{
		svc:      svc,
		primary:  primary,
		backup:   backup,
		failover: failover,
		searcher: searcher,
		sessions: sessions,
		quota:    quota,
		limits:   limits,
		client:   client,
		mr:       mr,
	}
}

func TestChatService_BasicTurn(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, rate, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message: "What do you work on?",
	}, "203.0.113.9")

	require.Nil(t, appErr)
	require.NotNil(t, resp)
	require.NotNil(t, rate)

	assert.True(t, strings.HasPrefix(resp.SessionID, "session_"))
	assert.Contains(t, resp.Message, stubReply)
	assert.Equal(t, "Gemini 2.0 Flash", resp.Model)
	assert.True(t, strings.HasSuffix(resp.ResponseTime, "s"))
	assert.Equal(t, 1, f.primary.calls)
	assert.Equal(t, 1, f.searcher.calls)

	// The transcript holds both sides of the turn
	session, err := f.sessions.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 2, session.MessageCount)
	assert.Equal(t, "user", session.Messages[0].Role)
	assert.Equal(t, "assistant", session.Messages[1].Role)

	// One answered turn is counted once everywhere
	used, err := f.quota.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
	_, count, err := f.limits.Check(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChatService_ValidationRejection(t *testing.T) {
	f := newChatFixture(t)

	resp, rate, appErr := f.svc.Chat(context.Background(), &domain.ChatRequest{
		Message: "",
	}, "203.0.113.9")

	assert.Nil(t, resp)
	assert.Nil(t, rate)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, 0, f.primary.calls)
}

func TestChatService_SecondTurnCarriesHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	first, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
	require.Nil(t, appErr)

	second, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message:   "And what languages do you use daily at work?",
		SessionID: first.SessionID,
	}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.Equal(t, first.SessionID, second.SessionID)

	session, err := f.sessions.Get(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, session.MessageCount)
}

func TestChatService_CachedTurn(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	question := "What is your experience with distributed systems in production?"

	first, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: question}, "203.0.113.9")
	require.Nil(t, appErr)

	// Same question in a new session is served from cache
	second, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: question}, "203.0.113.9")
	require.Nil(t, appErr)

	assert.Equal(t, 1, f.primary.calls)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// Cached turns still count toward the session cap but not the quota
	used, err := f.quota.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
	_, count, err := f.limits.Check(ctx, second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChatService_FailoverToBackup(t *testing.T) {
	f := newChatFixture(t)
	f.primary.err = assert.AnError

	resp, _, appErr := f.svc.Chat(context.Background(), &domain.ChatRequest{
		Message: "What do you work on?",
	}, "203.0.113.9")

	require.Nil(t, appErr)
	assert.Equal(t, "Groq Llama 3.3", resp.Model)
	assert.True(t, f.failover.UsingBackup())
}

func TestChatService_BothProvidersDown(t *testing.T) {
	f := newChatFixture(t)
	f.primary.err = assert.AnError
	f.backup.err = assert.AnError
	ctx := context.Background()

	resp, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")

	assert.Nil(t, resp)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeExternal, appErr.Type)

	// Failed turns consume no quota or session budget
	used, err := f.quota.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestChatService_RateLimitRejection(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
		require.Nil(t, appErr)
	}

	resp, rate, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
	assert.Nil(t, resp)
	require.NotNil(t, rate)
	assert.False(t, rate.Allowed)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeRateLimit, appErr.Type)
}

func TestChatService_SessionCapRejection(t *testing.T) {
	client, _ := newTestRedis(t)
	log := newServiceLogger(t)

	primary := &stubProvider{name: "Gemini 2.0 Flash", model: "gemini-2.0-flash", response: stubReply}
	backup := &stubProvider{name: "Groq Llama 3.3", model: "llama-3.3-70b-versatile", response: stubReply}
	sessions := NewSessionService(client, log, 24)

	svc := NewChatService(
		NewValidatorService(500, log),
		NewRateLimitService(client, log, 100, 500, 600),
		NewSessionLimitService(client, log, 2),
		NewQuotaService(client, log, 500),
		sessions,
		NewCacheService(client, log, nil, 0.85, 24),
		NewNotificationService("", "", "", "", nil, log),
		llm.NewFailover(primary, backup, log),
		nil,
		nil,
		log,
		5,
	)
	ctx := context.Background()

	first, _, appErr := svc.Chat(ctx, &domain.ChatRequest{Message: "Question one, please?"}, "203.0.113.9")
	require.Nil(t, appErr)
	_, _, appErr = svc.Chat(ctx, &domain.ChatRequest{Message: "Question two, please?", SessionID: first.SessionID}, "203.0.113.9")
	require.Nil(t, appErr)

	_, _, appErr = svc.Chat(ctx, &domain.ChatRequest{Message: "Question three, please?", SessionID: first.SessionID}, "203.0.113.9")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeSessionLimit, appErr.Type)
	assert.Contains(t, appErr.Message, "limit of 2 messages")
}

func TestChatService_QuotaExhaustionRoutesToBackup(t *testing.T) {
	client, _ := newTestRedis(t)
	log := newServiceLogger(t)

	primary := &stubProvider{name: "Gemini 2.0 Flash", model: "gemini-2.0-flash", response: stubReply}
	backup := &stubProvider{name: "Groq Llama 3.3", model: "llama-3.3-70b-versatile", response: stubReply}
	failover := llm.NewFailover(primary, backup, log)
	quota := NewQuotaService(client, log, 1)

	svc := NewChatService(
		NewValidatorService(500, log),
		NewRateLimitService(client, log, 100, 500, 600),
		NewSessionLimitService(client, log, 15),
		quota,
		NewSessionService(client, log, 24),
		NewCacheService(client, log, nil, 0.85, 24),
		NewNotificationService("", "", "", "", nil, log),
		failover,
		nil,
		nil,
		log,
		5,
	)
	ctx := context.Background()

	resp, _, appErr := svc.Chat(ctx, &domain.ChatRequest{Message: "First question of the day?"}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.Equal(t, "Gemini 2.0 Flash", resp.Model)

	// Quota is now spent; the next turn answers on the backup
	resp, _, appErr = svc.Chat(ctx, &domain.ChatRequest{Message: "Second question of the day?"}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.Equal(t, "Groq Llama 3.3", resp.Model)
	assert.True(t, failover.UsingBackup())
}

func TestChatService_FollowUpPrompts(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	// The answer to the first question asks for the visitor's name
	first, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on currently?"}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.True(t, first.FollowUp)
	assert.Contains(t, first.Message, "What's your name?")

	// It fires once; the second answer is plain
	second, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message:   "Which industries have you worked in?",
		SessionID: first.SessionID,
	}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.False(t, second.FollowUp)

	// The answer to the third question asks for a LinkedIn profile
	third, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message:   "What technologies do you enjoy most at work?",
		SessionID: first.SessionID,
	}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.True(t, third.FollowUp)
	assert.Contains(t, third.Message, "LinkedIn")
}

func TestChatService_UserNameFromRequest(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message:  "What do you work on?",
		UserName: "Jordan",
	}, "203.0.113.9")
	require.Nil(t, appErr)

	session, err := f.sessions.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan", session.UserName)
}

func TestChatService_GetSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
	require.Nil(t, appErr)

	summary, appErr := f.svc.GetSession(ctx, resp.SessionID)
	require.Nil(t, appErr)
	assert.Equal(t, resp.SessionID, summary.ID)
	assert.Equal(t, 2, summary.MessageCount)

	_, appErr = f.svc.GetSession(ctx, "session_missing")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeNotFound, appErr.Type)
}

func TestChatService_EndSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	appErr := f.svc.EndSession(ctx, "session_missing")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeNotFound, appErr.Type)

	resp, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
	require.Nil(t, appErr)
	assert.Nil(t, f.svc.EndSession(ctx, resp.SessionID))
}

func TestChatService_ClearSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resp, _, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "What do you work on?"}, "203.0.113.9")
	require.Nil(t, appErr)

	require.Nil(t, f.svc.ClearSession(ctx, resp.SessionID))

	session, err := f.sessions.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Nil(t, session)

	_, count, err := f.limits.Check(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestChatService_Status(t *testing.T) {
	f := newChatFixture(t)

	status := f.svc.Status()
	assert.Equal(t, "Gemini 2.0 Flash", status.Model)
	assert.False(t, status.UsingBackup)

	f.failover.UseBackup()
	status = f.svc.Status()
	assert.Equal(t, "Groq Llama 3.3", status.Model)
	assert.True(t, status.UsingBackup)
}

func TestChatService_BlockedIPRejection(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	ip := "198.51.100.4"
	blockKey := f.client.KeyBuilder.KeyBlocked(ip)
	require.NoError(t, f.client.HSet(ctx, blockKey,
		"ip", ip,
		"reason", "Exceeded daily limit of 60 requests",
		"blocked_at", time.Now().UTC().Format(time.RFC3339),
	))

	resp, rate, appErr := f.svc.Chat(ctx, &domain.ChatRequest{Message: "Hello?"}, ip)
	require.NotNil(t, appErr)
	assert.Nil(t, resp)
	require.NotNil(t, rate)
	assert.True(t, rate.Blocked)
	assert.Equal(t, errors.ErrorTypeBlocked, appErr.Type)
	assert.Equal(t, 429, appErr.StatusCode)
	assert.Zero(t, f.primary.calls)
}

func TestChatService_AnswersDuringStoreOutage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	f.mr.SetError("connection refused")

	// Every counter and the session store fail open: the turn is answered
	resp, rate, appErr := f.svc.Chat(ctx, &domain.ChatRequest{
		Message: "What do you work on?",
	}, "203.0.113.9")

	require.Nil(t, appErr)
	require.NotNil(t, resp)
	require.NotNil(t, rate)
	assert.Contains(t, resp.Message, stubReply)
	assert.Equal(t, "Gemini 2.0 Flash", resp.Model)
	assert.Equal(t, 1, f.primary.calls)

	f.mr.SetError("")
}
