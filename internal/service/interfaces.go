package service

import (
	"context"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/errors"
)

// ValidatorService screens inbound messages
type ValidatorService interface {
	Validate(message string) *errors.AppError
}

// RateLimitService is the per-IP admission layer
type RateLimitService interface {
	Check(ctx context.Context, ip string) (*domain.RateLimitResult, error)
	Remaining(result *domain.RateLimitResult) int
	Unblock(ctx context.Context, ip string) error
	ListBlocked(ctx context.Context) ([]domain.BlockRecord, error)
}

// SessionLimitService caps answered turns per session
type SessionLimitService interface {
	Check(ctx context.Context, sessionID string) (allowed bool, count int, err error)
	Increment(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
	Cap() int
}

// QuotaService tracks service-wide daily usage
type QuotaService interface {
	Check(ctx context.Context) (hasRoom bool, used int64)
	Increment(ctx context.Context)
	Usage(ctx context.Context) (int64, error)
	Limit() int
}

// SessionService owns conversation records
type SessionService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	GetOrCreate(ctx context.Context, sessionID, ip string) (*domain.Session, error)
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, sessionID string) error
	AppendMessage(session *domain.Session, role, content string)
	AbsorbIdentity(session *domain.Session, message string)
	FollowUpPrompt(session *domain.Session) string
	Summary(session *domain.Session) *domain.SessionSummary
	CleanupIdle(ctx context.Context) (int, error)
}

// CacheService caches model answers
type CacheService interface {
	Lookup(ctx context.Context, model, question string) (string, bool)
	Store(ctx context.Context, model, question, answer string)
	Clear(ctx context.Context, model string) error
}

// NotificationService delivers conversation transcripts
type NotificationService interface {
	SendTranscript(ctx context.Context, session *domain.Session, trigger string) error
}

// ChatService runs the conversation pipeline
type ChatService interface {
	Chat(ctx context.Context, req *domain.ChatRequest, clientIP string) (*domain.ChatResponse, *domain.RateLimitResult, *errors.AppError)
	EndSession(ctx context.Context, sessionID string) *errors.AppError
	ClearSession(ctx context.Context, sessionID string) *errors.AppError
	GetSession(ctx context.Context, sessionID string) (*domain.SessionSummary, *errors.AppError)
	Status() *domain.StatusResponse
}
