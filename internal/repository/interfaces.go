package repository

import (
	"context"
	"time"

	"portfolio-api/internal/domain"
)

// ConversationRepository persists ended conversations to PostgreSQL
type ConversationRepository interface {
	Archive(ctx context.Context, session *domain.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.ConversationArchive, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.ConversationArchive, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
