package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/database"
)

// conversationRepository stores ended conversations in PostgreSQL
type conversationRepository struct {
	db *database.PostgresDB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *database.PostgresDB) ConversationRepository {
	return &conversationRepository{
		db: db,
	}
}

// Archive writes the ended session. A session id archived twice keeps the
// latest transcript.
func (r *conversationRepository) Archive(ctx context.Context, session *domain.Session) error {
	transcript, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	query := `
		INSERT INTO conversation_archives (session_id, user_name, user_email, user_linkedin, message_count, transcript, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			user_name = EXCLUDED.user_name,
			user_email = EXCLUDED.user_email,
			user_linkedin = EXCLUDED.user_linkedin,
			message_count = EXCLUDED.message_count,
			transcript = EXCLUDED.transcript,
			ended_at = EXCLUDED.ended_at
	`

	now := time.Now().UTC()
	_, err = r.db.Pool.Exec(ctx, query,
		session.ID,
		session.UserName,
		session.UserEmail,
		session.UserLinkedIn,
		session.MessageCount,
		string(transcript),
		session.StartedAt,
		session.LastActivity,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}

	return nil
}

// GetBySessionID retrieves one archived conversation, nil when absent
func (r *conversationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.ConversationArchive, error) {
	query := `
		SELECT id, session_id, user_name, user_email, user_linkedin, message_count, transcript, started_at, ended_at, created_at
		FROM conversation_archives
		WHERE session_id = $1
	`

	archive := &domain.ConversationArchive{}
	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&archive.ID,
		&archive.SessionID,
		&archive.UserName,
		&archive.UserEmail,
		&archive.UserLinkedIn,
		&archive.MessageCount,
		&archive.Transcript,
		&archive.StartedAt,
		&archive.EndedAt,
		&archive.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get archived conversation: %w", err)
	}

	return archive, nil
}

// ListRecent returns the newest archived conversations
func (r *conversationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ConversationArchive, error) {
	query := `
		SELECT id, session_id, user_name, user_email, user_linkedin, message_count, transcript, started_at, ended_at, created_at
		FROM conversation_archives
		ORDER BY ended_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived conversations: %w", err)
	}
	defer rows.Close()

	var archives []*domain.ConversationArchive
	for rows.Next() {
		archive := &domain.ConversationArchive{}
		err := rows.Scan(
			&archive.ID,
			&archive.SessionID,
			&archive.UserName,
			&archive.UserEmail,
			&archive.UserLinkedIn,
			&archive.MessageCount,
			&archive.Transcript,
			&archive.StartedAt,
			&archive.EndedAt,
			&archive.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		archives = append(archives, archive)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading archive rows: %w", err)
	}

	return archives, nil
}

// DeleteOlderThan removes archives ended before the cutoff
func (r *conversationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM conversation_archives
		WHERE ended_at < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old archives: %w", err)
	}

	return result.RowsAffected(), nil
}
