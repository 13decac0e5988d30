package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

const (
	namePromptTurn     = 2
	linkedinPromptTurn = 6

	namePrompt = "\n\nBy the way, I'd love to know who I'm talking to! What's your name?"

	sweepInterval = time.Hour
)

// sessionService owns the conversation records in Redis. Every write refreshes
// the record's TTL, so an active conversation never expires mid-flight.
type sessionService struct {
	redisClient *redis.Client
	logger      *logger.Logger
	retention   time.Duration

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	mu          sync.Mutex
	isRunning   bool
}

// NewSessionService creates the conversation store
func NewSessionService(redisClient *redis.Client, logger *logger.Logger, retentionHours int) SessionService {
	if retentionHours <= 0 {
		retentionHours = 24
	}
	return &sessionService{
		redisClient: redisClient,
		logger:      logger,
		retention:   time.Duration(retentionHours) * time.Hour,
	}
}

// Start launches the hourly idle-session sweep
func (s *sessionService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	// Fresh ticker and stop channel each start, so the service survives a
	// stop/start cycle
	s.sweepTicker = time.NewTicker(sweepInterval)
	s.stopSweep = make(chan struct{})
	go s.sweepRoutine(ctx, s.sweepTicker, s.stopSweep)

	s.isRunning = true
	s.logger.Info("Session service started")
	return nil
}

// Stop shuts the sweep down
func (s *sessionService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	if s.sweepTicker != nil {
		s.sweepTicker.Stop()
	}
	close(s.stopSweep)

	s.isRunning = false
	s.logger.Info("Session service stopped")
	return nil
}

// NewSessionID generates an opaque session identifier
func NewSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived id; collisions here are cosmetic
		return fmt.Sprintf("session_%016x", time.Now().UnixNano())
	}
	return "session_" + hex.EncodeToString(buf)
}

// GetOrCreate loads the session record, creating a fresh one when the id is
// unknown or empty
func (s *sessionService) GetOrCreate(ctx context.Context, sessionID, ip string) (*domain.Session, error) {
	if sessionID == "" {
		return s.newSession(ip), nil
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		fresh := s.newSession(ip)
		fresh.ID = sessionID
		return fresh, nil
	}
	return session, nil
}

// Get loads a session record, returning nil when it does not exist. A store
// outage also reads as a miss: the conversation restarts without history
// rather than failing the request.
func (s *sessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	key := s.redisClient.KeyBuilder.KeySession(sessionID)

	val, err := s.redisClient.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("Session store unreachable, starting fresh")
		}
		return nil, nil
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Corrupt session record, discarding")
		return nil, nil
	}
	return &session, nil
}

// Save persists the record and refreshes its retention window
func (s *sessionService) Save(ctx context.Context, session *domain.Session) error {
	session.LastActivity = time.Now().UTC()
	session.MessageCount = len(session.Messages)

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	key := s.redisClient.KeyBuilder.KeySession(session.ID)
	if err := s.redisClient.Set(ctx, key, payload, s.retention); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the session record
func (s *sessionService) Delete(ctx context.Context, sessionID string) error {
	key := s.redisClient.KeyBuilder.KeySession(sessionID)
	if err := s.redisClient.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AppendMessage adds one entry to the transcript
func (s *sessionService) AppendMessage(session *domain.Session, role, content string) {
	session.Messages = append(session.Messages, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	session.MessageCount = len(session.Messages)
}

// AbsorbIdentity scans a user message for identity details. First value wins;
// later messages never overwrite an established name, email or profile link.
func (s *sessionService) AbsorbIdentity(session *domain.Session, message string) {
	if session.UserName == "" {
		if name := ExtractName(message, session.AskedForName); name != "" {
			session.UserName = name
			s.logger.WithFields(map[string]interface{}{
				"session_id": session.ID,
				"user_name":  name,
			}).Info("Visitor introduced themselves")
		}
	}
	if session.UserEmail == "" {
		if email := ExtractEmail(message); email != "" {
			session.UserEmail = email
		}
	}
	if session.UserLinkedIn == "" {
		if url := ExtractLinkedIn(message); url != "" {
			session.UserLinkedIn = url
		}
	}
}

// FollowUpPrompt decides whether the reply just stored should carry an
// identity ask. Callers invoke it after appending the assistant message, so
// the name ask lands on the answer to the first question and the LinkedIn ask
// on the answer to the third. Each prompt fires at most once per session.
func (s *sessionService) FollowUpPrompt(session *domain.Session) string {
	if session.MessageCount == namePromptTurn && session.UserName == "" && !session.AskedForName {
		session.AskedForName = true
		return namePrompt
	}
	if session.MessageCount == linkedinPromptTurn && session.UserLinkedIn == "" && !session.AskedForLinkedIn {
		session.AskedForLinkedIn = true
		if session.UserName != "" {
			return fmt.Sprintf("\n\n%s, if you'd like to stay in touch, feel free to share your LinkedIn profile!", session.UserName)
		}
		return "\n\nIf you'd like to stay in touch, feel free to share your LinkedIn profile!"
	}
	return ""
}

// Summary returns the metadata view of a session
func (s *sessionService) Summary(session *domain.Session) *domain.SessionSummary {
	return &domain.SessionSummary{
		ID:           session.ID,
		MessageCount: session.MessageCount,
		UserName:     session.UserName,
		UserLinkedIn: session.UserLinkedIn,
		StartedAt:    session.StartedAt,
		LastActivity: session.LastActivity,
	}
}

// CleanupIdle removes sessions whose last activity is past retention. Records
// normally expire on their own; this catches strays left by older writers.
func (s *sessionService) CleanupIdle(ctx context.Context) (int, error) {
	keys, err := s.redisClient.ScanKeys(ctx, s.redisClient.KeyBuilder.KeySessionPattern())
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	removed := 0

	for _, key := range keys {
		val, err := s.redisClient.Get(ctx, key)
		if err != nil {
			continue
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			// Unreadable records are strays too
			if err := s.redisClient.Delete(ctx, key); err == nil {
				removed++
			}
			continue
		}
		if session.LastActivity.Before(cutoff) {
			if err := s.redisClient.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Swept idle sessions")
	}
	return removed, nil
}

func (s *sessionService) newSession(ip string) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:           NewSessionID(),
		Messages:     []domain.Message{},
		IPAddress:    ip,
		StartedAt:    now,
		LastActivity: now,
	}
}

func (s *sessionService) sweepRoutine(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.CleanupIdle(sweepCtx); err != nil {
				s.logger.WithError(err).Error("Idle session sweep failed")
			}
			cancel()
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
