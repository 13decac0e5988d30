package service

import (
	"context"
	"fmt"
	"time"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/repository"
	"portfolio-api/internal/service/knowledge"
	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"
)

const backgroundTaskTimeout = 30 * time.Second

// chatService runs the full pipeline for one conversation turn: admission,
// identity tracking, cache, retrieval, generation, accounting.
type chatService struct {
	validator    ValidatorService
	rateLimiter  RateLimitService
	sessionLimit SessionLimitService
	quota        QuotaService
	sessions     SessionService
	cache        CacheService
	notifier     NotificationService
	failover     *llm.Failover
	searcher     knowledge.Searcher                 // nil disables retrieval
	archive      repository.ConversationRepository  // nil disables archiving
	logger       *logger.Logger
	topK         int
}

// NewChatService wires the turn pipeline
func NewChatService(
	validator ValidatorService,
	rateLimiter RateLimitService,
	sessionLimit SessionLimitService,
	quota QuotaService,
	sessions SessionService,
	cache CacheService,
	notifier NotificationService,
	failover *llm.Failover,
	searcher knowledge.Searcher,
	archive repository.ConversationRepository,
	logger *logger.Logger,
	topK int,
) ChatService {
	if topK <= 0 {
		topK = 8
	}
	return &chatService{
		validator:    validator,
		rateLimiter:  rateLimiter,
		sessionLimit: sessionLimit,
		quota:        quota,
		sessions:     sessions,
		cache:        cache,
		notifier:     notifier,
		failover:     failover,
		searcher:     searcher,
		archive:      archive,
		logger:       logger,
		topK:         topK,
	}
}

// Chat handles one turn. The returned *RateLimitResult is non-nil whenever
// rate information is available, including on rejections, so handlers can set
// response headers.
func (s *chatService) Chat(ctx context.Context, req *domain.ChatRequest, clientIP string) (*domain.ChatResponse, *domain.RateLimitResult, *errors.AppError) {
	started := time.Now()

	if appErr := s.validator.Validate(req.Message); appErr != nil {
		return nil, nil, appErr
	}

	rateResult, err := s.rateLimiter.Check(ctx, clientIP)
	if err != nil {
		return nil, nil, errors.NewInternalError("Failed to check rate limit", err)
	}
	if !rateResult.Allowed {
		if rateResult.Blocked {
			return nil, rateResult, errors.NewBlockedError(rateResult.Reason)
		}
		return nil, rateResult, errors.NewRateLimitError(rateResult.Reason)
	}

	session, err := s.sessions.GetOrCreate(ctx, req.SessionID, clientIP)
	if err != nil {
		return nil, rateResult, errors.NewInternalError("Failed to load session", err)
	}

	allowed, turnCount, err := s.sessionLimit.Check(ctx, session.ID)
	if err != nil {
		return nil, rateResult, errors.NewInternalError("Failed to check session limit", err)
	}
	if !allowed {
		return nil, rateResult, errors.NewSessionLimitError(
			fmt.Sprintf("This conversation has reached its limit of %d messages. Please start a new session.", s.sessionLimit.Cap()))
	}

	// Exhausted quota is a hint, not a wall: the day's remaining traffic
	// moves to the backup model to protect the primary budget.
	if hasRoom, used := s.quota.Check(ctx); !hasRoom {
		s.logger.WithField("used", used).Warn("Daily quota exhausted, routing to backup model")
		s.failover.UseBackup()
	}

	if req.UserName != "" && session.UserName == "" {
		session.UserName = req.UserName
	}
	s.sessions.AbsorbIdentity(session, req.Message)

	history := append([]domain.Message(nil), session.Messages...)
	s.sessions.AppendMessage(session, "user", req.Message)

	activeModel := s.failover.Active().Model()
	reply, cached := s.cache.Lookup(ctx, activeModel, req.Message)
	var provider llm.Provider

	if cached {
		provider = s.failover.Active()
		s.logger.WithFields(map[string]interface{}{
			"session_id": session.ID,
			"model":      activeModel,
		}).Info("Turn served from cache")
	} else {
		systemPrompt := BuildSystemPrompt(s.retrieve(ctx, req.Message))

		var invokeErr error
		reply, provider, invokeErr = s.failover.Invoke(ctx, systemPrompt, history, UserPrefix(session, req.Message))
		if invokeErr != nil {
			// The failed turn stays out of every counter, but the user
			// message is preserved for context
			if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
				s.logger.WithError(saveErr).Error("Failed to persist session after model failure")
			}
			return nil, rateResult, errors.NewExternalError("The assistant is temporarily unavailable. Please try again shortly.", invokeErr)
		}

		s.quota.Increment(ctx)
		s.cache.Store(ctx, provider.Model(), req.Message, reply)
	}

	// Turn answered: this is the only place the session counter moves
	if err := s.sessionLimit.Increment(ctx, session.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to record session turn")
	}

	s.sessions.AppendMessage(session, "assistant", reply)
	followUp := s.sessions.FollowUpPrompt(session)
	if followUp != "" {
		reply += followUp
		session.Messages[len(session.Messages)-1].Content = reply
	}
	// Persisting the transcript is best-effort: an answered turn is never
	// withheld because the store write failed
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.WithError(err).WithField("session_id", session.ID).Error("Failed to persist session")
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": session.ID,
		"turn":       turnCount + 1,
		"model":      provider.Name(),
		"cached":     cached,
		"elapsed":    time.Since(started).String(),
	}).Info("Chat turn completed")

	return &domain.ChatResponse{
		Message:      reply,
		SessionID:    session.ID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ResponseTime: fmt.Sprintf("%.2fs", time.Since(started).Seconds()),
		Model:        provider.Name(),
		FollowUp:     followUp != "",
	}, rateResult, nil
}

// EndSession closes a conversation: the transcript is mailed and archived in
// the background, and the record is left to expire naturally.
func (s *chatService) EndSession(ctx context.Context, sessionID string) *errors.AppError {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return errors.NewInternalError("Failed to load session", err)
	}
	if session == nil {
		return errors.NewNotFoundError("Session not found")
	}

	s.finishInBackground(session, "session ended")
	return nil
}

// ClearSession ends the conversation and removes its record and counters so
// the id starts over
func (s *chatService) ClearSession(ctx context.Context, sessionID string) *errors.AppError {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return errors.NewInternalError("Failed to load session", err)
	}
	if session != nil {
		s.finishInBackground(session, "session cleared")
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return errors.NewInternalError("Failed to delete session", err)
	}
	if err := s.sessionLimit.Clear(ctx, sessionID); err != nil {
		return errors.NewInternalError("Failed to reset session counter", err)
	}
	return nil
}

// GetSession returns the metadata view of a session
func (s *chatService) GetSession(ctx context.Context, sessionID string) (*domain.SessionSummary, *errors.AppError) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load session", err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("Session not found")
	}
	return s.sessions.Summary(session), nil
}

// Status reports which provider is live
func (s *chatService) Status() *domain.StatusResponse {
	return &domain.StatusResponse{
		Model:       s.failover.Active().Name(),
		UsingBackup: s.failover.UsingBackup(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// retrieve is best-effort: retrieval failures degrade to an uninformed prompt
func (s *chatService) retrieve(ctx context.Context, query string) []domain.KnowledgeHit {
	if s.searcher == nil {
		return nil
	}
	hits, err := s.searcher.Search(ctx, query, s.topK)
	if err != nil {
		s.logger.WithError(err).Warn("Knowledge search failed, answering without context")
		return nil
	}
	return hits
}

// finishInBackground mails and archives the transcript without holding up the
// response. Each task gets its own deadline detached from the request.
func (s *chatService) finishInBackground(session *domain.Session, trigger string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTaskTimeout)
		defer cancel()

		if err := s.notifier.SendTranscript(ctx, session, trigger); err != nil {
			s.logger.WithError(err).WithField("session_id", session.ID).Error("Transcript delivery failed")
		}

		if s.archive != nil {
			if err := s.archive.Archive(ctx, session); err != nil {
				s.logger.WithError(err).WithField("session_id", session.ID).Error("Transcript archive failed")
			}
		}
	}()
}
