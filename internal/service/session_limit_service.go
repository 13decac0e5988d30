package service

import (
	"context"
	"fmt"
	"strconv"

	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

// sessionLimitService caps the number of answered turns per session.
// The counter is the authoritative admission gate: it is incremented exactly
// once per successful model call, never on rejected or failed turns.
type sessionLimitService struct {
	redisClient *redis.Client
	logger      *logger.Logger
	cap         int
}

// NewSessionLimitService creates the per-session turn gate
func NewSessionLimitService(redisClient *redis.Client, logger *logger.Logger, cap int) SessionLimitService {
	return &sessionLimitService{
		redisClient: redisClient,
		logger:      logger,
		cap:         cap,
	}
}

// Check reports whether the session may take another turn. Reads only; the
// counter moves in Increment. Redis errors admit the turn.
func (s *sessionLimitService) Check(ctx context.Context, sessionID string) (bool, int, error) {
	key := s.redisClient.KeyBuilder.KeySessionCap(sessionID)

	val, err := s.redisClient.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return true, 0, nil
		}
		s.logger.WithError(err).Warn("Session counter unavailable, admitting turn")
		return true, 0, nil
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		s.logger.WithField("value", val).Warn("Corrupt session counter, admitting turn")
		return true, 0, nil
	}

	if count >= s.cap {
		return false, count, nil
	}
	if count >= s.cap-2 {
		s.logger.WithFields(map[string]interface{}{
			"session_id": sessionID,
			"count":      count,
			"cap":        s.cap,
		}).Warn("Session approaching message cap")
	}
	return true, count, nil
}

// Increment records one answered turn and refreshes the counter's lifetime
func (s *sessionLimitService) Increment(ctx context.Context, sessionID string) error {
	key := s.redisClient.KeyBuilder.KeySessionCap(sessionID)

	count, err := s.redisClient.Incr(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to increment session counter")
		return nil
	}
	if err := s.redisClient.Expire(ctx, key, redis.TTLSession); err != nil {
		s.logger.WithError(err).Warn("Failed to refresh session counter expiry")
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"count":      count,
	}).Debug("Session turn recorded")
	return nil
}

// Clear resets the counter so a cleared session starts fresh
func (s *sessionLimitService) Clear(ctx context.Context, sessionID string) error {
	key := s.redisClient.KeyBuilder.KeySessionCap(sessionID)
	if err := s.redisClient.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear session counter: %w", err)
	}
	return nil
}

// Cap returns the configured per-session ceiling
func (s *sessionLimitService) Cap() int {
	return s.cap
}
