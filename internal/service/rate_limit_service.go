package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

// rateLimitService enforces three sliding windows per client IP and keeps
// standing block records for repeat offenders. Redis failures admit the
// request: losing rate limiting briefly is preferable to refusing everyone.
type rateLimitService struct {
	redisClient *redis.Client
	logger      *logger.Logger

	perMinute int
	perHour   int
	perDay    int
}

// NewRateLimitService creates the per-IP admission layer
func NewRateLimitService(redisClient *redis.Client, logger *logger.Logger, perMinute, perHour, perDay int) RateLimitService {
	return &rateLimitService{
		redisClient: redisClient,
		logger:      logger,
		perMinute:   perMinute,
		perHour:     perHour,
		perDay:      perDay,
	}
}

// Check admits or rejects one request from ip. A rejected request does not
// consume budget: its increments are rolled back so retries after the window
// resets are not pre-penalized.
func (s *rateLimitService) Check(ctx context.Context, ip string) (*domain.RateLimitResult, error) {
	kb := s.redisClient.KeyBuilder

	blocked, err := s.redisClient.Exists(ctx, kb.KeyBlocked(ip))
	if err != nil {
		s.logger.WithError(err).Warn("Block lookup failed, admitting request")
		return &domain.RateLimitResult{Allowed: true}, nil
	}
	if blocked > 0 {
		return &domain.RateLimitResult{
			Allowed: false,
			Blocked: true,
			Reason:  "Access blocked due to excessive requests. Contact the site owner if you believe this is an error.",
		}, nil
	}

	minuteKey := kb.KeyRateMinute(ip)
	hourKey := kb.KeyRateHour(ip)
	dayKey := kb.KeyRateDay(ip)

	pipe := s.redisClient.Pipeline()
	minuteCmd := pipe.Incr(ctx, minuteKey)
	hourCmd := pipe.Incr(ctx, hourKey)
	dayCmd := pipe.Incr(ctx, dayKey)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("Rate counters unavailable, admitting request")
		return &domain.RateLimitResult{Allowed: true}, nil
	}

	minuteCount := minuteCmd.Val()
	hourCount := hourCmd.Val()
	dayCount := dayCmd.Val()

	// Fresh windows get their expiry on first increment
	if minuteCount == 1 {
		s.expireQuietly(ctx, minuteKey, redis.TTLRateMinute)
	}
	if hourCount == 1 {
		s.expireQuietly(ctx, hourKey, redis.TTLRateHour)
	}
	if dayCount == 1 {
		s.expireQuietly(ctx, dayKey, redis.TTLRateDay)
	}

	result := &domain.RateLimitResult{
		Allowed:     true,
		MinuteCount: minuteCount,
		HourCount:   hourCount,
		DayCount:    dayCount,
	}

	switch {
	case minuteCount > int64(s.perMinute):
		result.Allowed = false
		result.Reason = fmt.Sprintf("Rate limit exceeded: %d requests per minute", s.perMinute)
		result.RetryAfterSec = s.retryAfter(ctx, minuteKey, 60)
	case hourCount > int64(s.perHour):
		result.Allowed = false
		result.Reason = fmt.Sprintf("Rate limit exceeded: %d requests per hour", s.perHour)
		result.RetryAfterSec = s.retryAfter(ctx, hourKey, 3600)
	case dayCount > int64(s.perDay):
		result.Allowed = false
		result.Blocked = true
		result.Reason = "Daily request limit exceeded"
		result.RetryAfterSec = s.retryAfter(ctx, dayKey, 86400)

		// Burning through a full day's budget earns a standing block
		if err := s.block(ctx, ip, fmt.Sprintf("Exceeded daily limit of %d requests", s.perDay)); err != nil {
			s.logger.WithError(err).WithField("ip", ip).Error("Failed to write block record")
		}
	}

	if !result.Allowed {
		s.rollback(ctx, minuteKey, hourKey, dayKey)
		s.logger.WithFields(map[string]interface{}{
			"ip":     ip,
			"reason": result.Reason,
		}).Warn("Request rejected by rate limiter")
	}

	return result, nil
}

// Remaining reports how many requests the IP has left in the minute window
func (s *rateLimitService) Remaining(result *domain.RateLimitResult) int {
	remaining := s.perMinute - int(result.MinuteCount)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Unblock removes a standing block record
func (s *rateLimitService) Unblock(ctx context.Context, ip string) error {
	key := s.redisClient.KeyBuilder.KeyBlocked(ip)
	exists, err := s.redisClient.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check block record: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("no block record for %s", ip)
	}
	if err := s.redisClient.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete block record: %w", err)
	}
	s.logger.WithField("ip", ip).Info("IP unblocked")
	return nil
}

// ListBlocked returns every standing block record
func (s *rateLimitService) ListBlocked(ctx context.Context) ([]domain.BlockRecord, error) {
	keys, err := s.redisClient.ScanKeys(ctx, s.redisClient.KeyBuilder.KeyBlockedPattern())
	if err != nil {
		return nil, fmt.Errorf("failed to scan block records: %w", err)
	}

	records := make([]domain.BlockRecord, 0, len(keys))
	for _, key := range keys {
		fields, err := s.redisClient.HGetAll(ctx, key)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to read block record")
			continue
		}
		ip := fields["ip"]
		if ip == "" {
			// Recover the IP from the key for records written by hand
			ip = key[strings.LastIndex(key, ":")+1:]
		}
		records = append(records, domain.BlockRecord{
			IP:        ip,
			Reason:    fields["reason"],
			BlockedAt: fields["blocked_at"],
		})
	}
	return records, nil
}

// block writes a standing block record for the IP. No expiry: blocks survive
// window resets and are lifted only by an operator.
func (s *rateLimitService) block(ctx context.Context, ip, reason string) error {
	return s.redisClient.HSet(ctx, s.redisClient.KeyBuilder.KeyBlocked(ip),
		"ip", ip,
		"reason", reason,
		"blocked_at", time.Now().UTC().Format(time.RFC3339),
	)
}

// rollback returns the budget consumed by a rejected request
func (s *rateLimitService) rollback(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if _, err := s.redisClient.Decr(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to roll back rate counter")
		}
	}
}

func (s *rateLimitService) expireQuietly(ctx context.Context, key string, ttl time.Duration) {
	if err := s.redisClient.Expire(ctx, key, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to set window expiry")
	}
}

// retryAfter reads the window's remaining TTL, falling back to the full window
func (s *rateLimitService) retryAfter(ctx context.Context, key string, fallbackSec int) int {
	ttl, err := s.redisClient.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return fallbackSec
	}
	return int(ttl.Seconds())
}
