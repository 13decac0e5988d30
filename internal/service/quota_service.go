package service

import (
	"context"
	"strconv"
	"time"

	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

// Usage levels that earn a warning log as the day's quota burns down
var quotaWarnLevels = []int64{400, 450, 490}

// quotaService tracks service-wide daily usage under a dated key. The date is
// the server's local calendar day; rollover is inherent in the key, so a new
// day starts at zero without any reset job.
type quotaService struct {
	redisClient *redis.Client
	logger      *logger.Logger
	limit       int
	now         func() time.Time
}

// NewQuotaService creates the daily usage tracker
func NewQuotaService(redisClient *redis.Client, logger *logger.Logger, limit int) QuotaService {
	return &quotaService{
		redisClient: redisClient,
		logger:      logger,
		limit:       limit,
		now:         time.Now,
	}
}

// Check reports whether today's quota still has room. Exhausted quota does not
// reject the turn; callers treat it as a signal to prefer the backup model.
// Redis errors report room available.
func (s *quotaService) Check(ctx context.Context) (bool, int64) {
	used, err := s.Usage(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Quota lookup failed, assuming room available")
		return true, 0
	}
	return used < int64(s.limit), used
}

// Increment counts one answered turn against today's quota
func (s *quotaService) Increment(ctx context.Context) {
	key := s.redisClient.KeyBuilder.KeyDailyQuota(s.today())

	count, err := s.redisClient.Incr(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to increment daily quota")
		return
	}
	if count == 1 {
		if err := s.redisClient.Expire(ctx, key, s.untilMidnight()); err != nil {
			s.logger.WithError(err).Warn("Failed to set quota expiry")
		}
	}

	for _, level := range quotaWarnLevels {
		if count == level {
			s.logger.WithFields(map[string]interface{}{
				"used":  count,
				"limit": s.limit,
			}).Warn("Daily quota running low")
		}
	}
}

// Usage returns today's answered-turn count
func (s *quotaService) Usage(ctx context.Context) (int64, error) {
	key := s.redisClient.KeyBuilder.KeyDailyQuota(s.today())
	val, err := s.redisClient.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Limit returns the configured daily ceiling
func (s *quotaService) Limit() int {
	return s.limit
}

func (s *quotaService) today() string {
	return s.now().Format("2006-01-02")
}

// untilMidnight keeps the dated key from lingering past its day
func (s *quotaService) untilMidnight() time.Duration {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return midnight.Sub(now)
}
