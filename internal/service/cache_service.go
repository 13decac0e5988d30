package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"time"

	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

// cacheEntry is the stored form of a cached answer
type cacheEntry struct {
	Response  string    `json:"response"`
	Embedding []float32 `json:"embedding,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
}

// cacheService caches model answers keyed by model and normalized question.
// Policy: exact match first, then an optional linear semantic scan over the
// model's entries. Every entry gets the same 24h TTL. All failures are
// silent misses; the cache can never fail a chat turn.
type cacheService struct {
	redisClient *redis.Client
	logger      *logger.Logger
	embedder    llm.Embedder // nil disables the semantic path
	threshold   float64
	ttl         time.Duration
}

// NewCacheService creates the response cache. Pass a nil embedder to run
// exact-match only.
func NewCacheService(redisClient *redis.Client, logger *logger.Logger, embedder llm.Embedder, threshold float64, ttlHours int) CacheService {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &cacheService{
		redisClient: redisClient,
		logger:      logger,
		embedder:    embedder,
		threshold:   threshold,
		ttl:         time.Duration(ttlHours) * time.Hour,
	}
}

// Lookup returns a cached answer for the question, or ("", false)
func (s *cacheService) Lookup(ctx context.Context, model, question string) (string, bool) {
	normalized := normalizeQuestion(question)
	key := s.redisClient.KeyBuilder.KeyCache(model, questionHash(model, normalized))

	val, err := s.redisClient.Get(ctx, key)
	if err == nil {
		var entry cacheEntry
		if json.Unmarshal([]byte(val), &entry) == nil && entry.Response != "" {
			s.logger.WithField("model", model).Debug("Cache hit (exact)")
			return entry.Response, true
		}
	} else if !redis.IsNil(err) {
		s.logger.WithError(err).Debug("Cache lookup failed")
		return "", false
	}

	if s.embedder == nil {
		return "", false
	}
	return s.semanticLookup(ctx, model, normalized)
}

// Store caches an answer unless the exchange looks personal or trivial
func (s *cacheService) Store(ctx context.Context, model, question, answer string) {
	if !Cacheable(question, answer) {
		return
	}

	normalized := normalizeQuestion(question)
	entry := cacheEntry{
		Response: answer,
		CachedAt: time.Now().UTC(),
	}

	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, normalized); err == nil {
			entry.Embedding = vec
		} else {
			s.logger.WithError(err).Debug("Cache embedding failed, storing exact-only entry")
		}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	key := s.redisClient.KeyBuilder.KeyCache(model, questionHash(model, normalized))
	if err := s.redisClient.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.WithError(err).Debug("Cache store failed")
	}
}

// Clear drops every cached answer for the model
func (s *cacheService) Clear(ctx context.Context, model string) error {
	return s.redisClient.InvalidatePattern(ctx, s.redisClient.KeyBuilder.KeyCachePattern(model))
}

// semanticLookup scans the model's entries for a close-enough question.
// Linear on purpose: the cache holds at most a day's worth of answers.
func (s *cacheService) semanticLookup(ctx context.Context, model, normalized string) (string, bool) {
	queryVec, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		s.logger.WithError(err).Debug("Semantic lookup embedding failed")
		return "", false
	}

	keys, err := s.redisClient.ScanKeys(ctx, s.redisClient.KeyBuilder.KeyCachePattern(model))
	if err != nil {
		return "", false
	}

	best := ""
	bestScore := s.threshold
	for _, key := range keys {
		val, err := s.redisClient.Get(ctx, key)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if json.Unmarshal([]byte(val), &entry) != nil || len(entry.Embedding) == 0 {
			continue
		}
		if score := cosineSimilarity(queryVec, entry.Embedding); score >= bestScore {
			best = entry.Response
			bestScore = score
		}
	}

	if best != "" {
		s.logger.WithFields(map[string]interface{}{
			"model": model,
			"score": bestScore,
		}).Debug("Cache hit (semantic)")
		return best, true
	}
	return "", false
}

// Cacheable filters out exchanges that should stay out of the shared cache:
// identity handoffs are personal, and very short answers are usually
// clarifications rather than reusable content.
func Cacheable(question, answer string) bool {
	if len([]rune(answer)) < 40 {
		return false
	}
	if ExtractEmail(question) != "" || ExtractLinkedIn(question) != "" {
		return false
	}
	if ExtractName(question, false) != "" {
		return false
	}
	return true
}

// normalizeQuestion trims, lowercases and collapses whitespace so trivially
// different phrasings share an entry
func normalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

func questionHash(model, normalized string) string {
	sum := md5.Sum([]byte(model + ":" + normalized))
	return hex.EncodeToString(sum[:])
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
