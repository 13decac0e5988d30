package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	// Set key prefix based on environment
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Admission control key builders
func (kb *KeyBuilder) KeyRateMinute(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateMinute, ip))
}

func (kb *KeyBuilder) KeyRateHour(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateHour, ip))
}

func (kb *KeyBuilder) KeyRateDay(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateDay, ip))
}

func (kb *KeyBuilder) KeyBlocked(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyBlocked, ip))
}

// KeyBlockedPattern matches every block record in this environment
func (kb *KeyBuilder) KeyBlockedPattern() string {
	return kb.BuildKey(fmt.Sprintf(KeyBlocked, "*"))
}

func (kb *KeyBuilder) KeySessionCap(sessionID string) string {
	return kb.BuildKey(fmt.Sprintf(KeySessionCap, sessionID))
}

func (kb *KeyBuilder) KeyDailyQuota(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyDailyQuota, date))
}

// Conversation key builders
func (kb *KeyBuilder) KeySession(sessionID string) string {
	return kb.BuildKey(fmt.Sprintf(KeySession, sessionID))
}

func (kb *KeyBuilder) KeySessionPattern() string {
	return kb.BuildKey(fmt.Sprintf(KeySession, "*"))
}

func (kb *KeyBuilder) KeyCache(model, hash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyCache, model, hash))
}

// KeyCachePattern matches every cache entry for a model
func (kb *KeyBuilder) KeyCachePattern(model string) string {
	return kb.BuildKey(fmt.Sprintf(KeyCache, model, "*"))
}

// Generic key builders for custom patterns
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	key := fmt.Sprintf(pattern, args...)
	return kb.BuildKey(key)
}
