package domain

import (
	"time"
)

// Message is a single conversation entry
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation record persisted in Redis
type Session struct {
	ID              string    `json:"id"`
	Messages        []Message `json:"messages"`
	MessageCount    int       `json:"message_count"` // stored entries, user and assistant combined
	UserName        string    `json:"user_name,omitempty"`
	UserEmail       string    `json:"user_email,omitempty"`
	UserLinkedIn    string    `json:"user_linkedin,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	AskedForName    bool      `json:"asked_for_name"`
	AskedForLinkedIn bool     `json:"asked_for_linkedin"`
	StartedAt       time.Time `json:"started_at"`
	LastActivity    time.Time `json:"last_activity"`
}

// SessionSummary is the metadata view returned by the session endpoint
type SessionSummary struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	UserName     string    `json:"user_name,omitempty"`
	UserLinkedIn string    `json:"user_linkedin,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ChatRequest is the inbound chat payload
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// ChatResponse is the chat reply envelope
type ChatResponse struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	Timestamp    string `json:"timestamp"`
	ResponseTime string `json:"response_time"` // e.g. "1.24s"
	Model        string `json:"model"`
	FollowUp     bool   `json:"follow_up,omitempty"` // an identity prompt was appended
}

// EndSessionRequest asks for a session to be closed out
type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

// RateLimitResult reports the admission decision for one request
type RateLimitResult struct {
	Allowed       bool   `json:"allowed"`
	Blocked       bool   `json:"blocked,omitempty"`
	Reason        string `json:"reason,omitempty"`
	MinuteCount   int64  `json:"minute_count"`
	HourCount     int64  `json:"hour_count"`
	DayCount      int64  `json:"day_count"`
	RetryAfterSec int    `json:"retry_after_sec,omitempty"`
}

// BlockRecord describes a standing IP block
type BlockRecord struct {
	IP        string `json:"ip"`
	Reason    string `json:"reason"`
	BlockedAt string `json:"blocked_at"`
}

// SecurityStats is the admin-facing snapshot of the admission layer
type SecurityStats struct {
	Blocked         []BlockRecord `json:"blocked"`
	QuotaUsedToday  int64         `json:"quota_used_today"`
	QuotaLimit      int           `json:"quota_limit"`
	LimitPerMinute  int           `json:"limit_per_minute"`
	LimitPerHour    int           `json:"limit_per_hour"`
	LimitPerDay     int           `json:"limit_per_day"`
	SessionCap      int           `json:"session_cap"`
}

// StatusResponse reports which model is live
type StatusResponse struct {
	Model       string `json:"model"`
	UsingBackup bool   `json:"using_backup"`
	Timestamp   string `json:"timestamp"`
}

// KnowledgeHit is one retrieved context passage
type KnowledgeHit struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

// ConversationArchive is an ended session persisted to PostgreSQL
type ConversationArchive struct {
	ID           int64     `json:"id" db:"id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	UserName     string    `json:"user_name" db:"user_name"`
	UserEmail    string    `json:"user_email" db:"user_email"`
	UserLinkedIn string    `json:"user_linkedin" db:"user_linkedin"`
	MessageCount int       `json:"message_count" db:"message_count"`
	Transcript   string    `json:"transcript" db:"transcript"` // JSON-encoded messages
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	EndedAt      time.Time `json:"ended_at" db:"ended_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
