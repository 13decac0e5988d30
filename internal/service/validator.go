package service

import (
	"fmt"
	"regexp"
	"strings"

	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"
)

// suspiciousPatterns flags script injection, SQL injection and path traversal
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)onerror\s*=`),
	regexp.MustCompile(`(?i)onclick\s*=`),
	regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop)\s+(all|distinct|from|table)`),
	regexp.MustCompile(`(?i);\s*(drop|delete|truncate)\s+`),
	regexp.MustCompile(`\.\./\.\./\.\./`),
}

// validatorService screens inbound messages before any counter is touched
type validatorService struct {
	maxLength int
	logger    *logger.Logger
}

// NewValidatorService creates a message validator with the configured ceiling
func NewValidatorService(maxLength int, logger *logger.Logger) ValidatorService {
	if maxLength <= 0 {
		maxLength = 500
	}
	return &validatorService{
		maxLength: maxLength,
		logger:    logger,
	}
}

// Validate returns nil when the message is acceptable. Length is measured in
// runes so multibyte input is not penalized.
func (s *validatorService) Validate(message string) *errors.AppError {
	runeCount := len([]rune(message))
	if runeCount > s.maxLength {
		return errors.NewValidationError(
			fmt.Sprintf("Message too long: %d characters (max %d)", runeCount, s.maxLength), nil)
	}

	if strings.TrimSpace(message) == "" {
		return errors.NewValidationError("Message cannot be empty", nil)
	}

	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(message) {
			s.logger.WithField("pattern", pattern.String()).Warn("Rejected suspicious message")
			return errors.NewValidationError("Message contains potentially malicious content", nil)
		}
	}

	return nil
}
