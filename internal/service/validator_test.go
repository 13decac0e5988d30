package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"
)

func newTestValidator(t *testing.T, maxLength int) ValidatorService {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return NewValidatorService(maxLength, log)
}

func TestValidatorService_Validate(t *testing.T) {
	validator := newTestValidator(t, 500)

	tests := []struct {
		name     string
		message  string
		wantErr  bool
		wantType errors.ErrorType
	}{
		{
			name:    "normal message",
			message: "Tell me about your experience with distributed systems",
			wantErr: false,
		},
		{
			name:    "message at exact limit",
			message: strings.Repeat("a", 500),
			wantErr: false,
		},
		{
			name:     "message one over limit",
			message:  strings.Repeat("a", 501),
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "empty message",
			message:  "",
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "whitespace only",
			message:  "   \t\n  ",
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "script tag",
			message:  `hello <script src="x.js">`,
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "javascript scheme",
			message:  "click javascript:alert(1)",
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "sql injection",
			message:  "'; DROP table users",
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "path traversal",
			message:  "read ../../../etc/passwd",
			wantErr:  true,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:    "benign mention of select",
			message: "How did you select the database for that project?",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := validator.Validate(tt.message)
			if tt.wantErr {
				require.NotNil(t, appErr)
				assert.Equal(t, tt.wantType, appErr.Type)
			} else {
				assert.Nil(t, appErr)
			}
		})
	}
}

func TestValidatorService_MultibyteLength(t *testing.T) {
	validator := newTestValidator(t, 10)

	// 10 multibyte runes are within a 10-rune limit even though the
	// byte length is far larger
	assert.Nil(t, validator.Validate(strings.Repeat("日", 10)))
	assert.NotNil(t, validator.Validate(strings.Repeat("日", 11)))
}

func TestValidatorService_DefaultLimit(t *testing.T) {
	validator := newTestValidator(t, 0)
	assert.Nil(t, validator.Validate(strings.Repeat("a", 500)))
	assert.NotNil(t, validator.Validate(strings.Repeat("a", 501)))
}
