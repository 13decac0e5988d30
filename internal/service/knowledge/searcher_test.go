package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected int
	}{
		{
			name:     "Short query gets expansions",
			query:    "what do you do?",
			expected: 3,
		},
		{
			name:     "Long query stays as-is",
			query:    "can you walk me through the most technically challenging project you have worked on in the last five years?",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries := expandQuery(tt.query)
			assert.Len(t, queries, tt.expected)
			assert.Equal(t, tt.query, queries[0])
		})
	}
}

func TestDedupeKey(t *testing.T) {
	a := dedupeKey("I  worked on   distributed systems\nat scale")
	b := dedupeKey("i worked on distributed systems at scale")
	assert.Equal(t, a, b)

	// Keys truncate so trailing differences beyond the window collapse
	base := "the quick brown fox jumps over the lazy dog and keeps running through the forest until it reaches the river bank"
	assert.Equal(t, dedupeKey(base+" one"), dedupeKey(base+" two"))
}
