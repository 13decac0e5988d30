package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed vector per known phrase
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

const cacheableAnswer = "I spent several years building distributed systems in Go, mostly around real-time data pipelines."

func TestCacheService_ExactRoundTrip(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewCacheService(client, newServiceLogger(t), nil, 0.85, 24)
	ctx := context.Background()

	question := "What is your experience with Go?"
	svc.Store(ctx, "gemini-2.0-flash", question, cacheableAnswer)

	answer, hit := svc.Lookup(ctx, "gemini-2.0-flash", question)
	assert.True(t, hit)
	assert.Equal(t, cacheableAnswer, answer)

	// Normalization makes casing and spacing irrelevant
	answer, hit = svc.Lookup(ctx, "gemini-2.0-flash", "  WHAT is your   experience with GO? ")
	assert.True(t, hit)
	assert.Equal(t, cacheableAnswer, answer)

	// Different model, different namespace
	_, hit = svc.Lookup(ctx, "llama-3.3-70b-versatile", question)
	assert.False(t, hit)
}

func TestCacheService_Miss(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewCacheService(client, newServiceLogger(t), nil, 0.85, 24)

	_, hit := svc.Lookup(context.Background(), "gemini-2.0-flash", "never asked before")
	assert.False(t, hit)
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		name     string
		question string
		answer   string
		want     bool
	}{
		{
			name:     "normal exchange",
			question: "What is your experience with Go?",
			answer:   cacheableAnswer,
			want:     true,
		},
		{
			name:     "short answer",
			question: "What is your experience with Go?",
			answer:   "A lot!",
			want:     false,
		},
		{
			name:     "question carries an email",
			question: "Can you email me at jordan@example.com",
			answer:   cacheableAnswer,
			want:     false,
		},
		{
			name:     "question carries a linkedin url",
			question: "Here it is: linkedin.com/in/jordan",
			answer:   cacheableAnswer,
			want:     false,
		},
		{
			name:     "question is an introduction",
			question: "Hi, my name is Jordan Lee",
			answer:   cacheableAnswer,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cacheable(tt.question, tt.answer))
		})
	}
}

func TestCacheService_StoreSkipsPersonal(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewCacheService(client, newServiceLogger(t), nil, 0.85, 24)
	ctx := context.Background()

	svc.Store(ctx, "gemini-2.0-flash", "my name is Jordan", cacheableAnswer)

	_, hit := svc.Lookup(ctx, "gemini-2.0-flash", "my name is Jordan")
	assert.False(t, hit)
}

func TestCacheService_SemanticLookup(t *testing.T) {
	client, _ := newTestRedis(t)

	stored := "what is your experience with go?"
	near := "tell me about your go experience"
	far := "what music do you like"

	embedder := &stubEmbedder{vectors: map[string][]float32{
		stored: {1, 0, 0},
		near:   {0.95, 0.3, 0}, // cosine ~0.95 against stored
		far:    {0, 1, 0},      // orthogonal
	}}

	svc := NewCacheService(client, newServiceLogger(t), embedder, 0.85, 24)
	ctx := context.Background()

	svc.Store(ctx, "gemini-2.0-flash", "What is your experience with Go?", cacheableAnswer)

	// Paraphrase above the threshold hits
	answer, hit := svc.Lookup(ctx, "gemini-2.0-flash", "Tell me about your Go experience")
	assert.True(t, hit)
	assert.Equal(t, cacheableAnswer, answer)

	// Unrelated question misses
	_, hit = svc.Lookup(ctx, "gemini-2.0-flash", "What music do you like")
	assert.False(t, hit)
}

func TestCacheService_EmbedderFailureFallsBackToExact(t *testing.T) {
	client, _ := newTestRedis(t)
	embedder := &stubEmbedder{err: assert.AnError}
	svc := NewCacheService(client, newServiceLogger(t), embedder, 0.85, 24)
	ctx := context.Background()

	question := "What is your experience with Go?"
	svc.Store(ctx, "gemini-2.0-flash", question, cacheableAnswer)

	// Exact match still works without embeddings
	answer, hit := svc.Lookup(ctx, "gemini-2.0-flash", question)
	assert.True(t, hit)
	assert.Equal(t, cacheableAnswer, answer)

	// Paraphrases miss when the embedder is down
	_, hit = svc.Lookup(ctx, "gemini-2.0-flash", "Tell me about your Go experience")
	assert.False(t, hit)
}

func TestCacheService_Clear(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewCacheService(client, newServiceLogger(t), nil, 0.85, 24)
	ctx := context.Background()

	svc.Store(ctx, "gemini-2.0-flash", "What is your experience with Go?", cacheableAnswer)
	svc.Store(ctx, "llama-3.3-70b-versatile", "What is your experience with Go?", cacheableAnswer)

	require.NoError(t, svc.Clear(ctx, "gemini-2.0-flash"))

	_, hit := svc.Lookup(ctx, "gemini-2.0-flash", "What is your experience with Go?")
	assert.False(t, hit)

	// Other models are untouched
	_, hit = svc.Lookup(ctx, "llama-3.3-70b-versatile", "What is your experience with Go?")
	assert.True(t, hit)
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "what is go", normalizeQuestion("  What   IS\tGo  "))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
}
