package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/logger"
)

const searchTimeout = 20 * time.Second

// Searcher retrieves background passages for a chat turn
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.KnowledgeHit, error)
}

// PineconeSearcher queries a Pinecone index with embedded queries
type PineconeSearcher struct {
	client    *pinecone.Client
	indexName string
	embedder  llm.Embedder
	log       *logger.Logger
}

// NewPineconeSearcher connects to the index and verifies it exists
func NewPineconeSearcher(apiKey, indexName string, embedder llm.Embedder, log *logger.Logger) (*PineconeSearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return &PineconeSearcher{
		client:    client,
		indexName: indexName,
		embedder:  embedder,
		log:       log.WithField("component", "knowledge_search"),
	}, nil
}

// Search embeds the query plus two generic expansions, queries the index for
// each, and returns the deduplicated top hits ordered by score.
func (s *PineconeSearcher) Search(ctx context.Context, query string, topK int) ([]domain.KnowledgeHit, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	index, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %q: %w", s.indexName, err)
	}

	conn, err := s.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}
	defer conn.Close()

	queries := expandQuery(query)
	seen := make(map[string]bool)
	var hits []domain.KnowledgeHit

	for _, q := range queries {
		vector, err := s.embedder.Embed(ctx, q)
		if err != nil {
			s.log.WithError(err).Warn("query embedding failed")
			continue
		}

		resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          vector,
			TopK:            uint32(topK),
			IncludeMetadata: true,
		})
		if err != nil {
			s.log.WithError(err).Warn("index query failed")
			continue
		}

		for _, match := range resp.Matches {
			if match.Vector == nil || match.Vector.Metadata == nil {
				continue
			}
			meta := match.Vector.Metadata.AsMap()
			text, _ := meta["text"].(string)
			if text == "" {
				continue
			}
			key := dedupeKey(text)
			if seen[key] {
				continue
			}
			seen[key] = true

			source, _ := meta["source"].(string)
			hits = append(hits, domain.KnowledgeHit{
				Text:   text,
				Source: source,
				Score:  match.Score,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > 10 {
		hits = hits[:10]
	}
	return hits, nil
}

// expandQuery widens short questions so related passages still surface
func expandQuery(query string) []string {
	queries := []string{query}
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 60 {
		queries = append(queries,
			trimmed+" background experience",
			trimmed+" skills projects",
		)
	}
	return queries
}

// dedupeKey collapses near-identical passages by their leading content
func dedupeKey(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if len(normalized) > 100 {
		normalized = normalized[:100]
	}
	return normalized
}
