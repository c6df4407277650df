package chatbot

import (
	"context"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/reelpick/reelpick/internal/store"
)

// Embedder encodes text into the QA bank's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QAMatch pairs a bank entry with its cosine similarity to the query.
type QAMatch struct {
	Entry store.QAEntry
	Score float32
}

// Matcher ranks the fixed QA bank against user text by embedding similarity.
// When the bank or the embedding model is unavailable it returns empty
// results so callers deterministically fall back.
type Matcher struct {
	entries  []store.QAEntry
	embedder Embedder
}

func NewMatcher(entries []store.QAEntry, embedder Embedder) *Matcher {
	return &Matcher{entries: entries, embedder: embedder}
}

func (m *Matcher) Ready() bool {
	return m != nil && m.embedder != nil && len(m.entries) > 0
}

// Match returns the top k bank entries by descending similarity. Empty on
// any failure; never an error.
func (m *Matcher) Match(ctx context.Context, text string, k int) []QAMatch {
	if !m.Ready() || k <= 0 {
		return nil
	}

	queryEmbedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		log.WithError(err).Warn("Failed to embed chat query, skipping QA match")
		return nil
	}

	matches := make([]QAMatch, 0, len(m.entries))
	for _, entry := range m.entries {
		if len(entry.Embedding) != len(queryEmbedding) {
			continue // wrong embedding space or missing embedding
		}
		matches = append(matches, QAMatch{
			Entry: entry,
			Score: cosineSimilarity(queryEmbedding, entry.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
