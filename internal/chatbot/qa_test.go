package chatbot

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpick/reelpick/internal/store"
)

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func bank() []store.QAEntry {
	return []store.QAEntry{
		{ID: 1, Question: "what is a good movie", Answer: "Try Inception.", Embedding: []float32{1, 0, 0}},
		{ID: 2, Question: "how do ratings work", Answer: "Ratings are out of 10.", Embedding: []float32{0, 1, 0}},
		{ID: 3, Question: "who directed interstellar", Answer: "Christopher Nolan.", Embedding: []float32{0.9, 0.1, 0}},
	}
}

func TestMatchRanksByCosineSimilarity(t *testing.T) {
	m := NewMatcher(bank(), &fixedEmbedder{vec: []float32{1, 0, 0}})

	matches := m.Match(context.Background(), "good movie?", 3)
	require.Len(t, matches, 3)
	assert.Equal(t, int64(1), matches[0].Entry.ID)
	assert.Equal(t, int64(3), matches[1].Entry.ID)
	assert.Equal(t, int64(2), matches[2].Entry.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestMatchHonorsK(t *testing.T) {
	m := NewMatcher(bank(), &fixedEmbedder{vec: []float32{1, 0, 0}})
	assert.Len(t, m.Match(context.Background(), "q", 2), 2)
	assert.Nil(t, m.Match(context.Background(), "q", 0))
}

func TestMatchSkipsMismatchedEmbeddingSpace(t *testing.T) {
	entries := bank()
	entries[1].Embedding = []float32{1, 0} // wrong dimensionality

	m := NewMatcher(entries, &fixedEmbedder{vec: []float32{1, 0, 0}})
	matches := m.Match(context.Background(), "q", 3)
	assert.Len(t, matches, 2)
}

func TestMatchEmptyWhenUnreadyOrEmbedFails(t *testing.T) {
	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Ready())
	assert.Nil(t, nilMatcher.Match(context.Background(), "q", 3))

	noBank := NewMatcher(nil, &fixedEmbedder{vec: []float32{1}})
	assert.False(t, noBank.Ready())

	noModel := NewMatcher(bank(), nil)
	assert.False(t, noModel.Ready())

	failing := NewMatcher(bank(), &fixedEmbedder{err: fmt.Errorf("model unavailable")})
	assert.True(t, failing.Ready())
	assert.Nil(t, failing.Match(context.Background(), "q", 3))
}

func TestCosineSimilarityZeroVectors(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
