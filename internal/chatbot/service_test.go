package chatbot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpick/reelpick/internal/catalog"
	"github.com/reelpick/reelpick/internal/store"
	"github.com/reelpick/reelpick/internal/tmdb"
	"github.com/reelpick/reelpick/internal/translate"
)

type fakeGateway struct {
	known   map[string]*tmdb.SearchResult
	byGenre map[string][]tmdb.SearchResult
}

func (g *fakeGateway) Search(ctx context.Context, title string) *tmdb.SearchResult {
	return g.known[strings.ToLower(title)]
}

func (g *fakeGateway) DiscoverByGenre(ctx context.Context, genreName string, limit int) []tmdb.SearchResult {
	results := g.byGenre[genreName]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

type fakeRecommender struct {
	cards        []tmdb.MovieCard
	lastTitle    string
	fallbackFor  string
	fallbackHits int
}

func (r *fakeRecommender) RecommendFor(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard {
	r.lastTitle = title
	return r.cards
}

func (r *fakeRecommender) Fallback(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard {
	r.fallbackFor = title
	r.fallbackHits++
	return r.cards
}

type memConversations struct {
	userID string
	day    string
	turns  []store.ChatMessage
}

func (c *memConversations) AppendMessages(userID, day string, messages []store.ChatMessage) error {
	c.userID = userID
	c.day = day
	c.turns = append(c.turns, messages...)
	return nil
}

// scriptedEmbedder maps exact query text to a vector; anything else gets the
// zero-ish default.
type scriptedEmbedder struct {
	byText     map[string][]float32
	defaultVec []float32
}

func (e *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.byText[text]; ok {
		return v, nil
	}
	return e.defaultVec, nil
}

func testIndex() *catalog.Index {
	return catalog.Build([]catalog.MovieRecord{
		{ID: 0, Title: "Inception", TitleClean: "inception", Features: "dream heist nolan scifi"},
		{ID: 1, Title: "Interstellar", TitleClean: "interstellar", Features: "space nolan scifi"},
	})
}

func testService(rec *fakeRecommender, matcher *Matcher, conv ConversationStore) *Service {
	gw := &fakeGateway{known: map[string]*tmdb.SearchResult{
		"the dark knight": {ID: 155, Title: "The Dark Knight", Rating: 8.5, ReleaseDate: "2008-07-16"},
	}}
	return NewService(testIndex(), gw, rec, matcher, translate.New(), conv, "US")
}

func TestReplyEmptyMessage(t *testing.T) {
	s := testService(&fakeRecommender{}, nil, nil)
	assert.Equal(t, "Please type a message.", s.Reply(context.Background(), "", "   "))
}

func TestReplyGreeting(t *testing.T) {
	s := testService(&fakeRecommender{}, nil, nil)

	reply := s.Reply(context.Background(), "", "hello")
	assert.Contains(t, reply, "Hello")
}

func TestReplyRecommendationForKnownTitle(t *testing.T) {
	rec := &fakeRecommender{cards: []tmdb.MovieCard{
		{ID: 27205, Title: "Interstellar", Rating: 8.4, ReleaseDate: "2014-11-05", Overview: "A team travels through a wormhole."},
		{ID: 77, Title: "Memento", Rating: 8.2, ReleaseDate: "2000-10-11"},
	}}
	s := testService(rec, nil, nil)

	reply := s.Reply(context.Background(), "", "recommend movies like Inception")

	assert.Equal(t, "inception", rec.lastTitle)
	assert.Contains(t, reply, "Based on *Inception*")
	assert.Contains(t, reply, "**1. Interstellar** (2014) ⭐ 8.4/10")
	assert.Contains(t, reply, "A team travels through a wormhole.")
	assert.Contains(t, reply, "**2. Memento** (2000)")
}

func TestReplyRecommendationUnresolvedEntityFallsBackToGeneral(t *testing.T) {
	// Entity fails verification, and the query names no genre keyword.
	s := testService(&fakeRecommender{}, nil, nil)

	reply := s.Reply(context.Background(), "", "recommend movies like Zzyzx Quux")
	assert.Contains(t, reply, "highly recommended movies")
	// The one popular title the gateway knows gets real card data.
	assert.Contains(t, reply, "**1. The Dark Knight** (2008) ⭐ 8.5/10")
	assert.Contains(t, reply, "**2. Inception**")
}

func TestReplyGenreRecommendation(t *testing.T) {
	rec := &fakeRecommender{cards: []tmdb.MovieCard{
		{ID: 680, Title: "Pulp Fiction", Rating: 8.5, ReleaseDate: "1994-09-10"},
	}}
	s := testService(rec, nil, nil)

	reply := s.Reply(context.Background(), "", "can you suggest some comedy movies")

	assert.Equal(t, "Superbad", rec.fallbackFor)
	assert.Contains(t, reply, "Top Comedy Movies")
	assert.Contains(t, reply, "Pulp Fiction")
}

func TestReplyGenreRecommendationUsesGenreDiscovery(t *testing.T) {
	gw := &fakeGateway{byGenre: map[string][]tmdb.SearchResult{
		"Horror": {{ID: 694, Title: "The Shining", Rating: 8.2, ReleaseDate: "1980-05-23"}},
	}}
	rec := &fakeRecommender{}
	s := NewService(testIndex(), gw, rec, nil, translate.New(), nil, "US")

	reply := s.Reply(context.Background(), "", "suggest a horror movie")

	assert.Contains(t, reply, "Top Horror Movies")
	assert.Contains(t, reply, "**1. The Shining** (1980) ⭐ 8.2/10")
	assert.Zero(t, rec.fallbackHits, "discovery hit must not reach the fallback")
}

func TestReplyQAAcceptsOnlyStrictlyAboveThreshold(t *testing.T) {
	entries := []store.QAEntry{
		{ID: 1, Question: "what is a good movie", Answer: "Try Inception.", Embedding: []float32{1, 0, 0, 0}},
	}

	// Integer components keep the cosine exact in float32: 7/10 for the
	// borderline query (must be rejected, the gate is strictly greater)
	// and 8/10 for the accepted one.
	atThreshold := []float32{7, 7, 1, 1}
	above := []float32{8, 6, 0, 0}

	embedder := &scriptedEmbedder{
		byText: map[string][]float32{
			"borderline question": atThreshold,
			"close question":      above,
		},
		defaultVec: []float32{0, 1, 0, 0},
	}
	s := testService(&fakeRecommender{}, NewMatcher(entries, embedder), nil)

	assert.Equal(t,
		"I'm not sure I understand. Try asking about specific movies, ratings, popularity, or recommendations!",
		s.Reply(context.Background(), "", "borderline question"))
	assert.Equal(t, "Try Inception.", s.Reply(context.Background(), "", "close question"))
}

func TestReplyUnknownKeywordFallbacks(t *testing.T) {
	matcher := NewMatcher([]store.QAEntry{
		{ID: 1, Question: "q", Answer: "a", Embedding: []float32{1, 0}},
	}, &scriptedEmbedder{defaultVec: []float32{0, 1}})
	s := testService(&fakeRecommender{}, matcher, nil)

	assert.Contains(t, s.Reply(context.Background(), "", "is this popular"), "popularity")
	assert.Contains(t, s.Reply(context.Background(), "", "what rating does it have"), "ratings")
	assert.Contains(t, s.Reply(context.Background(), "", "tell me about stuff"), "about specific movies")
}

func TestReplyUnreadyMatcherUsesCannedFallback(t *testing.T) {
	s := testService(&fakeRecommender{}, nil, nil)

	reply := s.Reply(context.Background(), "", "who directed interstellar")
	assert.Contains(t, fallbackReplies, reply)
}

func TestReplySavesTurnForAuthenticatedUser(t *testing.T) {
	conv := &memConversations{}
	s := testService(&fakeRecommender{}, nil, conv)

	s.Reply(context.Background(), "user-1", "hello")

	require.Len(t, conv.turns, 2)
	assert.Equal(t, "user-1", conv.userID)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, conv.day)
	assert.Equal(t, "user", conv.turns[0].Role)
	assert.Equal(t, "hello", conv.turns[0].Text)
	assert.Equal(t, "bot", conv.turns[1].Role)
	assert.NotEmpty(t, conv.turns[1].Text)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "The Dark Knight", titleCase("the dark knight"))
	assert.Equal(t, "Amélie", titleCase("amélie"))
}
