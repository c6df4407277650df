// Package chatbot implements the conversational pipeline: intent routing,
// entity extraction, recommendation formatting, semantic QA matching with a
// translation round-trip, and the per-day conversation log. Every branch
// ends in a canned reply; nothing here returns an error to the user.
package chatbot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/reelpick/reelpick/internal/catalog"
	"github.com/reelpick/reelpick/internal/store"
	"github.com/reelpick/reelpick/internal/tmdb"
	"github.com/reelpick/reelpick/internal/translate"
)

const (
	qaTopK             = 3
	qaAcceptThreshold  = 0.7 // accept only strictly greater
	chatRecommendTopN  = 5
	overviewSnippetLen = 100
)

// Gateway is the slice of the catalog API the chat pipeline needs directly.
type Gateway interface {
	Search(ctx context.Context, title string) *tmdb.SearchResult
	DiscoverByGenre(ctx context.Context, genreName string, limit int) []tmdb.SearchResult
}

// Recommender resolves similar-movie requests, dataset first.
type Recommender interface {
	RecommendFor(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard
	Fallback(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard
}

// ConversationStore persists chat turns for authenticated users.
type ConversationStore interface {
	AppendMessages(userID, day string, messages []store.ChatMessage) error
}

// fallbackReplies are used when the QA bank or embedding model failed to
// load at startup.
var fallbackReplies = []string{
	"I recommend checking out 'Inception' if you like mind-bending thrillers!",
	"Have you seen 'The Shawshank Redemption'? It's a classic!",
	"If you enjoy action movies, 'Mad Max: Fury Road' is fantastic!",
	"For a good laugh, I'd suggest 'Superbad' or 'The Hangover'.",
	"'The Dark Knight' is a must-watch if you haven't seen it yet!",
	"If you're in the mood for something emotional, 'The Pursuit of Happyness' is great.",
	"For sci-fi fans, 'Interstellar' is an amazing experience!",
	"Check out 'Parasite' if you want something thought-provoking and award-winning.",
}

var popularTitles = []string{
	"The Dark Knight", "Inception", "The Shawshank Redemption", "Pulp Fiction", "Forrest Gump",
}

// genreSeeds map a genre keyword in the query to a seed title whose similar
// movies stand in for the genre.
var genreSeeds = []struct {
	keyword string
	genre   string
	seed    string
}{
	{"action", "Action", "The Dark Knight"},
	{"comedy", "Comedy", "Superbad"},
	{"drama", "Drama", "The Shawshank Redemption"},
	{"horror", "Horror", "The Shining"},
	{"sci-fi", "Science Fiction", "Inception"},
	{"romantic", "Romance", "The Notebook"},
	{"thriller", "Thriller", "Se7en"},
	{"adventure", "Adventure", "Indiana Jones"},
	{"animation", "Animation", "Toy Story"},
}

type Service struct {
	index         *catalog.Index
	gateway       Gateway
	recommender   Recommender
	matcher       *Matcher
	translator    *translate.Translator
	conversations ConversationStore
	country       string
}

func NewService(
	index *catalog.Index,
	gateway Gateway,
	recommender Recommender,
	matcher *Matcher,
	translator *translate.Translator,
	conversations ConversationStore,
	country string,
) *Service {
	return &Service{
		index:         index,
		gateway:       gateway,
		recommender:   recommender,
		matcher:       matcher,
		translator:    translator,
		conversations: conversations,
		country:       country,
	}
}

// Reply runs one chat turn. userID may be empty for anonymous users, in
// which case nothing is persisted.
func (s *Service) Reply(ctx context.Context, userID, message string) string {
	query := strings.TrimSpace(message)
	if query == "" {
		return "Please type a message."
	}

	intent, greeting := Classify(query)
	switch intent {
	case IntentGreeting:
		s.saveTurn(userID, query, greeting)
		return greeting

	case IntentRecommendation:
		reply := s.handleRecommendation(ctx, strings.ToLower(query))
		s.saveTurn(userID, query, reply)
		return reply
	}

	if !s.matcher.Ready() {
		reply := fallbackReplies[rand.Intn(len(fallbackReplies))]
		s.saveTurn(userID, query, reply)
		return reply
	}

	translated, lang := s.translator.ToEnglish(ctx, query)

	reply := ""
	for _, match := range s.matcher.Match(ctx, translated, qaTopK) {
		if match.Score > qaAcceptThreshold {
			reply = match.Entry.Answer
			log.Debugf("QA match %.4f for %q -> %q", match.Score, translated, match.Entry.Question)
			break
		}
	}
	if reply == "" {
		reply = unknownReply(strings.ToLower(translated))
	}

	if lang != "en" {
		reply = s.translator.FromEnglish(ctx, reply, lang)
	}

	s.saveTurn(userID, query, reply)
	return reply
}

func (s *Service) handleRecommendation(ctx context.Context, query string) string {
	if entity := ExtractEntity(query, s.verifyMovie(ctx)); entity != "" {
		return s.recommendationsFor(ctx, entity)
	}

	for _, g := range genreSeeds {
		if strings.Contains(query, g.keyword) {
			return s.genreRecommendations(ctx, g.genre, g.seed)
		}
	}

	return s.generalRecommendations(ctx)
}

// verifyMovie accepts a candidate that exists in the local dataset or in the
// external catalog.
func (s *Service) verifyMovie(ctx context.Context) Verifier {
	return func(title string) bool {
		if s.index.FindExact(title) != nil {
			return true
		}
		return s.gateway != nil && s.gateway.Search(ctx, title) != nil
	}
}

func (s *Service) recommendationsFor(ctx context.Context, title string) string {
	cards := s.recommender.RecommendFor(ctx, title, chatRecommendTopN, s.country)
	if len(cards) == 0 {
		return fmt.Sprintf("I couldn't find specific recommendations for *%s*. %s",
			title, s.generalRecommendations(ctx))
	}
	return formatRecommendations(cards, title)
}

// genreRecommendations lists popular movies for the genre, seeding from
// similar-to-seed when genre discovery comes back empty.
func (s *Service) genreRecommendations(ctx context.Context, genre, seed string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎬 Top %s Movies:\n\n", genre)

	if s.gateway != nil {
		if results := s.gateway.DiscoverByGenre(ctx, genre, chatRecommendTopN); len(results) > 0 {
			for i, res := range results {
				writeCardLine(&sb, i+1, res.Title, res.ReleaseDate, res.Rating)
			}
			return sb.String()
		}
	}

	cards := s.recommender.Fallback(ctx, seed, chatRecommendTopN, s.country)
	if len(cards) == 0 {
		return fmt.Sprintf("🎬 Top %s Movies:\n• Check out popular %s films on TMDB!\n\nOr try asking for a specific %s movie. 😊",
			genre, genre, genre)
	}

	for i, card := range cards {
		writeCardLine(&sb, i+1, card.Title, card.ReleaseDate, card.Rating)
	}
	return sb.String()
}

func (s *Service) generalRecommendations(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("🎬 Here are some highly recommended movies:\n\n")

	for i, title := range popularTitles {
		var res *tmdb.SearchResult
		if s.gateway != nil {
			res = s.gateway.Search(ctx, title)
		}
		if res != nil {
			writeCardLine(&sb, i+1, res.Title, res.ReleaseDate, res.Rating)
		} else {
			fmt.Fprintf(&sb, "**%d. %s**\n", i+1, title)
		}
	}

	sb.WriteString("\nWant recommendations based on a specific movie or genre? 😊")
	return sb.String()
}

func formatRecommendations(cards []tmdb.MovieCard, originalTitle string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎬 Based on *%s*, I recommend:\n\n", titleCase(originalTitle))

	for i, card := range cards {
		writeCardLine(&sb, i+1, card.Title, card.ReleaseDate, card.Rating)
		if card.Overview != "" {
			snippet := card.Overview
			if len(snippet) > overviewSnippetLen {
				snippet = snippet[:overviewSnippetLen] + "..."
			}
			fmt.Fprintf(&sb, "   *%s*\n", snippet)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nWould you like more details about any of these? 😊")
	return sb.String()
}

func writeCardLine(sb *strings.Builder, rank int, title, releaseDate string, rating float64) {
	if title == "" {
		title = "Unknown Movie"
	}
	fmt.Fprintf(sb, "**%d. %s**", rank, title)
	if len(releaseDate) >= 4 {
		fmt.Fprintf(sb, " (%s)", releaseDate[:4])
	}
	if rating > 0 {
		fmt.Fprintf(sb, " ⭐ %.1f/10", rating)
	}
	sb.WriteString("\n")
}

// unknownReply is the keyword-based canned fallback when nothing in the QA
// bank matched above the threshold.
func unknownReply(query string) string {
	switch {
	case strings.Contains(query, "popular"):
		return "I can check popularity for specific movies. Try asking 'Is [movie name] popular?'"
	case strings.Contains(query, "rating"):
		return "I can check ratings for specific movies. Try asking 'What's the rating of [movie name]?'"
	case strings.Contains(query, "about"):
		return "I can tell you about specific movies. Try asking 'Tell me about [movie name]'"
	default:
		return "I'm not sure I understand. Try asking about specific movies, ratings, popularity, or recommendations!"
	}
}

func (s *Service) saveTurn(userID, userMessage, botReply string) {
	if userID == "" || s.conversations == nil {
		return
	}

	now := time.Now()
	day := now.Format("2006-01-02")
	err := s.conversations.AppendMessages(userID, day, []store.ChatMessage{
		{Role: "user", Text: userMessage, Timestamp: now},
		{Role: "bot", Text: botReply, Timestamp: now},
	})
	if err != nil {
		log.WithError(err).Warnf("Failed to save conversation turn for user %s", userID)
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
