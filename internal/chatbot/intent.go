package chatbot

import (
	"regexp"
	"strings"
)

type Intent int

const (
	IntentGreeting Intent = iota
	IntentRecommendation
	IntentQuestion
)

// greetings are checked first, in order: an input is a greeting when it
// equals a phrase or starts with the phrase followed by a space.
var greetings = []struct {
	phrase string
	reply  string
}{
	{"hello", "👋 Hi there! How can I help you with movies today?"},
	{"hi", "😊 Hello! Looking for a movie recommendation?"},
	{"hey", "👋 Hey! Ask me about movies, genres, or actors."},
	{"how are you", "😃 I'm doing great, thanks! Ready to recommend you some movies 🎬"},
	{"thanks", "🙏 You're welcome! Happy to help with your movie search."},
	{"thank you", "🙏 You're welcome! Happy to help with your movie search."},
}

// recommendationTriggers route an input to the recommendation pipeline when
// any of them appears as a substring.
var recommendationTriggers = []string{
	"recommend", "suggest", "what should i watch", "movies like", "i want movies like",
	"similar to", "good movies", "best movies", "what to watch", "something similar to",
	"like", "similar movies", "suggestion", "how about", "what about", "something like",
	"give me some movie recommendations",
}

// entityPatterns extract a candidate movie title from recommendation-style
// phrasing. Ordered; the first pattern whose verified capture survives wins.
var entityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)recommend.*like (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)suggest.*like (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)movies like (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)similar to (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)like (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)recommendations for (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)suggestions for (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)what about (.+?)(?:\.|\?|$)`),
	regexp.MustCompile(`(?i)how about (.+?)(?:\.|\?|$)`),
}

var fillerPattern = regexp.MustCompile(`(?i)(the movie|the film|movie called|film called|show me|something like|similar to)`)

var trailingPunctuation = regexp.MustCompile(`[.,!?;:]$`)

// Classify routes free text into greeting, recommendation request, or
// question. Greetings win over everything; for greetings the canned reply is
// returned as well.
func Classify(text string) (Intent, string) {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, g := range greetings {
		if lower == g.phrase || strings.HasPrefix(lower, g.phrase+" ") {
			return IntentGreeting, g.reply
		}
	}

	for _, trigger := range recommendationTriggers {
		if strings.Contains(lower, trigger) {
			return IntentRecommendation, ""
		}
	}

	return IntentQuestion, ""
}

// Verifier reports whether a candidate title resolves to a known movie.
type Verifier func(title string) bool

// ExtractEntity pulls a movie title out of recommendation phrasing. A
// candidate is only returned once it verifies; otherwise later patterns get
// a chance, and "" means no entity.
func ExtractEntity(text string, verify Verifier) string {
	for _, pattern := range entityPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := CleanTitle(match[1])
		if candidate == "" {
			continue
		}
		if verify != nil && verify(candidate) {
			return candidate
		}
	}
	return ""
}

// CleanTitle strips filler phrases, trailing punctuation, and quotes from an
// extracted candidate.
func CleanTitle(title string) string {
	title = fillerPattern.ReplaceAllString(title, "")
	title = trailingPunctuation.ReplaceAllString(title, "")
	title = strings.NewReplacer(`"`, "", "'", "").Replace(title)
	return strings.TrimSpace(title)
}
