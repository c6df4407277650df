// Package translate round-trips chat text through a machine-translation
// endpoint so the QA matcher always works in English. Translation is best
// effort: any failure degrades to the untranslated text.
package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

	maxRetries   = 2
	retryBackoff = time.Second
)

// looks-English fast path: pure ASCII text skips the translator entirely.
var asciiPattern = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?@#$%^&*()_+=-]*$`)

type Translator struct {
	endpoint   string
	httpClient *http.Client

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func New() *Translator {
	return &Translator{
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// ToEnglish translates text to English and returns the translation plus the
// detected source language. English-looking input is returned unchanged and
// tagged "en" without any network call.
func (t *Translator) ToEnglish(ctx context.Context, text string) (string, string) {
	if asciiPattern.MatchString(text) {
		return text, "en"
	}

	translated, detected, err := t.translateWithRetry(ctx, text, "auto", "en")
	if err != nil {
		log.WithError(err).Warn("Translation to English failed, using original text")
		return text, "en"
	}
	return translated, detected
}

// FromEnglish translates an English reply back to targetLang. A target of
// "en" is a no-op; failures degrade to the English text.
func (t *Translator) FromEnglish(ctx context.Context, text, targetLang string) string {
	if targetLang == "" || targetLang == "en" {
		return text
	}

	translated, _, err := t.translateWithRetry(ctx, text, "en", targetLang)
	if err != nil {
		log.WithError(err).Warnf("Translation back to %s failed, using English text", targetLang)
		return text
	}
	return translated
}

func (t *Translator) translateWithRetry(ctx context.Context, text, source, target string) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			t.sleep(retryBackoff)
		}
		translated, detected, err := t.translate(ctx, text, source, target)
		if err == nil {
			return translated, detected, nil
		}
		lastErr = err
		log.WithError(err).Debugf("Translation attempt %d failed", attempt+1)
	}
	return "", "", fmt.Errorf("translation failed after %d attempts: %w", maxRetries, lastErr)
}

// translate performs a single call against the public translate endpoint.
// The response is a nested JSON array; gjson picks the segment and language
// fields out of it.
func (t *Translator) translate(ctx context.Context, text, source, target string) (string, string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build translate request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("translate request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read translate response: %w", err)
	}

	parsed := gjson.ParseBytes(body)
	var sb strings.Builder
	for _, segment := range parsed.Get("0").Array() {
		sb.WriteString(segment.Get("0").String())
	}
	if sb.Len() == 0 {
		return "", "", fmt.Errorf("translate response contained no segments")
	}

	detected := parsed.Get("2").String()
	if detected == "" {
		detected = source
	}
	return sb.String(), detected, nil
}
