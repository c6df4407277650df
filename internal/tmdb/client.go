// Package tmdb wraps the TMDB HTTP API. Every call degrades to nil or an
// empty slice on network or parsing failure; callers never see a hard error.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/w500"
	siteBaseURL    = "https://www.themoviedb.org/movie"

	requestTimeout = 10 * time.Second
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	genreMu    sync.Mutex
	genreCache map[string]int // lower-cased genre name -> id
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// SearchResult is a single entry from a TMDB list endpoint.
type SearchResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	Rating      float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
	Adult       bool    `json:"adult"`
}

type listResponse struct {
	Results []SearchResult `json:"results"`
}

type movieDetails struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	Rating      float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`
	Adult       bool    `json:"adult"`
	Genres      []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// get performs a single GET against the API and decodes the JSON body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// Search queries search-by-title and returns the first result only, or nil
// when nothing matched or the call failed.
func (c *Client) Search(ctx context.Context, title string) *SearchResult {
	params := url.Values{}
	params.Set("query", title)
	params.Set("language", "en-US")

	var data listResponse
	if err := c.get(ctx, "search/movie", params, &data); err != nil {
		log.WithError(err).Debugf("TMDB search failed for %q", title)
		return nil
	}
	if len(data.Results) == 0 {
		return nil
	}
	first := data.Results[0]
	return &first
}

func (c *Client) details(ctx context.Context, movieID int) *movieDetails {
	var data movieDetails
	if err := c.get(ctx, fmt.Sprintf("movie/%d", movieID), nil, &data); err != nil {
		log.WithError(err).Debugf("TMDB details failed for movie %d", movieID)
		return nil
	}
	if data.ID == 0 {
		return nil
	}
	return &data
}

// Similar fetches the first page of similar movies for an id.
func (c *Client) Similar(ctx context.Context, movieID, limit int) []SearchResult {
	return c.list(ctx, fmt.Sprintf("movie/%d/similar", movieID), limit)
}

// Recommendations fetches the first page of TMDB's own recommendations.
func (c *Client) Recommendations(ctx context.Context, movieID, limit int) []SearchResult {
	return c.list(ctx, fmt.Sprintf("movie/%d/recommendations", movieID), limit)
}

// Trending fetches this week's trending movies.
func (c *Client) Trending(ctx context.Context, limit int) []SearchResult {
	return c.list(ctx, "trending/movie/week", limit)
}

func (c *Client) list(ctx context.Context, endpoint string, limit int) []SearchResult {
	params := url.Values{}
	params.Set("page", "1")

	var data listResponse
	if err := c.get(ctx, endpoint, params, &data); err != nil {
		log.WithError(err).Debugf("TMDB list call %s failed", endpoint)
		return nil
	}
	if limit > 0 && len(data.Results) > limit {
		return data.Results[:limit]
	}
	return data.Results
}

// Genres returns the genre name -> id map, fetched once and cached.
func (c *Client) Genres(ctx context.Context) map[string]int {
	c.genreMu.Lock()
	defer c.genreMu.Unlock()
	if c.genreCache != nil {
		return c.genreCache
	}

	var data struct {
		Genres []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := c.get(ctx, "genre/movie/list", nil, &data); err != nil {
		log.WithError(err).Debug("TMDB genre list failed")
		return map[string]int{}
	}

	m := make(map[string]int, len(data.Genres))
	for _, g := range data.Genres {
		m[strings.ToLower(g.Name)] = g.ID
	}
	c.genreCache = m
	return m
}

// DiscoverByGenre fetches popular movies for a named genre.
func (c *Client) DiscoverByGenre(ctx context.Context, genreName string, limit int) []SearchResult {
	genreID, ok := c.Genres(ctx)[strings.ToLower(genreName)]
	if !ok {
		return nil
	}

	params := url.Values{}
	params.Set("with_genres", fmt.Sprintf("%d", genreID))
	params.Set("sort_by", "popularity.desc")
	params.Set("page", "1")

	var data listResponse
	if err := c.get(ctx, "discover/movie", params, &data); err != nil {
		log.WithError(err).Debugf("TMDB discover failed for genre %q", genreName)
		return nil
	}
	if limit > 0 && len(data.Results) > limit {
		return data.Results[:limit]
	}
	return data.Results
}

// WatchLink returns the TMDB watch-providers link for a country, or "".
func (c *Client) WatchLink(ctx context.Context, movieID int, country string) string {
	var data struct {
		Results map[string]struct {
			Link string `json:"link"`
		} `json:"results"`
	}
	if err := c.get(ctx, fmt.Sprintf("movie/%d/watch/providers", movieID), nil, &data); err != nil {
		log.WithError(err).Debugf("TMDB watch providers failed for movie %d", movieID)
		return ""
	}
	return data.Results[country].Link
}

// BuildCard fetches full details for a search result and assembles a
// MovieCard. Returns nil for adult-flagged movies, content-filter hits, and
// failed detail fetches.
func (c *Client) BuildCard(ctx context.Context, res *SearchResult, country string) *MovieCard {
	if res == nil || res.Adult {
		return nil
	}

	details := c.details(ctx, res.ID)
	if details == nil {
		return nil
	}
	if details.Adult || IsBlocked(details.Title, details.Overview) {
		return nil
	}

	card := &MovieCard{
		ID:          details.ID,
		Title:       details.Title,
		Overview:    details.Overview,
		Rating:      details.Rating,
		ReleaseDate: details.ReleaseDate,
		Runtime:     details.Runtime,
		Genres:      []string{},
		WatchLink:   c.WatchLink(ctx, details.ID, country),
		SourceURL:   fmt.Sprintf("%s/%d", siteBaseURL, details.ID),
	}
	if details.PosterPath != "" {
		card.PosterURL = imageBaseURL + details.PosterPath
	}
	for _, g := range details.Genres {
		if g.Name != "" {
			card.Genres = append(card.Genres, g.Name)
		}
	}
	return card
}
