// Package recommend resolves "movies like X" requests: the local catalog
// index first, the external catalog's similar-movies endpoint as fallback.
// An empty result is a valid outcome meaning "not found anywhere".
package recommend

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/reelpick/reelpick/internal/catalog"
	"github.com/reelpick/reelpick/internal/tmdb"
)

// Index is the local-dataset lookup the resolver depends on.
type Index interface {
	SimilarTo(title string, topN int) []catalog.MovieRecord
}

// Gateway is the external catalog surface the resolver depends on.
type Gateway interface {
	Search(ctx context.Context, title string) *tmdb.SearchResult
	Similar(ctx context.Context, movieID, limit int) []tmdb.SearchResult
	Recommendations(ctx context.Context, movieID, limit int) []tmdb.SearchResult
	BuildCard(ctx context.Context, res *tmdb.SearchResult, country string) *tmdb.MovieCard
}

type Resolver struct {
	index   Index
	gateway Gateway
}

func NewResolver(index Index, gateway Gateway) *Resolver {
	return &Resolver{index: index, gateway: gateway}
}

// RecommendFor tries the dataset first and falls back to the external
// catalog when the title has no exact dataset match.
func (r *Resolver) RecommendFor(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard {
	if cards := r.FromDataset(ctx, title, topN, country); len(cards) > 0 {
		return cards
	}
	return r.Fallback(ctx, title, topN, country)
}

// FromDataset ranks dataset neighbors of title and resolves each to a
// MovieCard through the external catalog. Titles the external catalog does
// not know are silently dropped, so fewer than topN cards may come back.
func (r *Resolver) FromDataset(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard {
	similar := r.index.SimilarTo(title, topN)
	if len(similar) == 0 {
		return nil
	}

	cards := make([]tmdb.MovieCard, 0, len(similar))
	for _, rec := range similar {
		res := r.gateway.Search(ctx, rec.Title)
		if res == nil {
			log.Debugf("Dataset neighbor %q not found in external catalog, dropping", rec.Title)
			continue
		}
		if card := r.gateway.BuildCard(ctx, res, country); card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}

// Fallback searches the external catalog for the title and builds cards from
// its similar-movies endpoint, or from its recommendations endpoint when the
// title has no similar list.
func (r *Resolver) Fallback(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard {
	found := r.gateway.Search(ctx, title)
	if found == nil {
		return nil
	}

	similar := r.gateway.Similar(ctx, found.ID, topN)
	if len(similar) == 0 {
		similar = r.gateway.Recommendations(ctx, found.ID, topN)
	}
	cards := make([]tmdb.MovieCard, 0, len(similar))
	for i := range similar {
		if card := r.gateway.BuildCard(ctx, &similar[i], country); card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}
