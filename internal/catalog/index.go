// Package catalog holds the in-process movie index built from the local
// dataset: exact and fuzzy title lookup plus content-similarity queries over
// a term-weighted vector representation of each movie's feature text.
package catalog

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	log "github.com/sirupsen/logrus"
)

// MovieRecord is one row of the local dataset. Immutable after load.
type MovieRecord struct {
	ID         int
	Title      string
	TitleClean string // lower-cased, trimmed; exact-lookup key
	Features   string
}

// FuzzyMatch is a title candidate with its 0-100 similarity score.
type FuzzyMatch struct {
	Title string
	Score float64
}

// Index is the read-only catalog index. Build a new one and swap the
// reference to reload; never mutate a live index.
type Index struct {
	records []MovieRecord
	byTitle map[string]int // TitleClean -> first record index (first match wins)

	// tf-idf vectors, l2-normalized, one sparse vector per record
	vectors []map[int]float64

	ready bool
}

var termPattern = regexp.MustCompile(`[a-z0-9]+`)

// Load reads a CSV dataset with a "title" column and a "combined_features"
// column. A missing features column degrades to using the title as the
// feature text; a missing title column yields an unready index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Index{}, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return &Index{}, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if len(rows) < 1 {
		return &Index{}, fmt.Errorf("dataset %s is empty", path)
	}

	titleCol, featureCol := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title":
			titleCol = i
		case "combined_features":
			featureCol = i
		}
	}
	if titleCol < 0 {
		return &Index{}, fmt.Errorf("dataset %s missing required 'title' column", path)
	}
	if featureCol < 0 {
		log.Warnf("Dataset %s missing 'combined_features' column, using titles as features", path)
	}

	var records []MovieRecord
	for _, row := range rows[1:] {
		if titleCol >= len(row) {
			continue
		}
		title := strings.TrimSpace(row[titleCol])
		if title == "" {
			continue
		}
		features := title
		if featureCol >= 0 && featureCol < len(row) {
			features = row[featureCol]
		}
		records = append(records, MovieRecord{
			ID:         len(records),
			Title:      title,
			TitleClean: strings.ToLower(title),
			Features:   features,
		})
	}

	idx := Build(records)
	log.Infof("Catalog index loaded with %d movies from %s", len(records), path)
	return idx, nil
}

// Build constructs an index from an in-memory record set. Used by Load and
// by reloads, which build a fresh index and swap the shared reference.
func Build(records []MovieRecord) *Index {
	idx := &Index{
		records: records,
		byTitle: make(map[string]int, len(records)),
		ready:   len(records) > 0,
	}

	for i, rec := range records {
		if _, exists := idx.byTitle[rec.TitleClean]; !exists {
			idx.byTitle[rec.TitleClean] = i
		}
	}

	idx.vectors = buildVectors(records)
	return idx
}

// buildVectors computes l2-normalized tf-idf vectors over the feature text.
func buildVectors(records []MovieRecord) []map[int]float64 {
	vocab := make(map[string]int)
	docFreq := make(map[int]int)
	counts := make([]map[int]int, len(records))

	for i, rec := range records {
		tf := make(map[int]int)
		for _, term := range tokenize(rec.Features) {
			id, ok := vocab[term]
			if !ok {
				id = len(vocab)
				vocab[term] = id
			}
			tf[id]++
		}
		for id := range tf {
			docFreq[id]++
		}
		counts[i] = tf
	}

	n := float64(len(records))
	vectors := make([]map[int]float64, len(records))
	for i, tf := range counts {
		vec := make(map[int]float64, len(tf))
		var norm float64
		for id, count := range tf {
			// smoothed idf so unseen terms never divide by zero
			idf := math.Log((1+n)/(1+float64(docFreq[id]))) + 1
			w := float64(count) * idf
			vec[id] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for id := range vec {
				vec[id] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

func tokenize(text string) []string {
	var terms []string
	for _, term := range termPattern.FindAllString(strings.ToLower(text), -1) {
		if len(term) < 2 {
			continue
		}
		if _, stop := stopWords[term]; stop {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// Ready reports whether the dataset loaded and queries can be served.
func (idx *Index) Ready() bool {
	return idx != nil && idx.ready
}

// Len returns the number of records in the index.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// FindExact does a case-insensitive, whitespace-trimming exact title lookup.
// On duplicate titles the first dataset row wins.
func (idx *Index) FindExact(title string) *MovieRecord {
	if !idx.Ready() {
		return nil
	}
	i, ok := idx.byTitle[strings.ToLower(strings.TrimSpace(title))]
	if !ok {
		return nil
	}
	rec := idx.records[i]
	return &rec
}

// FindFuzzy ranks all titles by string similarity against query and returns
// up to limit titles scoring at or above threshold (0-100 scale), best first.
func (idx *Index) FindFuzzy(query string, limit int, threshold float64) []string {
	if !idx.Ready() || limit <= 0 {
		return nil
	}

	lev := metrics.NewLevenshtein()
	q := strings.ToLower(strings.TrimSpace(query))

	matches := make([]FuzzyMatch, 0, limit)
	for _, rec := range idx.records {
		score := strutil.Similarity(q, rec.TitleClean, lev) * 100
		if score >= threshold {
			matches = append(matches, FuzzyMatch{Title: rec.Title, Score: score})
		}
	}

	// stable: ties keep dataset order
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	titles := make([]string, len(matches))
	for i, m := range matches {
		titles[i] = m.Title
	}
	return titles
}

// SimilarTo returns the topN records most similar to the exactly matched
// title, by cosine similarity of the feature vectors. The query record itself
// is excluded; ties keep dataset order.
func (idx *Index) SimilarTo(title string, topN int) []MovieRecord {
	if !idx.Ready() || topN <= 0 {
		return nil
	}
	self, ok := idx.byTitle[strings.ToLower(strings.TrimSpace(title))]
	if !ok {
		return nil
	}

	type scored struct {
		i   int
		sim float64
	}
	scores := make([]scored, 0, len(idx.records)-1)
	for i := range idx.records {
		if i == self {
			continue
		}
		scores = append(scores, scored{i: i, sim: sparseDot(idx.vectors[self], idx.vectors[i])})
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].sim > scores[b].sim
	})

	if len(scores) > topN {
		scores = scores[:topN]
	}
	out := make([]MovieRecord, len(scores))
	for i, s := range scores {
		out[i] = idx.records[s.i]
	}
	return out
}

// Suggest returns up to limit titles containing the query as a substring,
// case-insensitive, in dataset order.
func (idx *Index) Suggest(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if !idx.Ready() || q == "" || limit <= 0 {
		return nil
	}
	var titles []string
	for _, rec := range idx.records {
		if strings.Contains(rec.TitleClean, q) {
			titles = append(titles, rec.Title)
			if len(titles) == limit {
				break
			}
		}
	}
	return titles
}

// sparseDot is the cosine similarity of two l2-normalized sparse vectors.
func sparseDot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for id, w := range a {
		dot += w * b[id]
	}
	return dot
}
