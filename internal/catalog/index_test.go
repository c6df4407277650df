package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []MovieRecord {
	rows := []struct {
		title    string
		features string
	}{
		{"Inception", "dream heist thriller nolan dicaprio scifi mind"},
		{"Interstellar", "space wormhole nolan mcconaughey scifi time"},
		{"The Prestige", "magician rivalry nolan bale jackman thriller"},
		{"Superbad", "teen comedy party friendship hill cera"},
		{"Tenet", "time inversion nolan espionage thriller scifi"},
	}
	records := make([]MovieRecord, len(rows))
	for i, row := range rows {
		records[i] = MovieRecord{
			ID:         i,
			Title:      row.title,
			TitleClean: strings.ToLower(row.title),
			Features:   row.features,
		}
	}
	return records
}

func TestFindExactIsCaseAndWhitespaceInsensitive(t *testing.T) {
	idx := Build(testRecords())

	a := idx.FindExact(" Inception ")
	b := idx.FindExact("inception")

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Inception", a.Title)
}

func TestFindExactFirstMatchWinsOnDuplicates(t *testing.T) {
	records := testRecords()
	dup := records[0]
	dup.ID = len(records)
	dup.Features = "completely different features"
	records = append(records, dup)

	idx := Build(records)
	got := idx.FindExact("Inception")
	require.NotNil(t, got)
	assert.Equal(t, 0, got.ID)
}

func TestFindFuzzyRespectsLimitAndThreshold(t *testing.T) {
	idx := Build(testRecords())

	matches := idx.FindFuzzy("inceptio", 3, 60)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), 3)
	assert.Equal(t, "Inception", matches[0])

	// raising the threshold never increases the result count
	loose := idx.FindFuzzy("inceptio", 5, 40)
	strict := idx.FindFuzzy("inceptio", 5, 90)
	assert.GreaterOrEqual(t, len(loose), len(strict))
}

func TestFindFuzzyNoMatchBelowThreshold(t *testing.T) {
	idx := Build(testRecords())
	assert.Empty(t, idx.FindFuzzy("zzzzqqqq", 3, 82))
}

func TestSimilarToExcludesSelfAndHonorsTopN(t *testing.T) {
	idx := Build(testRecords())

	similar := idx.SimilarTo("Inception", 2)
	require.NotEmpty(t, similar)
	assert.LessOrEqual(t, len(similar), 2)
	for _, rec := range similar {
		assert.NotEqual(t, "Inception", rec.Title)
	}
}

func TestSimilarToRanksSharedTermsFirst(t *testing.T) {
	idx := Build(testRecords())

	// Tenet shares nolan/thriller/scifi/time with the others; Superbad
	// shares nothing and must rank last.
	similar := idx.SimilarTo("Tenet", 4)
	require.Len(t, similar, 4)
	assert.Equal(t, "Superbad", similar[3].Title)
}

func TestSimilarToRequiresExactMatch(t *testing.T) {
	idx := Build(testRecords())
	assert.Nil(t, idx.SimilarTo("Inceptio", 3))
}

func TestSuggestSubstringMatch(t *testing.T) {
	idx := Build(testRecords())

	got := idx.Suggest("inter", 5)
	assert.Equal(t, []string{"Interstellar"}, got)

	assert.Nil(t, idx.Suggest("", 5))
}

func TestLoadMissingTitleColumnIsUnready(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,combined_features\nInception,scifi\n"), 0o644))

	idx, err := Load(path)
	assert.Error(t, err)
	assert.False(t, idx.Ready())
	assert.Nil(t, idx.FindExact("Inception"))
	assert.Empty(t, idx.FindFuzzy("Inception", 3, 50))
}

func TestLoadMissingFeaturesColumnDegradesToTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.csv")
	require.NoError(t, os.WriteFile(path, []byte("title\nInception\nInterstellar\n"), 0o644))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.True(t, idx.Ready())
	assert.Equal(t, 2, idx.Len())
	assert.NotNil(t, idx.FindExact("interstellar"))
}

func TestLoadMissingFileIsUnready(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
	assert.False(t, idx.Ready())
}
