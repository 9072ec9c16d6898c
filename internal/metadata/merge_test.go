package metadata

import (
	"testing"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/stretchr/testify/assert"
)

func strp(s string) *string    { return &s }
func intp(i int) *int          { return &i }
func fp(f float64) *float64    { return &f }

func TestMergeFillsEmptyFields(t *testing.T) {
	item := &models.Item{Title: "the matrix"}
	meta := &ItemMetadata{
		Title:           strp("The Matrix"),
		Year:            intp(1999),
		Overview:        strp("A hacker learns the truth."),
		CommunityRating: fp(8.7),
	}

	updated := Merge(item, meta, nil)

	assert.ElementsMatch(t, []string{"title", "year", "overview", "community_rating"}, updated)
	assert.Equal(t, "The Matrix", item.Title)
	assert.Equal(t, 1999, *item.Year)
	assert.Equal(t, 8.7, *item.CommunityRating)
}

func TestMergeRespectsLocks(t *testing.T) {
	item := &models.Item{Title: "My Custom Title", Overview: strp("custom overview")}
	meta := &ItemMetadata{
		Title:    strp("Provider Title"),
		Overview: strp("provider overview"),
		Tagline:  strp("provider tagline"),
	}

	updated := Merge(item, meta, []string{"title", "overview"})

	assert.Equal(t, []string{"tagline"}, updated)
	assert.Equal(t, "My Custom Title", item.Title)
	assert.Equal(t, "custom overview", *item.Overview)
	assert.Equal(t, "provider tagline", *item.Tagline)
}

func TestMergeSkipsNilProviderFields(t *testing.T) {
	item := &models.Item{Title: "Kept", Year: intp(2001)}
	meta := &ItemMetadata{Overview: strp("only overview")}

	updated := Merge(item, meta, nil)

	assert.Equal(t, []string{"overview"}, updated)
	assert.Equal(t, "Kept", item.Title)
	assert.Equal(t, 2001, *item.Year)
}

func TestMergeNoChangeNoReport(t *testing.T) {
	item := &models.Item{Title: "Same", Overview: strp("same text")}
	meta := &ItemMetadata{Title: strp("Same"), Overview: strp("same text")}

	updated := Merge(item, meta, nil)
	assert.Empty(t, updated)
}

func TestKnownField(t *testing.T) {
	assert.True(t, KnownField("title"))
	assert.True(t, KnownField("community_rating"))
	assert.False(t, KnownField("id"))
	assert.False(t, KnownField("created_ts"))
}

func TestBestMatch(t *testing.T) {
	results := []SearchResult{
		{ExternalID: "1", Title: "Dune", Year: intp(1984)},
		{ExternalID: "2", Title: "Dune", Year: intp(2021)},
	}

	assert.Equal(t, "2", BestMatch(results, intp(2021)).ExternalID)
	assert.Equal(t, "1", BestMatch(results, intp(1984)).ExternalID)
	// Unknown year falls back to the first result.
	assert.Equal(t, "1", BestMatch(results, nil).ExternalID)
	assert.Equal(t, "1", BestMatch(results, intp(1999)).ExternalID)
	assert.Nil(t, BestMatch(nil, intp(2021)))
}
