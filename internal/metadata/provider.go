package metadata

import (
	"github.com/Iwan-Teague/Rustyfin/internal/models"
)

// SearchResult is one candidate match from a provider search.
type SearchResult struct {
	Provider   string  `json:"provider"`
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Year       *int    `json:"year,omitempty"`
	Overview   *string `json:"overview,omitempty"`
	PosterURL  *string `json:"poster_url,omitempty"`
}

// ItemMetadata is the provider-sourced field set for one movie or series.
// Nil pointers mean the provider has nothing for that field.
type ItemMetadata struct {
	Title           *string  `json:"title,omitempty"`
	SortTitle       *string  `json:"sort_title,omitempty"`
	Year            *int     `json:"year,omitempty"`
	Overview        *string  `json:"overview,omitempty"`
	Tagline         *string  `json:"tagline,omitempty"`
	PremiereDate    *string  `json:"premiere_date,omitempty"`
	CommunityRating *float64 `json:"community_rating,omitempty"`
	PosterURL       *string  `json:"poster_url,omitempty"`
	BackdropURL     *string  `json:"backdrop_url,omitempty"`
}

// EpisodeMetadata describes one provider-known episode of a series.
type EpisodeMetadata struct {
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	Title         *string `json:"title,omitempty"`
	Overview      *string `json:"overview,omitempty"`
	AirDate       *string `json:"air_date,omitempty"`
}

// Provider is a remote metadata source.
type Provider interface {
	Name() string
	SearchMovie(title string, year *int) ([]SearchResult, error)
	SearchSeries(title string, year *int) ([]SearchResult, error)
	GetMovie(externalID string) (*ItemMetadata, error)
	GetSeries(externalID string) (*ItemMetadata, error)
	GetSeasonEpisodes(externalID string) ([]EpisodeMetadata, error)
}

// BestMatch picks the search result to use for an unmatched item: the first
// result whose year matches when a year is known, else the first result.
func BestMatch(results []SearchResult, year *int) *SearchResult {
	if len(results) == 0 {
		return nil
	}
	if year != nil {
		for i := range results {
			if results[i].Year != nil && *results[i].Year == *year {
				return &results[i]
			}
		}
	}
	return &results[0]
}

// KindSearchable reports whether an item kind can be looked up directly.
// Seasons and episodes inherit metadata through their series.
func KindSearchable(kind models.ItemKind) bool {
	return kind == models.ItemMovie || kind == models.ItemSeries
}
