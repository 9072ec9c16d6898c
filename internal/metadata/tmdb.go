package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const tmdbImageBase = "https://image.tmdb.org/t/p/w500"

type TMDBProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewTMDBProvider(apiKey string) *TMDBProvider {
	return &TMDBProvider{
		apiKey:  apiKey,
		baseURL: "https://api.themoviedb.org/3",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *TMDBProvider) Name() string { return "tmdb" }

type tmdbSearchResponse struct {
	Results []struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		Overview     string  `json:"overview"`
		PosterPath   string  `json:"poster_path"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
	} `json:"results"`
}

type tmdbDetails struct {
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	Tagline      string  `json:"tagline"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Seasons      []struct {
		SeasonNumber int `json:"season_number"`
	} `json:"seasons"`
}

type tmdbSeason struct {
	Episodes []struct {
		SeasonNumber  int    `json:"season_number"`
		EpisodeNumber int    `json:"episode_number"`
		Name          string `json:"name"`
		Overview      string `json:"overview"`
		AirDate       string `json:"air_date"`
	} `json:"episodes"`
}

func (p *TMDBProvider) SearchMovie(title string, year *int) ([]SearchResult, error) {
	return p.search("movie", title, year)
}

func (p *TMDBProvider) SearchSeries(title string, year *int) ([]SearchResult, error) {
	return p.search("tv", title, year)
}

func (p *TMDBProvider) search(kind, title string, year *int) ([]SearchResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	reqURL := fmt.Sprintf("%s/search/%s?api_key=%s&query=%s",
		p.baseURL, kind, p.apiKey, url.QueryEscape(title))
	if year != nil && *year > 0 {
		if kind == "tv" {
			reqURL += fmt.Sprintf("&first_air_date_year=%d", *year)
		} else {
			reqURL += fmt.Sprintf("&year=%d", *year)
		}
	}

	var parsed tmdbSearchResponse
	if err := p.getJSON(reqURL, &parsed); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, r := range parsed.Results {
		name := r.Title
		if name == "" {
			name = r.Name
		}
		date := r.ReleaseDate
		if date == "" {
			date = r.FirstAirDate
		}
		result := SearchResult{
			Provider:   "tmdb",
			ExternalID: strconv.Itoa(r.ID),
			Title:      name,
			Year:       yearFromDate(date),
		}
		if r.Overview != "" {
			result.Overview = &r.Overview
		}
		if r.PosterPath != "" {
			poster := tmdbImageBase + r.PosterPath
			result.PosterURL = &poster
		}
		results = append(results, result)
	}
	return results, nil
}

func (p *TMDBProvider) GetMovie(externalID string) (*ItemMetadata, error) {
	return p.details("movie", externalID)
}

func (p *TMDBProvider) GetSeries(externalID string) (*ItemMetadata, error) {
	return p.details("tv", externalID)
}

func (p *TMDBProvider) details(kind, externalID string) (*ItemMetadata, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	var d tmdbDetails
	reqURL := fmt.Sprintf("%s/%s/%s?api_key=%s", p.baseURL, kind, externalID, p.apiKey)
	if err := p.getJSON(reqURL, &d); err != nil {
		return nil, err
	}

	meta := &ItemMetadata{}
	name := d.Title
	if name == "" {
		name = d.Name
	}
	if name != "" {
		meta.Title = &name
	}
	if d.Overview != "" {
		meta.Overview = &d.Overview
	}
	if d.Tagline != "" {
		meta.Tagline = &d.Tagline
	}
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if date != "" {
		meta.PremiereDate = &date
		meta.Year = yearFromDate(date)
	}
	if d.VoteAverage > 0 {
		meta.CommunityRating = &d.VoteAverage
	}
	if d.PosterPath != "" {
		poster := tmdbImageBase + d.PosterPath
		meta.PosterURL = &poster
	}
	if d.BackdropPath != "" {
		backdrop := tmdbImageBase + d.BackdropPath
		meta.BackdropURL = &backdrop
	}
	return meta, nil
}

// GetSeasonEpisodes walks every season of a series and flattens the episode
// lists. TMDB only exposes episodes per season, so this is one request per
// season.
func (p *TMDBProvider) GetSeasonEpisodes(externalID string) ([]EpisodeMetadata, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	var series tmdbDetails
	reqURL := fmt.Sprintf("%s/tv/%s?api_key=%s", p.baseURL, externalID, p.apiKey)
	if err := p.getJSON(reqURL, &series); err != nil {
		return nil, err
	}

	var episodes []EpisodeMetadata
	for _, season := range series.Seasons {
		var s tmdbSeason
		seasonURL := fmt.Sprintf("%s/tv/%s/season/%d?api_key=%s",
			p.baseURL, externalID, season.SeasonNumber, p.apiKey)
		if err := p.getJSON(seasonURL, &s); err != nil {
			return nil, fmt.Errorf("season %d: %w", season.SeasonNumber, err)
		}
		for _, ep := range s.Episodes {
			meta := EpisodeMetadata{
				SeasonNumber:  ep.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
			}
			if ep.Name != "" {
				name := ep.Name
				meta.Title = &name
			}
			if ep.Overview != "" {
				overview := ep.Overview
				meta.Overview = &overview
			}
			if ep.AirDate != "" {
				airDate := ep.AirDate
				meta.AirDate = &airDate
			}
			episodes = append(episodes, meta)
		}
	}
	return episodes, nil
}

func (p *TMDBProvider) getJSON(reqURL string, out interface{}) error {
	resp, err := p.client.Get(reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func yearFromDate(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &y
}
