package models

import (
	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

type LibraryKind string

const (
	LibraryMovies  LibraryKind = "movies"
	LibraryTVShows LibraryKind = "tv_shows"
)

type ItemKind string

const (
	ItemMovie   ItemKind = "movie"
	ItemSeries  ItemKind = "series"
	ItemSeason  ItemKind = "season"
	ItemEpisode ItemKind = "episode"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ──────────────────── User ────────────────────

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedTS    int64     `json:"created_ts"`
}

// ──────────────────── Library ────────────────────

type Library struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Kind      LibraryKind `json:"kind"`
	CreatedTS int64       `json:"created_ts"`
	UpdatedTS int64       `json:"updated_ts"`
}

type LibraryPath struct {
	ID         uuid.UUID `json:"id"`
	LibraryID  uuid.UUID `json:"library_id"`
	Path       string    `json:"path"`
	IsReadOnly bool      `json:"is_read_only"`
	CreatedTS  int64     `json:"created_ts"`
}

type LibrarySettings struct {
	LibraryID          uuid.UUID `json:"library_id"`
	ShowImages         bool      `json:"show_images"`
	PreferLocalArtwork bool      `json:"prefer_local_artwork"`
	FetchOnlineArtwork bool      `json:"fetch_online_artwork"`
	UpdatedTS          int64     `json:"updated_ts"`
}

// ──────────────────── Item graph ────────────────────

// Item is a node in the content hierarchy. Movies and series are roots
// (no parent); seasons parent to a series, episodes to a season.
// Season/episode numbers are first-class columns so missing-episode
// reporting never has to re-parse display titles.
type Item struct {
	ID              uuid.UUID  `json:"id"`
	LibraryID       uuid.UUID  `json:"library_id"`
	Kind            ItemKind   `json:"kind"`
	ParentID        *uuid.UUID `json:"parent_id,omitempty"`
	Title           string     `json:"title"`
	SortTitle       *string    `json:"sort_title,omitempty"`
	Year            *int       `json:"year,omitempty"`
	Overview        *string    `json:"overview,omitempty"`
	SeasonNumber    *int       `json:"season_number,omitempty"`
	EpisodeNumber   *int       `json:"episode_number,omitempty"`
	Tagline         *string    `json:"tagline,omitempty"`
	PremiereDate    *string    `json:"premiere_date,omitempty"`
	CommunityRating *float64   `json:"community_rating,omitempty"`
	PosterURL       *string    `json:"poster_url,omitempty"`
	BackdropURL     *string    `json:"backdrop_url,omitempty"`
	LogoURL         *string    `json:"logo_url,omitempty"`
	ThumbURL        *string    `json:"thumb_url,omitempty"`
	CreatedTS       int64      `json:"created_ts"`
	UpdatedTS       int64      `json:"updated_ts"`
}

type MediaFile struct {
	ID             uuid.UUID `json:"id"`
	Path           string    `json:"path"`
	SizeBytes      int64     `json:"size_bytes"`
	MtimeTS        int64     `json:"mtime_ts"`
	Container      *string   `json:"container,omitempty"`
	DurationMS     *int64    `json:"duration_ms,omitempty"`
	StreamInfoJSON *string   `json:"stream_info_json,omitempty"`
	CreatedTS      int64     `json:"created_ts"`
	UpdatedTS      int64     `json:"updated_ts"`
}

// FileMap links an item to the media file that realizes it. The table is
// named episode_file_map for historical reasons but carries movies too.
type FileMap struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	FileID    uuid.UUID `json:"file_id"`
	MapKind   string    `json:"map_kind"`
	CreatedTS int64     `json:"created_ts"`
}

type ProviderID struct {
	ItemID   uuid.UUID `json:"item_id"`
	Provider string    `json:"provider"`
	Value    string    `json:"value"`
}

type FieldLock struct {
	ItemID   uuid.UUID `json:"item_id"`
	Field    string    `json:"field"`
	LockedTS int64     `json:"locked_ts"`
}

// ──────────────────── Playstate ────────────────────

type UserItemState struct {
	UserID       uuid.UUID `json:"user_id"`
	ItemID       uuid.UUID `json:"item_id"`
	Played       bool      `json:"played"`
	ProgressMS   int64     `json:"progress_ms"`
	LastPlayedTS *int64    `json:"last_played_ts,omitempty"`
	Favorite     bool      `json:"favorite"`
}

// ──────────────────── Jobs ────────────────────

type Job struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Status      JobStatus `json:"status"`
	Progress    float64   `json:"progress"`
	PayloadJSON *string   `json:"payload_json,omitempty"`
	Error       *string   `json:"error,omitempty"`
	CreatedTS   int64     `json:"created_ts"`
	UpdatedTS   int64     `json:"updated_ts"`
}

// ──────────────────── Episodes (expected vs present) ────────────────────

type ExpectedEpisode struct {
	SeriesID      uuid.UUID `json:"series_id"`
	SeasonNumber  int       `json:"season_number"`
	EpisodeNumber int       `json:"episode_number"`
	Title         *string   `json:"title,omitempty"`
	Overview      *string   `json:"overview,omitempty"`
	AirDate       *string   `json:"air_date,omitempty"`
}

type MissingEpisode struct {
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	Title         *string `json:"title,omitempty"`
	AirDate       *string `json:"air_date,omitempty"`
}
