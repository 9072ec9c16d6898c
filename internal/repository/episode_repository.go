package repository

import (
	"database/sql"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type EpisodeRepository struct {
	db *sql.DB
}

func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// UpsertExpected records a provider-sourced episode; later upserts fill in
// fields that were previously unknown without clobbering known ones.
func (r *EpisodeRepository) UpsertExpected(ep *models.ExpectedEpisode) error {
	_, err := r.db.Exec(`INSERT INTO episode_expected (series_id, season_number, episode_number, title, overview, air_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (series_id, season_number, episode_number) DO UPDATE SET
		title = COALESCE(excluded.title, title),
		overview = COALESCE(excluded.overview, overview),
		air_date = COALESCE(excluded.air_date, air_date)`,
		ep.SeriesID, ep.SeasonNumber, ep.EpisodeNumber, ep.Title, ep.Overview, ep.AirDate)
	return err
}

func (r *EpisodeRepository) GetExpected(seriesID uuid.UUID) ([]*models.ExpectedEpisode, error) {
	rows, err := r.db.Query(`SELECT series_id, season_number, episode_number, title, overview, air_date
		FROM episode_expected WHERE series_id = ?
		ORDER BY season_number, episode_number`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eps []*models.ExpectedEpisode
	for rows.Next() {
		ep := &models.ExpectedEpisode{}
		if err := rows.Scan(&ep.SeriesID, &ep.SeasonNumber, &ep.EpisodeNumber, &ep.Title, &ep.Overview, &ep.AirDate); err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}

// GetPresent returns (season, episode) number pairs for episodes on disk,
// read from the numeric columns the scanner fills in.
func (r *EpisodeRepository) GetPresent(seriesID uuid.UUID) ([][2]int, error) {
	rows, err := r.db.Query(`SELECT ep.season_number, ep.episode_number
		FROM item ep
		JOIN item season ON ep.parent_id = season.id
		WHERE season.parent_id = ? AND ep.kind = 'episode'
		AND ep.season_number IS NOT NULL AND ep.episode_number IS NOT NULL`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var present [][2]int
	for rows.Next() {
		var s, e int
		if err := rows.Scan(&s, &e); err != nil {
			return nil, err
		}
		present = append(present, [2]int{s, e})
	}
	return present, rows.Err()
}

func (r *EpisodeRepository) GetMissing(seriesID uuid.UUID) ([]*models.MissingEpisode, error) {
	expected, err := r.GetExpected(seriesID)
	if err != nil {
		return nil, err
	}
	present, err := r.GetPresent(seriesID)
	if err != nil {
		return nil, err
	}

	have := make(map[[2]int]bool, len(present))
	for _, p := range present {
		have[p] = true
	}

	var missing []*models.MissingEpisode
	for _, ep := range expected {
		if !have[[2]int{ep.SeasonNumber, ep.EpisodeNumber}] {
			missing = append(missing, &models.MissingEpisode{
				SeasonNumber:  ep.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
				Title:         ep.Title,
				AirDate:       ep.AirDate,
			})
		}
	}
	return missing, nil
}
