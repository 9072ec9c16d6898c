package repository

import (
	"database/sql"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type PlaystateRepository struct {
	db *sql.DB
}

func NewPlaystateRepository(db *sql.DB) *PlaystateRepository {
	return &PlaystateRepository{db: db}
}

// UpdateProgress is a set-to upsert; repeated identical calls converge on the
// same row.
func (r *PlaystateRepository) UpdateProgress(userID, itemID uuid.UUID, progressMS int64, played bool) error {
	_, err := r.db.Exec(`INSERT INTO user_item_state (user_id, item_id, played, progress_ms, last_played_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
		played = excluded.played, progress_ms = excluded.progress_ms,
		last_played_ts = excluded.last_played_ts`,
		userID, itemID, played, progressMS, time.Now().Unix())
	return err
}

func (r *PlaystateRepository) Get(userID, itemID uuid.UUID) (*models.UserItemState, error) {
	st := &models.UserItemState{}
	err := r.db.QueryRow(`SELECT user_id, item_id, played, progress_ms, last_played_ts, favorite
		FROM user_item_state WHERE user_id = ? AND item_id = ?`, userID, itemID).
		Scan(&st.UserID, &st.ItemID, &st.Played, &st.ProgressMS, &st.LastPlayedTS, &st.Favorite)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *PlaystateRepository) SetFavorite(userID, itemID uuid.UUID, favorite bool) error {
	_, err := r.db.Exec(`INSERT INTO user_item_state (user_id, item_id, favorite)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET favorite = excluded.favorite`,
		userID, itemID, favorite)
	return err
}
