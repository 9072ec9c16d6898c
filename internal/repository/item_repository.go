package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, library_id, kind, parent_id, title, sort_title, year, overview,
	season_number, episode_number, tagline, premiere_date, community_rating,
	poster_url, backdrop_url, logo_url, thumb_url,
	created_ts, updated_ts`

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	it := &models.Item{}
	err := row.Scan(&it.ID, &it.LibraryID, &it.Kind, &it.ParentID, &it.Title, &it.SortTitle,
		&it.Year, &it.Overview, &it.SeasonNumber, &it.EpisodeNumber,
		&it.Tagline, &it.PremiereDate, &it.CommunityRating,
		&it.PosterURL, &it.BackdropURL, &it.LogoURL, &it.ThumbURL,
		&it.CreatedTS, &it.UpdatedTS)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// FindOrCreate selects by the unique (library, kind, parent, title) key and
// inserts on miss. Calling it twice with the same arguments returns the same
// id. Numbers apply only to season/episode items and are stored on insert.
func (r *ItemRepository) FindOrCreate(libraryID uuid.UUID, kind models.ItemKind, parentID *uuid.UUID,
	title string, year, seasonNumber, episodeNumber *int) (uuid.UUID, error) {

	var existing uuid.UUID
	var err error
	if parentID == nil {
		err = r.db.QueryRow(`SELECT id FROM item WHERE library_id = ? AND kind = ? AND parent_id IS NULL AND title = ?`,
			libraryID, kind, title).Scan(&existing)
	} else {
		err = r.db.QueryRow(`SELECT id FROM item WHERE library_id = ? AND kind = ? AND parent_id = ? AND title = ?`,
			libraryID, kind, *parentID, title).Scan(&existing)
	}
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, err
	}

	id := uuid.New()
	now := time.Now().Unix()
	// The bare conflict clause covers both unique keys: the table constraint
	// for child rows and the partial index for top-level rows.
	_, err = r.db.Exec(`INSERT INTO item (id, library_id, kind, parent_id, title, year, season_number, episode_number, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		id, libraryID, kind, parentID, title, year, seasonNumber, episodeNumber, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert item: %w", err)
	}

	// A concurrent scanner may have won the insert race; the follow-up
	// select resolves either way.
	if parentID == nil {
		err = r.db.QueryRow(`SELECT id FROM item WHERE library_id = ? AND kind = ? AND parent_id IS NULL AND title = ?`,
			libraryID, kind, title).Scan(&existing)
	} else {
		err = r.db.QueryRow(`SELECT id FROM item WHERE library_id = ? AND kind = ? AND parent_id = ? AND title = ?`,
			libraryID, kind, *parentID, title).Scan(&existing)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("select after insert: %w", err)
	}
	return existing, nil
}

func (r *ItemRepository) GetByID(id uuid.UUID) (*models.Item, error) {
	it, err := scanItem(r.db.QueryRow(`SELECT `+itemColumns+` FROM item WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found")
	}
	return it, err
}

func (r *ItemRepository) GetChildren(parentID uuid.UUID) ([]*models.Item, error) {
	rows, err := r.db.Query(`SELECT `+itemColumns+` FROM item WHERE parent_id = ? ORDER BY season_number, episode_number, title`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// GetTopLevel returns library roots (movies and series).
func (r *ItemRepository) GetTopLevel(libraryID uuid.UUID) ([]*models.Item, error) {
	rows, err := r.db.Query(`SELECT `+itemColumns+` FROM item WHERE library_id = ? AND parent_id IS NULL ORDER BY title`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItemFileID returns the primary media file id for an item, if mapped.
func (r *ItemRepository) GetItemFileID(itemID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(`SELECT file_id FROM episode_file_map WHERE episode_item_id = ? LIMIT 1`, itemID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *ItemRepository) GetItemIDByFileID(fileID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(`SELECT episode_item_id FROM episode_file_map WHERE file_id = ? LIMIT 1`, fileID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// GetFirstDescendantMediaPath walks the item tree breadth-first and returns
// the shallowest linked media file path. Artwork discovery uses this to find
// a directory to look in.
func (r *ItemRepository) GetFirstDescendantMediaPath(itemID uuid.UUID) (string, error) {
	queue := []uuid.UUID{itemID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var path string
		err := r.db.QueryRow(`SELECT mf.path FROM episode_file_map m
			JOIN media_file mf ON mf.id = m.file_id
			WHERE m.episode_item_id = ? LIMIT 1`, current).Scan(&path)
		if err == nil {
			return path, nil
		}
		if err != sql.ErrNoRows {
			return "", err
		}

		rows, err := r.db.Query(`SELECT id FROM item WHERE parent_id = ? ORDER BY title`, current)
		if err != nil {
			return "", err
		}
		for rows.Next() {
			var child uuid.UUID
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				return "", err
			}
			queue = append(queue, child)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", err
		}
		rows.Close()
	}
	return "", fmt.Errorf("no media file under item")
}

func (r *ItemRepository) CreateFileMap(itemID, fileID uuid.UUID) error {
	_, err := r.db.Exec(`INSERT INTO episode_file_map (id, episode_item_id, file_id, map_kind, created_ts)
		VALUES (?, ?, ?, 'primary', ?)`, uuid.New(), itemID, fileID, time.Now().Unix())
	return err
}

// SetProviderID upserts; repeated calls with different values leave exactly
// one row holding the latest value.
func (r *ItemRepository) SetProviderID(itemID uuid.UUID, provider, value string) error {
	_, err := r.db.Exec(`INSERT INTO item_provider_id (item_id, provider, value) VALUES (?, ?, ?)
		ON CONFLICT (item_id, provider) DO UPDATE SET value = excluded.value`,
		itemID, provider, value)
	return err
}

func (r *ItemRepository) GetProviderIDs(itemID uuid.UUID) ([]*models.ProviderID, error) {
	rows, err := r.db.Query(`SELECT item_id, provider, value FROM item_provider_id WHERE item_id = ? ORDER BY provider`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []*models.ProviderID
	for rows.Next() {
		p := &models.ProviderID{}
		if err := rows.Scan(&p.ItemID, &p.Provider, &p.Value); err != nil {
			return nil, err
		}
		ids = append(ids, p)
	}
	return ids, rows.Err()
}

func (r *ItemRepository) LockField(itemID uuid.UUID, field string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO item_field_lock (item_id, field, locked_ts) VALUES (?, ?, ?)`,
		itemID, field, time.Now().Unix())
	return err
}

func (r *ItemRepository) UnlockField(itemID uuid.UUID, field string) error {
	_, err := r.db.Exec(`DELETE FROM item_field_lock WHERE item_id = ? AND field = ?`, itemID, field)
	return err
}

func (r *ItemRepository) GetLockedFields(itemID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(`SELECT field FROM item_field_lock WHERE item_id = ? ORDER BY field`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (r *ItemRepository) GetImageURL(itemID uuid.UUID, imageType string) (*string, error) {
	col := ""
	switch imageType {
	case "poster":
		col = "poster_url"
	case "backdrop":
		col = "backdrop_url"
	case "logo":
		col = "logo_url"
	case "thumb":
		col = "thumb_url"
	default:
		return nil, nil
	}
	var u sql.NullString
	err := r.db.QueryRow(`SELECT `+col+` FROM item WHERE id = ?`, itemID).Scan(&u)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found")
	}
	if err != nil || !u.Valid {
		return nil, err
	}
	return &u.String, nil
}

// UpdateMetadata persists the provider-fillable fields of an item.
func (r *ItemRepository) UpdateMetadata(it *models.Item) error {
	_, err := r.db.Exec(`UPDATE item SET title = ?, sort_title = ?, year = ?, overview = ?,
		tagline = ?, premiere_date = ?, community_rating = ?,
		poster_url = ?, backdrop_url = ?, logo_url = ?, thumb_url = ?, updated_ts = ?
		WHERE id = ?`,
		it.Title, it.SortTitle, it.Year, it.Overview,
		it.Tagline, it.PremiereDate, it.CommunityRating,
		it.PosterURL, it.BackdropURL, it.LogoURL, it.ThumbURL, time.Now().Unix(),
		it.ID)
	return err
}

func (r *ItemRepository) Delete(id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM item WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
