package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type LibraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Create inserts the library, its paths, and default per-library settings in
// one transaction.
func (r *LibraryRepository) Create(name string, kind models.LibraryKind, paths []string) (*models.Library, error) {
	id := uuid.New()
	now := time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO library (id, name, kind, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?)`,
		id, name, kind, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert library: %w", err)
	}

	for _, p := range paths {
		_, err = tx.Exec(`INSERT INTO library_path (id, library_id, path, is_read_only, created_ts) VALUES (?, ?, ?, 1, ?)`,
			uuid.New(), id, p, now)
		if err != nil {
			return nil, fmt.Errorf("insert library path: %w", err)
		}
	}

	_, err = tx.Exec(`INSERT OR IGNORE INTO library_settings
		(library_id, show_images, prefer_local_artwork, fetch_online_artwork, updated_ts)
		VALUES (?, 1, 1, 1, ?)`, id, now)
	if err != nil {
		return nil, fmt.Errorf("insert library settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Library{ID: id, Name: name, Kind: kind, CreatedTS: now, UpdatedTS: now}, nil
}

func (r *LibraryRepository) List() ([]*models.Library, error) {
	rows, err := r.db.Query(`SELECT id, name, kind, created_ts, updated_ts FROM library ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []*models.Library
	for rows.Next() {
		lib := &models.Library{}
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.Kind, &lib.CreatedTS, &lib.UpdatedTS); err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

func (r *LibraryRepository) GetByID(id uuid.UUID) (*models.Library, error) {
	lib := &models.Library{}
	err := r.db.QueryRow(`SELECT id, name, kind, created_ts, updated_ts FROM library WHERE id = ?`, id).
		Scan(&lib.ID, &lib.Name, &lib.Kind, &lib.CreatedTS, &lib.UpdatedTS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("library not found")
	}
	return lib, err
}

func (r *LibraryRepository) Rename(id uuid.UUID, name string) (bool, error) {
	res, err := r.db.Exec(`UPDATE library SET name = ?, updated_ts = ? WHERE id = ?`,
		name, time.Now().Unix(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ReplacePaths swaps the full path set for a library transactionally.
func (r *LibraryRepository) ReplacePaths(id uuid.UUID, paths []string) (bool, error) {
	var exists string
	if err := r.db.QueryRow(`SELECT id FROM library WHERE id = ?`, id).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	now := time.Now().Unix()
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM library_path WHERE library_id = ?`, id); err != nil {
		return false, err
	}
	for _, p := range paths {
		if _, err := tx.Exec(`INSERT INTO library_path (id, library_id, path, is_read_only, created_ts) VALUES (?, ?, ?, 1, ?)`,
			uuid.New(), id, p, now); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(`UPDATE library SET updated_ts = ? WHERE id = ?`, now, id); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *LibraryRepository) Delete(id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM library WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *LibraryRepository) GetPaths(id uuid.UUID) ([]*models.LibraryPath, error) {
	rows, err := r.db.Query(`SELECT id, library_id, path, is_read_only, created_ts FROM library_path WHERE library_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []*models.LibraryPath
	for rows.Next() {
		lp := &models.LibraryPath{}
		if err := rows.Scan(&lp.ID, &lp.LibraryID, &lp.Path, &lp.IsReadOnly, &lp.CreatedTS); err != nil {
			return nil, err
		}
		paths = append(paths, lp)
	}
	return paths, rows.Err()
}

// GetAllPaths returns every library root across all libraries. The streaming
// path validator uses this for admin requests.
func (r *LibraryRepository) GetAllPaths() ([]string, error) {
	rows, err := r.db.Query(`SELECT path FROM library_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountTopLevelItems counts library roots only, matching what the items
// listing endpoint returns.
func (r *LibraryRepository) CountTopLevelItems(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM item WHERE library_id = ? AND parent_id IS NULL`, id).Scan(&count)
	return count, err
}

func (r *LibraryRepository) GetSettings(id uuid.UUID) (*models.LibrarySettings, error) {
	ls := &models.LibrarySettings{}
	err := r.db.QueryRow(`SELECT library_id, show_images, prefer_local_artwork, fetch_online_artwork, updated_ts
		FROM library_settings WHERE library_id = ?`, id).
		Scan(&ls.LibraryID, &ls.ShowImages, &ls.PreferLocalArtwork, &ls.FetchOnlineArtwork, &ls.UpdatedTS)
	if err == sql.ErrNoRows {
		return &models.LibrarySettings{LibraryID: id, ShowImages: true, PreferLocalArtwork: true, FetchOnlineArtwork: true}, nil
	}
	return ls, err
}
