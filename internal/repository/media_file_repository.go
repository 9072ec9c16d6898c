package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type MediaFileRepository struct {
	db *sql.DB
}

func NewMediaFileRepository(db *sql.DB) *MediaFileRepository {
	return &MediaFileRepository{db: db}
}

func (r *MediaFileRepository) Create(path string, sizeBytes, mtimeTS int64) (*models.MediaFile, error) {
	mf := &models.MediaFile{
		ID:        uuid.New(),
		Path:      path,
		SizeBytes: sizeBytes,
		MtimeTS:   mtimeTS,
		CreatedTS: time.Now().Unix(),
	}
	mf.UpdatedTS = mf.CreatedTS
	_, err := r.db.Exec(`INSERT INTO media_file (id, path, size_bytes, mtime_ts, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mf.ID, mf.Path, mf.SizeBytes, mf.MtimeTS, mf.CreatedTS, mf.UpdatedTS)
	if err != nil {
		return nil, fmt.Errorf("insert media file: %w", err)
	}
	return mf, nil
}

func (r *MediaFileRepository) GetByID(id uuid.UUID) (*models.MediaFile, error) {
	mf := &models.MediaFile{}
	err := r.db.QueryRow(`SELECT id, path, size_bytes, mtime_ts, container, duration_ms, stream_info_json, created_ts, updated_ts
		FROM media_file WHERE id = ?`, id).
		Scan(&mf.ID, &mf.Path, &mf.SizeBytes, &mf.MtimeTS, &mf.Container, &mf.DurationMS, &mf.StreamInfoJSON, &mf.CreatedTS, &mf.UpdatedTS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("media file not found")
	}
	return mf, err
}

// GetByPath is the scanner's idempotence check: a known path is skipped.
func (r *MediaFileRepository) GetByPath(path string) (*models.MediaFile, error) {
	mf := &models.MediaFile{}
	err := r.db.QueryRow(`SELECT id, path, size_bytes, mtime_ts, container, duration_ms, stream_info_json, created_ts, updated_ts
		FROM media_file WHERE path = ?`, path).
		Scan(&mf.ID, &mf.Path, &mf.SizeBytes, &mf.MtimeTS, &mf.Container, &mf.DurationMS, &mf.StreamInfoJSON, &mf.CreatedTS, &mf.UpdatedTS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mf, nil
}

// ListPaths returns every known media file path; the scanner uses it to
// reconcile the database against what is actually on disk.
func (r *MediaFileRepository) ListPaths() ([]string, error) {
	rows, err := r.db.Query(`SELECT path FROM media_file ORDER BY path`)
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

// UpdateProbeInfo stores container/duration/stream details after ffprobe.
func (r *MediaFileRepository) UpdateProbeInfo(id uuid.UUID, container string, durationMS int64, streamInfoJSON string) error {
	_, err := r.db.Exec(`UPDATE media_file SET container = ?, duration_ms = ?, stream_info_json = ?, updated_ts = ? WHERE id = ?`,
		container, durationMS, streamInfoJSON, time.Now().Unix(), id)
	return err
}
