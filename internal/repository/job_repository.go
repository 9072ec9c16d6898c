package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(kind string, payloadJSON *string) (*models.Job, error) {
	job := &models.Job{
		ID:          uuid.New(),
		Kind:        kind,
		Status:      models.JobQueued,
		Progress:    0,
		PayloadJSON: payloadJSON,
		CreatedTS:   time.Now().Unix(),
	}
	job.UpdatedTS = job.CreatedTS
	_, err := r.db.Exec(`INSERT INTO job (id, kind, status, progress, payload_json, created_ts, updated_ts)
		VALUES (?, ?, 'queued', 0, ?, ?, ?)`,
		job.ID, job.Kind, job.PayloadJSON, job.CreatedTS, job.UpdatedTS)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) GetByID(id uuid.UUID) (*models.Job, error) {
	job := &models.Job{}
	err := r.db.QueryRow(`SELECT id, kind, status, progress, payload_json, error, created_ts, updated_ts
		FROM job WHERE id = ?`, id).
		Scan(&job.ID, &job.Kind, &job.Status, &job.Progress, &job.PayloadJSON, &job.Error, &job.CreatedTS, &job.UpdatedTS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	return job, err
}

func (r *JobRepository) List() ([]*models.Job, error) {
	rows, err := r.db.Query(`SELECT id, kind, status, progress, payload_json, error, created_ts, updated_ts
		FROM job ORDER BY created_ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job := &models.Job{}
		if err := rows.Scan(&job.ID, &job.Kind, &job.Status, &job.Progress, &job.PayloadJSON, &job.Error, &job.CreatedTS, &job.UpdatedTS); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) UpdateStatus(id uuid.UUID, status models.JobStatus, progress float64, errMsg *string) (bool, error) {
	res, err := r.db.Exec(`UPDATE job SET status = ?, progress = ?, error = ?, updated_ts = ? WHERE id = ?`,
		status, progress, errMsg, time.Now().Unix(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateStatusWithRetry absorbs transient write failures (SQLite busy under
// concurrent scans). Five attempts with a short pause between them.
func (r *JobRepository) UpdateStatusWithRetry(id uuid.UUID, status models.JobStatus, progress float64, errMsg *string) error {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if _, err := r.UpdateStatus(id, status, progress, errMsg); err == nil {
			return nil
		} else {
			lastErr = err
			time.Sleep(120 * time.Millisecond)
		}
	}
	return fmt.Errorf("update job status after retries: %w", lastErr)
}

// Cancel transitions queued or running jobs to cancelled. Terminal jobs are
// untouched and Cancel reports false.
func (r *JobRepository) Cancel(id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(`UPDATE job SET status = 'cancelled', updated_ts = ?
		WHERE id = ? AND status IN ('queued', 'running')`,
		time.Now().Unix(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
