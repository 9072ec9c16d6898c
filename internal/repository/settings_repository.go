package repository

import (
	"database/sql"

	"github.com/spf13/cast"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (r *SettingsRepository) GetInt(key string, fallback int) int {
	v, err := r.Get(key)
	if err != nil || v == "" {
		return fallback
	}
	return cast.ToInt(v)
}

func (r *SettingsRepository) GetBool(key string, fallback bool) bool {
	v, err := r.Get(key)
	if err != nil || v == "" {
		return fallback
	}
	return cast.ToBool(v)
}

func (r *SettingsRepository) Delete(key string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
