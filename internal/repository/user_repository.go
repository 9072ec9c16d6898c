package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(username, passwordHash string, role models.UserRole) (*models.User, error) {
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedTS:    time.Now().Unix(),
	}
	_, err := r.db.Exec(`INSERT INTO user (id, username, password_hash, role, created_ts) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedTS)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(`SELECT id, username, password_hash, role, created_ts FROM user WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedTS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(`SELECT id, username, password_hash, role, created_ts FROM user WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedTS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	return u, err
}

func (r *UserRepository) List() ([]*models.User, error) {
	rows, err := r.db.Query(`SELECT id, username, password_hash, role, created_ts FROM user ORDER BY created_ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedTS); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Delete(id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM user WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *UserRepository) UpdateRole(id uuid.UUID, role models.UserRole) (bool, error) {
	res, err := r.db.Exec(`UPDATE user SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM user`).Scan(&count)
	return count, err
}

// SetLibraryAccess replaces the user's allowed-library set transactionally.
func (r *UserRepository) SetLibraryAccess(userID uuid.UUID, libraryIDs []uuid.UUID) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_library_access WHERE user_id = ?`, userID); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, libID := range libraryIDs {
		if _, err := tx.Exec(`INSERT INTO user_library_access (user_id, library_id, created_ts) VALUES (?, ?, ?)`,
			userID, libID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *UserRepository) GetLibraryAccess(userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(`SELECT library_id FROM user_library_access WHERE user_id = ? ORDER BY library_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
