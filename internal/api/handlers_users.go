package api

import (
	"net/http"

	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

const minPasswordLength = 8

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userRepo.List()
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to list users")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		httputil.WriteErrorDetails(w, httputil.CodeValidationFailed, "username is required",
			map[string]any{"fields": []string{"username"}})
		return
	}
	if err := auth.ValidatePassword(req.Password, minPasswordLength); err != nil {
		httputil.WriteErrorDetails(w, httputil.CodeValidationFailed, err.Error(),
			map[string]any{"fields": []string{"password"}})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
		httputil.WriteError(w, httputil.CodeValidationFailed, "invalid role")
		return
	}

	if existing, _ := s.userRepo.GetByUsername(req.Username); existing != nil {
		httputil.WriteError(w, httputil.CodeConflict, "username already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to hash password")
		return
	}

	user, err := s.userRepo.Create(req.Username, hash, req.Role)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to create user")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid user id")
		return
	}
	if id == s.getUserID(r) {
		httputil.WriteError(w, httputil.CodeConflict, "cannot delete the current user")
		return
	}

	deleted, err := s.userRepo.Delete(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to delete user")
		return
	}
	if !deleted {
		httputil.WriteError(w, httputil.CodeNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
		httputil.WriteError(w, httputil.CodeValidationFailed, "invalid role")
		return
	}

	updated, err := s.userRepo.UpdateRole(id, req.Role)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to update role")
		return
	}
	if !updated {
		httputil.WriteError(w, httputil.CodeNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleGetLibraryAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid user id")
		return
	}

	libIDs, err := s.userRepo.GetLibraryAccess(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load library access")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"library_ids": libIDs})
}

type libraryAccessRequest struct {
	LibraryIDs []uuid.UUID `json:"library_ids"`
}

// handleSetLibraryAccess replaces the user's library grant list. An empty
// list means access to every library.
func (s *Server) handleSetLibraryAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid user id")
		return
	}

	var req libraryAccessRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	if err := s.userRepo.SetLibraryAccess(id, req.LibraryIDs); err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to update library access")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
