package api

import (
	"log"
	"net"
	"net/http"

	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"golang.org/x/time/rate"
)

// Per-IP login limiter: 5 attempts burst, refilling one every 2 seconds.
const (
	loginRatePerSec = 0.5
	loginBurst      = 5
)

func (s *Server) loginLimiter(remoteAddr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	lim, ok := s.loginLimiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(loginRatePerSec), loginBurst)
		s.loginLimiters[host] = lim
	}
	return lim
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter(r.RemoteAddr).Allow() {
		httputil.WriteErrorDetails(w, httputil.CodeTooManyRequests, "too many login attempts",
			map[string]any{"retry_after_seconds": int(1 / loginRatePerSec)})
		return
	}

	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, httputil.CodeValidationFailed, "username and password are required")
		return
	}

	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil || user == nil {
		// Same response for unknown user and bad password.
		httputil.WriteError(w, httputil.CodeUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		httputil.WriteError(w, httputil.CodeUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		log.Printf("API: error issuing token: %v", err)
		httputil.WriteError(w, httputil.CodeInternal, "failed to issue token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.userRepo.GetByID(s.getUserID(r))
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

type streamTokenRequest struct {
	FileID    string `json:"file_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// handleStreamToken mints a short-lived scoped token for media URLs.
// Players put it in the `st` query parameter of stream requests.
func (s *Server) handleStreamToken(w http.ResponseWriter, r *http.Request) {
	var req streamTokenRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	token, err := s.tokens.IssueStream(s.getUserID(r), s.getUserRole(r), req.FileID, req.SessionID)
	if err != nil {
		log.Printf("API: error issuing stream token: %v", err)
		httputil.WriteError(w, httputil.CodeInternal, "failed to issue stream token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"stream_token": token})
}
