package auth

import (
	"errors"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	bearerTTL = 24 * time.Hour
	// Stream tokens end up in player URLs; keep them short-lived.
	streamTTL = 6 * time.Hour

	streamAudience = "stream"
)

// Claims is the bearer-token payload issued at login.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// StreamClaims is a scoped credential for media URLs that cannot carry an
// Authorization header (video elements, HLS players). Audience is always
// "stream"; FileID and SessionID, when set, pin the token to one resource.
type StreamClaims struct {
	Role      string `json:"role"`
	FileID    string `json:"file_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

func (t *Tokens) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(bearerTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.keyFunc,
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	// Bearer tokens never carry the stream audience; reject crossover use.
	for _, aud := range claims.Audience {
		if aud == streamAudience {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// IssueStream mints a scoped stream token. fileID or sessionID may be empty
// for an unscoped token.
func (t *Tokens) IssueStream(userID uuid.UUID, role models.UserRole, fileID, sessionID string) (string, error) {
	now := time.Now()
	claims := StreamClaims{
		Role:      string(role),
		FileID:    fileID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{streamAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(streamTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) ValidateStream(tokenString string) (*StreamClaims, error) {
	claims := &StreamClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.keyFunc,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(streamAudience))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *Tokens) keyFunc(*jwt.Token) (interface{}, error) {
	return t.secret, nil
}
