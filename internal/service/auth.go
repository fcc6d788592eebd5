package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conduitdb/conduit/internal/config"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("api token revoked")
)

// TokenPrincipal identifies the API token a request authenticated with.
type TokenPrincipal struct {
	TokenID int64
	Name    string
}

// JWTPrincipal identifies the subject of a bearer token.
type JWTPrincipal struct {
	Subject string
}

type AuthService struct {
	store     *config.Store
	jwtSecret []byte
}

func NewAuthService(store *config.Store, jwtSecret string) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateAPIToken checks the provided raw token against stored token hashes.
func (s *AuthService) ValidateAPIToken(ctx context.Context, rawToken string) (*TokenPrincipal, error) {
	hash := config.HashToken(rawToken)

	tok, err := s.store.GetAPITokenByHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !tok.IsActive {
		return nil, ErrTokenRevoked
	}

	if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	// Update last used timestamp (fire and forget)
	go s.store.UpdateAPITokenLastUsed(context.Background(), tok.ID)

	return &TokenPrincipal{
		TokenID: tok.ID,
		Name:    tok.Name,
	}, nil
}

// ValidateJWT verifies a JWT bearer token and returns its subject.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*JWTPrincipal, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !token.Valid {
		return nil, ErrInvalidCredentials
	}

	return &JWTPrincipal{Subject: claims.Subject}, nil
}

// IssueJWT creates a new signed JWT token for the given subject.
func (s *AuthService) IssueJWT(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "conduit",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
