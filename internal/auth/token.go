package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/config"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
)

// Kind distinguishes the token families. Each kind is bound to a signing key
// and a validity window.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

// ErrInvalidToken is returned for any malformed, forged, expired or
// mis-typed token.
var ErrInvalidToken = apperr.New(apperr.ErrInvalidToken, "Invalid token")

// Claims carried by every token. Username and Email are only populated on
// access tokens.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Kind     Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256 tokens. Access and reset tokens share
// the access secret; refresh tokens use their own.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
	registerTTL   time.Duration
	now           func() time.Time
}

// NewTokenService builds a token service from the startup configuration.
func NewTokenService(cfg config.Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		resetTTL:      cfg.ResetTokenTTL,
		registerTTL:   cfg.RegisterTokenTTL,
		now:           time.Now,
	}
}

// IssueAccessToken signs a short lived access token embedding the user's id,
// username and email.
func (s *TokenService) IssueAccessToken(user identity.User) (string, error) {
	return s.issueAccess(user, s.accessTTL)
}

// IssueRegistrationToken signs the access token handed out right after
// registration.
func (s *TokenService) IssueRegistrationToken(user identity.User) (string, error) {
	return s.issueAccess(user, s.registerTTL)
}

// IssueRefreshToken signs a long lived refresh token embedding the user id only.
func (s *TokenService) IssueRefreshToken(user identity.User) (string, error) {
	return s.sign(Claims{UserID: user.ID, Kind: KindRefresh}, s.refreshSecret, s.refreshTTL)
}

// IssueResetToken signs a password reset token embedding the user id only.
func (s *TokenService) IssueResetToken(user identity.User) (string, error) {
	return s.sign(Claims{UserID: user.ID, Kind: KindReset}, s.accessSecret, s.resetTTL)
}

// AccessTTL reports the validity window of access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the validity window of refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// RegisterTTL reports the validity window of the post-registration token.
func (s *TokenService) RegisterTTL() time.Duration { return s.registerTTL }

// Verify checks signature, expiry and kind. Every failure collapses to
// ErrInvalidToken.
func (s *TokenService) Verify(token string, kind Kind) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	secret, err := s.secretFor(kind)
	if err != nil {
		return Claims{}, err
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Kind != kind || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) issueAccess(user identity.User, ttl time.Duration) (string, error) {
	return s.sign(Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Kind:     KindAccess,
	}, s.accessSecret, ttl)
}

func (s *TokenService) sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess, KindReset:
		return s.accessSecret, nil
	case KindRefresh:
		return s.refreshSecret, nil
	default:
		return nil, errors.New("auth: unknown token kind " + string(kind))
	}
}
