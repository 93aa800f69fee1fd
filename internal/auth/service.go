package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
	"github.com/tomasdev42/crypto-portfolio/internal/notification"
)

const (
	bcryptCost        = 10
	minPasswordLength = 6
	minUsernameLength = 3
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var (
	errFieldsRequired  = apperr.New(apperr.ErrValidation, "All fields are required")
	errUsernameShort   = apperr.New(apperr.ErrValidation, "Username must be at least 3 characters long")
	errEmailInvalid    = apperr.New(apperr.ErrValidation, "Please provide a valid email address")
	errPasswordShort   = apperr.New(apperr.ErrValidation, "Password needs to be at least 6 characters long")
	errPasswordsDiffer = apperr.New(apperr.ErrValidation, "Passwords do not match")
	errUserExists      = apperr.New(apperr.ErrValidation, "User already exists.")

	errCredentialsRequired = apperr.New(apperr.ErrValidation, "Username and password are required")
	errUserNotFound        = apperr.New(apperr.ErrNotFound, "User not found.")
	errBadCredentials      = apperr.New(apperr.ErrUnauthorized, "Incorrect Credentials")

	errEmailRequired      = apperr.New(apperr.ErrValidation, "Email is required")
	errResetInvalid       = apperr.New(apperr.ErrNotFound, "Invalid token or user not found.")
	errResetMismatch      = apperr.New(apperr.ErrValidation, "Passwords must match.")
	errResetPasswordShort = apperr.New(apperr.ErrValidation, "Passwords must be at least 6 characters long.")

	errRefreshMissing = apperr.New(apperr.ErrUnauthorized, "Refresh token not found")
	errRefreshInvalid = apperr.New(apperr.ErrUnauthorized, "Invalid refresh token")
	errAccessMissing  = apperr.New(apperr.ErrUnauthorized, "Access token is required")
	errAccessInvalid  = apperr.New(apperr.ErrUnauthorized, "Invalid token")
	errSessionUser    = apperr.New(apperr.ErrUnauthorized, "User not found")
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Session is the result of a successful credential exchange. RefreshToken is
// empty when the flow does not issue one.
type Session struct {
	User         identity.Summary
	AccessToken  string
	RefreshToken string
}

// Service orchestrates registration, login, password reset and token
// rotation. It keeps no session state; tokens are the session.
type Service struct {
	users     identity.Repository
	tokens    *TokenService
	notifier  notification.Notifier
	originURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the session manager.
func NewService(users identity.Repository, tokens *TokenService, notifier notification.Notifier, originURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		notifier:  notifier,
		originURL: strings.TrimRight(originURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// Tokens exposes the token service used by the manager.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register validates the form, persists a new user and issues an access token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	email := identity.NormalizeEmail(in.Email)

	switch {
	case username == "" || email == "" || in.Password == "":
		return Session{}, errFieldsRequired
	case utf8.RuneCountInString(username) < minUsernameLength:
		return Session{}, errUsernameShort
	case !emailPattern.MatchString(email):
		return Session{}, errEmailInvalid
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		return Session{}, errPasswordShort
	case in.Password != in.PasswordConfirm:
		return Session{}, errPasswordsDiffer
	}

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	user := identity.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return Session{}, errUserExists
		}
		return Session{}, err
	}

	token, err := s.tokens.IssueRegistrationToken(user)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return Session{User: user.Summary(), AccessToken: token}, nil
}

// Login checks the credentials and issues an access/refresh pair.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, errCredentialsRequired
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, errUserNotFound
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return Session{}, errBadCredentials
	}
	return s.issuePair(user)
}

// RequestPasswordReset emails a reset link to the owner of email. Delivery
// failures are logged and not reported to the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return errEmailRequired
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return errUserNotFound
		}
		return err
	}
	token, err := s.tokens.IssueResetToken(user)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		s.logger.Warn("password reset requested without a notifier", "user_id", user.ID)
		return nil
	}
	if err := s.notifier.Send(ctx, notification.PasswordReset(s.originURL, user.Email, token)); err != nil {
		s.logger.Error("password reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword replaces the password of the user named by a reset token.
// Passwords are validated before the user is looked up.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirmation string) error {
	claims, err := s.tokens.Verify(token, KindReset)
	if err != nil {
		return errResetInvalid
	}
	if password != confirmation {
		return errResetMismatch
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return errResetPasswordShort
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return errResetInvalid
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// Refresh exchanges a refresh token for a new access/refresh pair. The
// presented token is not revoked and stays usable until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, errRefreshMissing
	}
	claims, err := s.tokens.Verify(refreshToken, KindRefresh)
	if err != nil {
		return Session{}, errRefreshInvalid
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, errSessionUser
		}
		return Session{}, err
	}
	return s.issuePair(user)
}

// CheckAuth resolves an access token to the user it was issued for.
func (s *Service) CheckAuth(ctx context.Context, accessToken string) (identity.Summary, error) {
	if accessToken == "" {
		return identity.Summary{}, errAccessMissing
	}
	claims, err := s.tokens.Verify(accessToken, KindAccess)
	if err != nil {
		return identity.Summary{}, errAccessInvalid
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return identity.Summary{}, errSessionUser
		}
		return identity.Summary{}, err
	}
	return user.Summary(), nil
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return errUserExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return errUserExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) issuePair(user identity.User) (Session, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user.Summary(), AccessToken: access, RefreshToken: refresh}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It returns "" when the header has another shape.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
