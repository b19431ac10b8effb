package services

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	revokedKeyPrefix  = "auth:revoked:"
)

var errInvalidCredentials = apperrors.NewUnauthorizedError("invalid credentials")

// AuthConfig configures token issuing and the login redirect
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	LoginURL      string
	PublicBaseURL string
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	Token string         `json:"token"`
	User  *entities.User `json:"user"`
}

type tokenClaims struct {
	UID   string        `json:"uid"`
	Email string        `json:"email"`
	Role  entities.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles accounts and access tokens
type AuthService struct {
	users  repositories.UserRepository
	cache  providers.CacheProvider
	config AuthConfig
	secret []byte
}

// NewAuthService creates a new auth service. cache may be nil, in which case
// Logout cannot revoke tokens before they expire.
func NewAuthService(users repositories.UserRepository, cache providers.CacheProvider, config AuthConfig) *AuthService {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:  users,
		cache:  cache,
		config: config,
		secret: []byte(config.Secret),
	}
}

// Register creates a user account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &entities.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		Role:         entities.RoleUser,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issue(user)
}

// Login checks credentials and returns a fresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperrors.IsNotFound(err) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *entities.User) (*AuthResult, error) {
	now := time.Now()
	claims := tokenClaims{
		UID:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) parse(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}
	if claims.UID == "" || claims.ID == "" {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}
	return claims, nil
}

// Authenticate resolves a bearer token to the current principal. The user is
// reloaded so role changes apply to tokens issued before them.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*entities.Principal, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		revoked, err := s.cache.Exists(ctx, revokedKeyPrefix+claims.ID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check token revocation")
		} else if revoked {
			return nil, apperrors.NewUnauthorizedError("token has been revoked")
		}
	}

	user, err := s.users.GetByID(ctx, claims.UID)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NewUnauthorizedError("account no longer exists")
	}
	if err != nil {
		return nil, err
	}

	return &entities.Principal{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		TokenID: claims.ID,
	}, nil
}

// Logout revokes the token until it would have expired
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	ttl := int(math.Ceil(remaining.Seconds()))
	if err := s.cache.Set(ctx, revokedKeyPrefix+claims.ID, []byte("1"), ttl); err != nil {
		return apperrors.NewInternalError("failed to revoke token", err)
	}
	return nil
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, p *entities.Principal) (*entities.User, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, p.UserID)
}

// UpdateMe applies a partial update to the current user. Only full_name may change.
func (s *AuthService) UpdateMe(ctx context.Context, p *entities.Principal, partial map[string]any) (*entities.User, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	for key := range partial {
		if key != "full_name" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s cannot be updated", key))
		}
	}
	fullName, ok := partial["full_name"].(string)
	if !ok || strings.TrimSpace(fullName) == "" {
		return nil, apperrors.NewValidationError("full_name must be a non-empty string")
	}

	return s.users.UpdateFullName(ctx, p.UserID, strings.TrimSpace(fullName))
}

// SetRole changes another user's role. Admin only.
func (s *AuthService) SetRole(ctx context.Context, p *entities.Principal, userID string, role entities.Role) (*entities.User, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only admins can change roles")
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("role", string(role)).Str("by", p.Email).Msg("user role changed")
	return user, nil
}

// LoginRedirectURL returns the login page URL carrying fromURL when it is safe
// to redirect back to: a relative path or an address on the app's own origin.
func (s *AuthService) LoginRedirectURL(fromURL string) string {
	target, err := url.Parse(s.config.LoginURL)
	if err != nil {
		return s.config.LoginURL
	}

	if fromURL != "" && s.safeReturnURL(fromURL) {
		q := target.Query()
		q.Set("from_url", fromURL)
		target.RawQuery = q.Encode()
	}
	return target.String()
}

func (s *AuthService) safeReturnURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//") && !strings.Contains(raw, `\`)
	}

	for _, allowed := range []string{s.config.LoginURL, s.config.PublicBaseURL} {
		origin, err := url.Parse(allowed)
		if err != nil || origin.Host == "" {
			continue
		}
		if strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host) {
			return true
		}
	}
	return false
}

