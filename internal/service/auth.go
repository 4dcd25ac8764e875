package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/stashmark/stashmark-server/internal/auth"
	"github.com/stashmark/stashmark-server/internal/domain"
	domainerrors "github.com/stashmark/stashmark-server/internal/errors"
	"github.com/stashmark/stashmark-server/internal/id"
	"github.com/stashmark/stashmark-server/internal/store"
)

// validate is the shared validator instance for request validation.
var validate = func() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// AuthService handles user registration, authentication, and token lifecycle.
type AuthService struct {
	store        store.Store
	tokenService *auth.TokenService
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(store store.Store, tokenService *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        store,
		tokenService: tokenService,
		logger:       logger,
	}
}

// SignupRequest contains new account registration data.
type SignupRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8,max=1024"`
	Name             string `json:"name" validate:"required,min=1,max=100"`
	OrganizationName string `json:"organizationName" validate:"omitempty,max=100"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest contains the refresh token for rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenPair holds a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// AuthResponse is returned from signup, login, and refresh operations.
type AuthResponse struct {
	User *domain.User `json:"user"`
	TokenPair
}

// OAuthProfile carries the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider   domain.AuthProvider
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Signup registers a new user together with their organization.
// Every account gets its own organization; the user becomes its owner.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("usr")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}
	orgID, err := id.Generate("org")
	if err != nil {
		return nil, fmt.Errorf("generate organization ID: %w", err)
	}

	orgName := strings.TrimSpace(req.OrganizationName)
	slugBase := orgName
	if orgName == "" {
		orgName = email + "'s Workspace"
		slugBase = email
	}
	slug, err := generateSlug(slugBase)
	if err != nil {
		return nil, fmt.Errorf("generate organization slug: %w", err)
	}

	now := time.Now()
	org := &domain.Organization{
		ID:        orgID,
		Name:      orgName,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &domain.User{
		ID:             userID,
		Email:          email,
		PasswordHash:   passwordHash,
		Name:           strings.TrimSpace(req.Name),
		Provider:       domain.ProviderEmail,
		OrganizationID: orgID,
		Role:           domain.RoleOwner,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// User and organization are created in one transaction; a duplicate
	// email leaves no orphaned organization behind.
	if err := s.store.CreateUserWithOrganization(ctx, user, org); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.Conflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("User signed up",
			"user_id", user.ID,
			"organization_id", org.ID,
		)
	}

	return &AuthResponse{User: user, TokenPair: *pair}, nil
}

// Login authenticates a user with email and password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Don't leak whether the email exists
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.HasPassword() {
		return nil, domainerrors.Unauthorized("please sign in with Google or GitHub")
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	if !user.IsActive {
		return nil, domainerrors.Unauthorized("this account has been deactivated")
	}

	s.recordLogin(ctx, user)

	pair, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("User logged in", "user_id", user.ID)
	}

	return &AuthResponse{User: user, TokenPair: *pair}, nil
}

// LoginWithOAuth finds or creates a user from an OAuth provider profile.
// Existing email accounts are linked to the provider on first OAuth login.
func (s *AuthService) LoginWithOAuth(ctx context.Context, profile OAuthProfile) (*AuthResponse, error) {
	if profile.Email == "" {
		return nil, domainerrors.Validation("OAuth provider did not supply an email address")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := s.store.GetUserByProvider(ctx, profile.Provider, profile.ProviderID)
	if errors.Is(err, store.ErrUserNotFound) {
		// Fall back to email match so a password account can be linked
		user, err = s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrUserNotFound) {
			return s.signupFromOAuth(ctx, profile, email)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup user: %w", err)
		}

		// Only link accounts that haven't claimed a different provider
		if user.Provider != domain.ProviderEmail && user.Provider != profile.Provider {
			return nil, domainerrors.Conflict("this email is already linked to a different sign-in provider")
		}
		user.Provider = profile.Provider
		user.ProviderID = profile.ProviderID
		if user.AvatarURL == "" {
			user.AvatarURL = profile.AvatarURL
		}
		user.Touch()
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("link provider: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		return nil, domainerrors.Unauthorized("this account has been deactivated")
	}

	s.recordLogin(ctx, user)

	pair, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("User logged in via OAuth",
			"user_id", user.ID,
			"provider", user.Provider,
		)
	}

	return &AuthResponse{User: user, TokenPair: *pair}, nil
}

// RefreshTokens exchanges a refresh token for a new token pair.
// The presented token is consumed; each refresh token is single-use.
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	tokenHash := auth.HashRefreshToken(req.RefreshToken)
	token, err := s.store.GetRefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, domainerrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if token.IsExpired() {
		_ = s.store.DeleteRefreshTokenByHash(ctx, tokenHash)
		return nil, domainerrors.TokenExpired("refresh token has expired")
	}

	user, err := s.store.GetUser(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			_ = s.store.DeleteRefreshTokenByHash(ctx, tokenHash)
			return nil, domainerrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, domainerrors.Unauthorized("this account has been deactivated")
	}

	// Consume the old token before issuing a new pair. If another request
	// already consumed it, fail instead of minting a second pair.
	if err := s.store.DeleteRefreshTokenByHash(ctx, tokenHash); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, domainerrors.Unauthorized("refresh token already used")
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	pair, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{User: user, TokenPair: *pair}, nil
}

// Logout invalidates a single refresh token.
// Unknown tokens succeed silently; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	tokenHash := auth.HashRefreshToken(refreshToken)
	if err := s.store.DeleteRefreshTokenByHash(ctx, tokenHash); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// LogoutAll invalidates every refresh token belonging to a user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteUserRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("All sessions revoked", "user_id", userID)
	}
	return nil
}

// VerifyAccessToken validates an access token and loads the associated user.
// Used by authentication middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired access token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, domainerrors.Unauthorized("user not found")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, domainerrors.Unauthorized("this account has been deactivated")
	}

	return user, claims, nil
}

// UpdateProfileRequest contains mutable profile fields.
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,max=2048"`
}

// UpdateProfile applies profile changes for the current user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domainerrors.Validation("name cannot be empty")
		}
		user.Name = name
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}

	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// CleanupExpiredTokens removes refresh tokens past their expiry.
// Intended to run periodically in the background.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	if count > 0 && s.logger != nil {
		s.logger.Info("Removed expired refresh tokens", "count", count)
	}
	return count, nil
}

// signupFromOAuth provisions a new user and organization from an OAuth profile.
func (s *AuthService) signupFromOAuth(ctx context.Context, profile OAuthProfile, email string) (*AuthResponse, error) {
	userID, err := id.Generate("usr")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}
	orgID, err := id.Generate("org")
	if err != nil {
		return nil, fmt.Errorf("generate organization ID: %w", err)
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = email
	}
	orgName := name + "'s Workspace"
	slug, err := generateSlug(name)
	if err != nil {
		return nil, fmt.Errorf("generate organization slug: %w", err)
	}

	now := time.Now()
	org := &domain.Organization{
		ID:        orgID,
		Name:      orgName,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &domain.User{
		ID:             userID,
		Email:          email,
		Name:           name,
		AvatarURL:      profile.AvatarURL,
		Provider:       profile.Provider,
		ProviderID:     profile.ProviderID,
		OrganizationID: orgID,
		Role:           domain.RoleOwner,
		IsActive:       true,
		LastLoginAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateUserWithOrganization(ctx, user, org); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.Conflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("User signed up via OAuth",
			"user_id", user.ID,
			"provider", profile.Provider,
		)
	}

	return &AuthResponse{User: user, TokenPair: *pair}, nil
}

// generateTokens issues a token pair and persists the refresh token hash.
func (s *AuthService) generateTokens(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokenService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	tokenID, err := id.Generate("rtk")
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}

	now := time.Now()
	record := &domain.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt: now.Add(s.tokenService.RefreshTokenDuration()),
		CreatedAt: now,
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
	}, nil
}

// recordLogin updates the last login timestamp without failing the login.
func (s *AuthService) recordLogin(ctx context.Context, user *domain.User) {
	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil && s.logger != nil {
		s.logger.Warn("Failed to update last login time",
			"user_id", user.ID,
			"error", err,
		)
	}
}

// generateSlug derives a URL-safe organization slug from a display name.
// A random suffix keeps slugs unique across organizations with the same name.
func generateSlug(name string) (string, error) {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	base := strings.Trim(b.String(), "-")
	if base == "" {
		base = "org"
	}
	if len(base) > 50 {
		base = strings.Trim(base[:50], "-")
	}

	suffix, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 6)
	if err != nil {
		return "", fmt.Errorf("generate slug suffix: %w", err)
	}
	return base + "-" + suffix, nil
}

// formatValidationError converts validator errors to user-friendly domain errors.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		// Return first validation error as a domain error
		for _, e := range validationErrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				return domainerrors.Validationf("%s is required", field)
			case "email":
				return domainerrors.Validationf("%s must be a valid email address", field)
			case "min":
				return domainerrors.Validationf("%s must be at least %s characters", field, e.Param())
			case "max":
				return domainerrors.Validationf("%s exceeds maximum length of %s characters", field, e.Param())
			case "url":
				return domainerrors.Validationf("%s must be a valid URL", field)
			default:
				return domainerrors.Validationf("%s is invalid", field)
			}
		}
	}
	return err
}
