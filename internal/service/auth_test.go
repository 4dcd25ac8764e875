package service

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashmark/stashmark-server/internal/auth"
	"github.com/stashmark/stashmark-server/internal/domain"
	domainerrors "github.com/stashmark/stashmark-server/internal/errors"
	"github.com/stashmark/stashmark-server/internal/store"
	"github.com/stashmark/stashmark-server/internal/store/sqlite"
)

// testServices bundles everything the service tests need.
type testServices struct {
	store     store.Store
	tokens    *auth.TokenService
	auth      *AuthService
	bookmarks *BookmarkService
	folders   *FolderService
	tags      *TagService
	orgs      *OrganizationService
}

// setupServiceTest creates services backed by a temporary database.
func setupServiceTest(t *testing.T) *testServices {
	t.Helper()

	tmpDir := t.TempDir()

	s, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	authKey, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(
		hex.EncodeToString(authKey),
		15*time.Minute,
		7*24*time.Hour,
	)
	require.NoError(t, err)

	return &testServices{
		store:     s,
		tokens:    tokenService,
		auth:      NewAuthService(s, tokenService, nil),
		bookmarks: NewBookmarkService(s, nil),
		folders:   NewFolderService(s, nil),
		tags:      NewTagService(s, nil),
		orgs:      NewOrganizationService(s, nil),
	}
}

// signupTestUser registers a user and returns the auth response.
func signupTestUser(t *testing.T, ts *testServices, email string) *AuthResponse {
	t.Helper()

	resp, err := ts.auth.Signup(context.Background(), SignupRequest{
		Email:    email,
		Password: "correct-horse-battery",
		Name:     "Test User",
	})
	require.NoError(t, err)
	return resp
}

func TestAuthService_Signup(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()

	resp, err := ts.auth.Signup(ctx, SignupRequest{
		Email:    "Alice@Example.com",
		Password: "correct-horse-battery",
		Name:     "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", resp.User.Email, "email should be lowercased")
	assert.Equal(t, domain.RoleOwner, resp.User.Role)
	assert.Equal(t, domain.ProviderEmail, resp.User.Provider)
	assert.True(t, resp.User.IsActive)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int((15 * time.Minute).Seconds()), resp.ExpiresIn)

	// A personal organization is created with the user as owner
	org, err := ts.store.GetOrganization(ctx, resp.User.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com's Workspace", org.Name)
	assert.Regexp(t, `^alice-example-com-[a-z0-9]{6}$`, org.Slug)

	// The access token carries the tenancy claims
	claims, err := ts.tokens.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, org.ID, claims.OrganizationID)
	assert.Equal(t, string(domain.RoleOwner), claims.Role)
}

func TestAuthService_Signup_NamedOrganization(t *testing.T) {
	ts := setupServiceTest(t)

	resp, err := ts.auth.Signup(context.Background(), SignupRequest{
		Email:            "bob@example.com",
		Password:         "correct-horse-battery",
		Name:             "Bob",
		OrganizationName: "Acme Inc",
	})
	require.NoError(t, err)

	org, err := ts.store.GetOrganization(context.Background(), resp.User.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", org.Name)
	assert.Regexp(t, `^acme-inc-[a-z0-9]{6}$`, org.Slug)
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	ts := setupServiceTest(t)
	signupTestUser(t, ts, "alice@example.com")

	_, err := ts.auth.Signup(context.Background(), SignupRequest{
		Email:    "alice@example.com",
		Password: "another-password-123",
		Name:     "Imposter",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeConflict, domainErr.Code)
}

func TestAuthService_Signup_Validation(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"missing email", SignupRequest{Password: "correct-horse-battery", Name: "A"}},
		{"invalid email", SignupRequest{Email: "not-an-email", Password: "correct-horse-battery", Name: "A"}},
		{"short password", SignupRequest{Email: "a@example.com", Password: "short", Name: "A"}},
		{"missing name", SignupRequest{Email: "a@example.com", Password: "correct-horse-battery"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.auth.Signup(ctx, tt.req)
			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	ts := setupServiceTest(t)
	signup := signupTestUser(t, ts, "alice@example.com")

	resp, err := ts.auth.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	assert.Equal(t, signup.User.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, signup.RefreshToken, resp.RefreshToken)
	assert.False(t, resp.User.LastLoginAt.IsZero())
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	ts := setupServiceTest(t)
	signupTestUser(t, ts, "alice@example.com")

	_, err := ts.auth.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password-entirely",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	ts := setupServiceTest(t)

	// Same error as a wrong password, so responses don't reveal
	// which emails are registered
	_, err := ts.auth.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-horse-battery",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
}

func TestAuthService_Login_DeactivatedAccount(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	signup.User.IsActive = false
	require.NoError(t, ts.store.UpdateUser(ctx, signup.User))

	_, err := ts.auth.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeUnauthorized, domainErr.Code)
}

func TestAuthService_Login_OAuthOnlyAccount(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()

	_, err := ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: "google-77",
		Email:      "carol@example.com",
		Name:       "Carol",
	})
	require.NoError(t, err)

	// No password is set, so the user must go back through the provider
	_, err = ts.auth.Login(ctx, LoginRequest{
		Email:    "carol@example.com",
		Password: "correct-horse-battery",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeUnauthorized, domainErr.Code)
}

func TestAuthService_RefreshTokens(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	resp, err := ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	require.NoError(t, err)

	assert.Equal(t, signup.User.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, signup.RefreshToken, resp.RefreshToken)
}

func TestAuthService_RefreshTokens_SingleUse(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	first, err := ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	require.NoError(t, err)

	// The consumed token must be rejected on replay
	_, err = ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeUnauthorized, domainErr.Code)

	// The replacement token still works
	_, err = ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: first.RefreshToken})
	assert.NoError(t, err)
}

func TestAuthService_RefreshTokens_Invalid(t *testing.T) {
	ts := setupServiceTest(t)

	_, err := ts.auth.RefreshTokens(context.Background(), RefreshRequest{
		RefreshToken: "bm90LWEtcmVhbC10b2tlbg",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeUnauthorized, domainErr.Code)
}

func TestAuthService_RefreshTokens_Expired(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	// Backdate the stored token past its expiry
	tokenHash := auth.HashRefreshToken(signup.RefreshToken)
	token, err := ts.store.GetRefreshTokenByHash(ctx, tokenHash)
	require.NoError(t, err)
	token.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, ts.store.DeleteRefreshTokenByHash(ctx, tokenHash))
	require.NoError(t, ts.store.CreateRefreshToken(ctx, token))

	_, err = ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeTokenExpired, domainErr.Code)

	// Expired tokens are removed on first presentation
	_, err = ts.store.GetRefreshTokenByHash(ctx, tokenHash)
	assert.ErrorIs(t, err, store.ErrTokenNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	require.NoError(t, ts.auth.Logout(ctx, signup.RefreshToken))

	_, err := ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	require.Error(t, err)

	// Logging out an already-invalid token is not an error
	assert.NoError(t, ts.auth.Logout(ctx, signup.RefreshToken))
	assert.NoError(t, ts.auth.Logout(ctx, ""))
}

func TestAuthService_LogoutAll(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	login, err := ts.auth.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	require.NoError(t, ts.auth.LogoutAll(ctx, signup.User.ID))

	_, err = ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: signup.RefreshToken})
	assert.Error(t, err)
	_, err = ts.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Error(t, err)
}

func TestAuthService_VerifyAccessToken(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	user, claims, err := ts.auth.VerifyAccessToken(ctx, signup.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, user.ID)
	assert.Equal(t, signup.User.OrganizationID, claims.OrganizationID)

	_, _, err = ts.auth.VerifyAccessToken(ctx, "garbage")
	assert.Error(t, err)
}

func TestAuthService_LoginWithOAuth_NewUser(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()

	resp, err := ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: "google-12345",
		Email:      "Carol@Example.com",
		Name:       "Carol",
		AvatarURL:  "https://lh3.example.com/carol.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "carol@example.com", resp.User.Email)
	assert.Equal(t, domain.ProviderGoogle, resp.User.Provider)
	assert.Equal(t, "google-12345", resp.User.ProviderID)
	assert.Equal(t, domain.RoleOwner, resp.User.Role)
	assert.False(t, resp.User.HasPassword())
	assert.NotEmpty(t, resp.RefreshToken)

	org, err := ts.store.GetOrganization(ctx, resp.User.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Carol's Workspace", org.Name)
	assert.Regexp(t, `^carol-[a-z0-9]{6}$`, org.Slug)

	// Second OAuth login finds the same account
	again, err := ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: "google-12345",
		Email:      "carol@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)
}

func TestAuthService_LoginWithOAuth_LinksEmailAccount(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	resp, err := ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: "gh-9876",
		Email:      "alice@example.com",
		Name:       "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, signup.User.ID, resp.User.ID)
	assert.Equal(t, domain.ProviderGitHub, resp.User.Provider)
	assert.Equal(t, "gh-9876", resp.User.ProviderID)
	// Password login keeps working after linking
	assert.True(t, resp.User.HasPassword())
}

func TestAuthService_LoginWithOAuth_ProviderConflict(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()

	_, err := ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: "google-1",
		Email:      "dave@example.com",
		Name:       "Dave",
	})
	require.NoError(t, err)

	// Same email arriving from a different provider must not hijack
	// the Google-linked account
	_, err = ts.auth.LoginWithOAuth(ctx, OAuthProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: "gh-1",
		Email:      "dave@example.com",
		Name:       "Dave",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeConflict, domainErr.Code)
}

func TestAuthService_LoginWithOAuth_NoEmail(t *testing.T) {
	ts := setupServiceTest(t)

	_, err := ts.auth.LoginWithOAuth(context.Background(), OAuthProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: "gh-1",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
}

func TestAuthService_CleanupExpiredTokens(t *testing.T) {
	ts := setupServiceTest(t)
	ctx := context.Background()
	signup := signupTestUser(t, ts, "alice@example.com")

	tokenHash := auth.HashRefreshToken(signup.RefreshToken)
	token, err := ts.store.GetRefreshTokenByHash(ctx, tokenHash)
	require.NoError(t, err)
	token.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, ts.store.DeleteRefreshTokenByHash(ctx, tokenHash))
	require.NoError(t, ts.store.CreateRefreshToken(ctx, token))

	count, err := ts.auth.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerateSlug(t *testing.T) {
	slug, err := generateSlug("Acme Inc.")
	require.NoError(t, err)
	assert.Regexp(t, `^acme-inc-[a-z0-9]{6}$`, slug)

	slug, err = generateSlug("  ")
	require.NoError(t, err)
	assert.Regexp(t, `^org-[a-z0-9]{6}$`, slug)

	a, err := generateSlug("Same Name")
	require.NoError(t, err)
	b, err := generateSlug("Same Name")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "suffix keeps equal names distinct")
}
