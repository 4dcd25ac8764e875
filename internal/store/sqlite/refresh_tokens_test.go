package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

func makeTestRefreshToken(tokenID, userID, hash string, expiresAt time.Time) *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGetRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	makeTestUser(t, s, "user-1")
	token := makeTestRefreshToken("rt-1", "user-1", "deadbeef01", time.Now().Add(time.Hour))

	if err := s.CreateRefreshToken(ctx, token); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	got, err := s.GetRefreshTokenByHash(ctx, "deadbeef01")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash: %v", err)
	}
	if got.ID != "rt-1" {
		t.Errorf("ID: got %q", got.ID)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID: got %q", got.UserID)
	}
	if got.ExpiresAt.Unix() != token.ExpiresAt.Unix() {
		t.Errorf("ExpiresAt: got %v, want %v", got.ExpiresAt, token.ExpiresAt)
	}
}

func TestCreateRefreshToken_DuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	makeTestUser(t, s, "user-1")
	if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-1", "user-1", "samehash", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-2", "user-1", "samehash", time.Now().Add(time.Hour)))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetRefreshTokenByHash_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRefreshTokenByHash(context.Background(), "missing")
	if !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestDeleteRefreshTokenByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	makeTestUser(t, s, "user-1")
	if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-1", "user-1", "hash1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	if err := s.DeleteRefreshTokenByHash(ctx, "hash1"); err != nil {
		t.Fatalf("DeleteRefreshTokenByHash: %v", err)
	}

	// Second delete reports the token as gone. Refresh rotation fails closed on this.
	err := s.DeleteRefreshTokenByHash(ctx, "hash1")
	if !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on second delete, got %v", err)
	}
}

func TestDeleteUserRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	makeTestUser(t, s, "user-1")
	makeTestUser(t, s, "user-2")

	for i := range 3 {
		hash := fmt.Sprintf("u1-hash-%d", i)
		if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-u1-"+hash, "user-1", hash, time.Now().Add(time.Hour))); err != nil {
			t.Fatalf("CreateRefreshToken: %v", err)
		}
	}
	if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-u2", "user-2", "u2-hash", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	if err := s.DeleteUserRefreshTokens(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUserRefreshTokens: %v", err)
	}

	for i := range 3 {
		hash := fmt.Sprintf("u1-hash-%d", i)
		if _, err := s.GetRefreshTokenByHash(ctx, hash); !errors.Is(err, store.ErrTokenNotFound) {
			t.Errorf("expected token %s to be deleted, got %v", hash, err)
		}
	}

	// Other user's tokens survive.
	if _, err := s.GetRefreshTokenByHash(ctx, "u2-hash"); err != nil {
		t.Errorf("expected user-2 token to survive: %v", err)
	}
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	makeTestUser(t, s, "user-1")
	if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-old", "user-1", "old-hash", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	if err := s.CreateRefreshToken(ctx, makeTestRefreshToken("rt-new", "user-1", "new-hash", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	n, err := s.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredRefreshTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted: got %d, want 1", n)
	}

	if _, err := s.GetRefreshTokenByHash(ctx, "new-hash"); err != nil {
		t.Errorf("expected live token to survive: %v", err)
	}
}
