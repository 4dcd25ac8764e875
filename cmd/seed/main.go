// Package main provides a tool to seed the database with demo bookmark data.
//
// This creates a demo user (if needed) and fills their account with folders,
// tags, and bookmarks to exercise list views, filtering, and tag counts.
//
// Usage:
//
//	DATA_PATH=~/.stashmark go run ./cmd/seed
//	DATA_PATH=~/.stashmark go run ./cmd/seed --email demo@example.com
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/stashmark/stashmark-server/internal/auth"
	domainerrors "github.com/stashmark/stashmark-server/internal/errors"
	"github.com/stashmark/stashmark-server/internal/service"
	"github.com/stashmark/stashmark-server/internal/store/sqlite"
)

var (
	email    = flag.String("email", "demo@example.com", "Email of the demo account")
	password = flag.String("password", "demo-password-123", "Password of the demo account")
)

type seedBookmark struct {
	url    string
	title  string
	folder string
	tags   []string
}

var seedData = []seedBookmark{
	{"https://go.dev/blog/error-handling", "Error handling in Go", "Reading", []string{"go", "errors"}},
	{"https://go.dev/blog/context", "Go Concurrency Patterns: Context", "Reading", []string{"go", "concurrency"}},
	{"https://www.sqlite.org/wal.html", "Write-Ahead Logging", "Reference", []string{"sqlite", "databases"}},
	{"https://www.sqlite.org/lang_upsert.html", "SQLite UPSERT", "Reference", []string{"sqlite"}},
	{"https://paseto.io/", "PASETO: Platform-Agnostic Security Tokens", "Reference", []string{"security"}},
	{"https://news.ycombinator.com/", "Hacker News", "", []string{"news"}},
	{"https://example.com/weekend-project", "Weekend project ideas", "", []string{"ideas"}},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.stashmark")
	}

	fmt.Printf("Opening database at: %s\n", dataPath)

	s, err := sqlite.Open(filepath.Join(dataPath, "stashmark.db"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(hex.EncodeToString(key), 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	ctx := context.Background()

	authService := service.NewAuthService(s, tokens, nil)
	bookmarkService := service.NewBookmarkService(s, nil)
	folderService := service.NewFolderService(s, nil)

	userID, orgID, err := ensureDemoUser(ctx, authService)
	if err != nil {
		log.Fatalf("Failed to create demo user: %v", err)
	}
	fmt.Printf("Demo user ready: %s (%s)\n", *email, userID)

	// Create the folders referenced by the seed data.
	folderIDs := map[string]string{}
	for _, name := range []string{"Reading", "Reference"} {
		folder, err := folderService.CreateFolder(ctx, userID, orgID, service.CreateFolderRequest{Name: name})
		if err != nil {
			log.Printf("Skipping folder %q: %v", name, err)
			continue
		}
		folderIDs[name] = folder.ID
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	created := 0
	for _, sb := range seedData {
		req := service.CreateBookmarkRequest{
			URL:        sb.url,
			Title:      sb.title,
			Tags:       sb.tags,
			IsFavorite: rng.Intn(3) == 0,
		}
		if id, ok := folderIDs[sb.folder]; ok {
			folderID := id
			req.FolderID = &folderID
		}

		bookmark, err := bookmarkService.CreateBookmark(ctx, userID, orgID, req)
		if err != nil {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) && domainErr.Code == domainerrors.CodeConflict {
				fmt.Printf("  already bookmarked: %s\n", sb.url)
				continue
			}
			log.Printf("Failed to create bookmark %s: %v", sb.url, err)
			continue
		}

		// A few recorded visits make the list views less uniform.
		for range rng.Intn(5) {
			if _, err := bookmarkService.RecordVisit(ctx, userID, bookmark.ID); err != nil {
				break
			}
		}

		created++
		fmt.Printf("  created: %s\n", bookmark.Title)
	}

	fmt.Printf("\nDone. Created %d bookmarks.\n", created)
}

// ensureDemoUser signs up the demo account, or reuses it when it already exists.
func ensureDemoUser(ctx context.Context, authService *service.AuthService) (string, string, error) {
	resp, err := authService.Signup(ctx, service.SignupRequest{
		Email:    *email,
		Password: *password,
		Name:     "Demo User",
	})
	if err == nil {
		return resp.User.ID, resp.User.OrganizationID, nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) && domainErr.Code == domainerrors.CodeConflict {
		resp, err = authService.Login(ctx, service.LoginRequest{
			Email:    *email,
			Password: *password,
		})
		if err != nil {
			return "", "", fmt.Errorf("demo user exists but login failed: %w", err)
		}
		return resp.User.ID, resp.User.OrganizationID, nil
	}

	return "", "", err
}
