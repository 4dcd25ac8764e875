package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func main() {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.stashmark")
	}
	dbPath := filepath.Join(dataPath, "stashmark.db")

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	counts := []struct {
		label string
		query string
	}{
		{"Organizations", "SELECT COUNT(*) FROM organizations"},
		{"Users", "SELECT COUNT(*) FROM users"},
		{"Active refresh tokens", "SELECT COUNT(*) FROM refresh_tokens"},
		{"Bookmarks (live)", "SELECT COUNT(*) FROM bookmarks WHERE deleted_at IS NULL"},
		{"Bookmarks (deleted)", "SELECT COUNT(*) FROM bookmarks WHERE deleted_at IS NOT NULL"},
		{"Folders", "SELECT COUNT(*) FROM folders"},
		{"Tags", "SELECT COUNT(*) FROM tags"},
	}

	for _, c := range counts {
		var n int
		if err := db.QueryRow(c.query).Scan(&n); err != nil {
			log.Printf("%s: query failed: %v", c.label, err)
			continue
		}
		fmt.Printf("%-22s %d\n", c.label+":", n)
	}

	fmt.Println()
	fmt.Println("=== Per-user breakdown ===")

	rows, err := db.Query(`
		SELECT u.email,
		       COUNT(DISTINCT b.id),
		       COUNT(DISTINCT f.id),
		       COUNT(DISTINCT t.id)
		FROM users u
		LEFT JOIN bookmarks b ON b.user_id = u.id AND b.deleted_at IS NULL
		LEFT JOIN folders f ON f.user_id = u.id
		LEFT JOIN tags t ON t.user_id = u.id
		GROUP BY u.id
		ORDER BY u.email`)
	if err != nil {
		log.Fatalf("Per-user query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		var bookmarks, folders, tags int
		if err := rows.Scan(&email, &bookmarks, &folders, &tags); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("%s: %d bookmarks, %d folders, %d tags\n", email, bookmarks, folders, tags)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Top domains ===")

	rows, err = db.Query(`
		SELECT domain, COUNT(*) AS n
		FROM bookmarks
		WHERE deleted_at IS NULL AND domain != ''
		GROUP BY domain
		ORDER BY n DESC
		LIMIT 10`)
	if err != nil {
		log.Fatalf("Domain query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("%-40s %d\n", domain, n)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}
}
