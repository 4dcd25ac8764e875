package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestBookmark creates a bookmark over the API and returns it.
func (ts *testServer) createTestBookmark(t *testing.T, token string, body map[string]any) BookmarkResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/bookmarks", bearer(token), body)
	require.Equal(t, http.StatusOK, resp.Code, "Create bookmark failed: %s", resp.Body.String())

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	return envelope.Data
}

func TestCreateBookmark(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	bookmark := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":   "HTTPS://Example.com/article/?utm_source=feed",
		"title": "An Article",
		"tags":  []string{"reading", "go"},
	})

	assert.NotEmpty(t, bookmark.ID)
	assert.Equal(t, "HTTPS://Example.com/article/?utm_source=feed", bookmark.URL, "URL is stored as saved")
	assert.Equal(t, "example.com", bookmark.Domain)
	assert.Equal(t, "An Article", bookmark.Title)
	assert.Len(t, bookmark.Tags, 2)
	assert.Zero(t, bookmark.VisitCount)
}

func TestCreateBookmark_Duplicate(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	original := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	// A tracking-parameter variant of the same page collides.
	resp := ts.api.Post("/api/v1/bookmarks", bearer(auth.AccessToken), map[string]any{
		"url": "https://www.example.com/article?utm_campaign=x",
	})

	assert.Equal(t, http.StatusConflict, resp.Code)

	var envelope testErrorEnvelope
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, "CONFLICT", envelope.Code)
	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok, "expected details object, got %T", envelope.Details)
	assert.Equal(t, original.ID, details["bookmarkId"])
}

func TestCreateBookmark_InvalidURL(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/bookmarks", bearer(auth.AccessToken), map[string]any{
		"url": "not a url",
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetBookmark(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	resp := ts.api.Get("/api/v1/bookmarks/"+created.ID, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, created.ID, envelope.Data.ID)
	assert.Equal(t, "https://example.com/article", envelope.Data.URL)
}

func TestGetBookmark_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	resp := ts.api.Get("/api/v1/bookmarks/bm-nope", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetBookmark_OtherUsersBookmark(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signupTestUser(t, "alice@example.com")
	bob := ts.signupTestUser(t, "bob@example.com")

	created := ts.createTestBookmark(t, alice.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	resp := ts.api.Get("/api/v1/bookmarks/"+created.ID, bearer(bob.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListBookmarks(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":         "https://example.com/one",
		"is_favorite": true,
	})
	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/two",
	})
	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://other.org/three",
	})

	resp := ts.api.Get("/api/v1/bookmarks", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[ListBookmarksResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, 3, envelope.Data.Total)
	assert.Len(t, envelope.Data.Bookmarks, 3)
	assert.Equal(t, 1, envelope.Data.Page)

	// Filter by favorite.
	resp = ts.api.Get("/api/v1/bookmarks?favorite=true", bearer(auth.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Data.Total)

	// Filter by domain.
	resp = ts.api.Get("/api/v1/bookmarks?domain=other.org", bearer(auth.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Data.Total)
}

func TestListBookmarks_TagFilter(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":  "https://example.com/one",
		"tags": []string{"go"},
	})
	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":  "https://example.com/two",
		"tags": []string{"gardening"},
	})
	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/three",
	})

	// Comma-separated names match bookmarks carrying any of them.
	resp := ts.api.Get("/api/v1/bookmarks?tags=go,gardening", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[ListBookmarksResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, 2, envelope.Data.Total)

	resp = ts.api.Get("/api/v1/bookmarks?tags=go", bearer(auth.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Data.Total)
}

func TestListBookmarks_Pagination(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	for _, path := range []string{"a", "b", "c"} {
		ts.createTestBookmark(t, auth.AccessToken, map[string]any{
			"url": "https://example.com/" + path,
		})
	}

	resp := ts.api.Get("/api/v1/bookmarks?page=2&limit=2", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[ListBookmarksResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, 3, envelope.Data.Total)
	assert.Len(t, envelope.Data.Bookmarks, 1)
	assert.Equal(t, 2, envelope.Data.Page)
	assert.Equal(t, 2, envelope.Data.TotalPages)
}

func TestUpdateBookmark(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":  "https://example.com/article",
		"tags": []string{"old"},
	})

	resp := ts.api.Put("/api/v1/bookmarks/"+created.ID, bearer(auth.AccessToken), map[string]any{
		"title":       "Renamed",
		"is_archived": true,
		"tags":        []string{"fresh"},
	})

	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, "Renamed", envelope.Data.Title)
	assert.True(t, envelope.Data.IsArchived)
	require.Len(t, envelope.Data.Tags, 1)
	assert.Equal(t, "fresh", envelope.Data.Tags[0].Name)
}

func TestUpdateBookmark_RetargetURLConflict(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/first",
	})
	second := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/second",
	})

	// Retargeting onto another live bookmark's URL is rejected.
	resp := ts.api.Put("/api/v1/bookmarks/"+second.ID, bearer(auth.AccessToken), map[string]any{
		"url": "https://www.example.com/first?utm_source=x",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	// A genuinely new URL goes through.
	resp = ts.api.Put("/api/v1/bookmarks/"+second.ID, bearer(auth.AccessToken), map[string]any{
		"url": "https://other.org/third",
	})
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, "https://other.org/third", envelope.Data.URL)
	assert.Equal(t, "other.org", envelope.Data.Domain)
}

func TestDeleteBookmark(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	resp := ts.api.Delete("/api/v1/bookmarks/"+created.ID, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/bookmarks/"+created.ID, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	// The URL can be bookmarked again after deletion.
	recreated := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})
	assert.NotEqual(t, created.ID, recreated.ID)
}

func TestRecordVisit(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	resp := ts.api.Post("/api/v1/bookmarks/"+created.ID+"/visit", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	assert.Equal(t, 1, envelope.Data.VisitCount)
	assert.NotNil(t, envelope.Data.LastVisitedAt)
}

func TestToggleFavorite(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})
	require.False(t, created.IsFavorite)

	resp := ts.api.Post("/api/v1/bookmarks/"+created.ID+"/favorite", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.True(t, envelope.Data.IsFavorite)

	// Toggling again flips it back.
	resp = ts.api.Post("/api/v1/bookmarks/"+created.ID+"/favorite", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.False(t, envelope.Data.IsFavorite)
}

func TestToggleArchive(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	resp := ts.api.Post("/api/v1/bookmarks/"+created.ID+"/archive", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.True(t, envelope.Data.IsArchived)

	resp = ts.api.Post("/api/v1/bookmarks/"+created.ID+"/archive", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.False(t, envelope.Data.IsArchived)
}

func TestCheckBookmarkURL(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	check := "/api/v1/bookmarks/check?url=" + url.QueryEscape("https://example.com/article")

	resp := ts.api.Get(check, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[CheckBookmarkURLResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.False(t, envelope.Data.Exists)
	assert.Nil(t, envelope.Data.Bookmark)

	created := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url": "https://example.com/article",
	})

	// A variant of the URL normalizes to the same bookmark.
	variant := "/api/v1/bookmarks/check?url=" + url.QueryEscape("https://www.example.com/article/?utm_source=x")
	resp = ts.api.Get(variant, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	err = json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.True(t, envelope.Data.Exists)
	require.NotNil(t, envelope.Data.Bookmark)
	assert.Equal(t, created.ID, envelope.Data.Bookmark.ID)
}
