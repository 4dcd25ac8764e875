package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFolder creates a folder over the API and returns it.
func (ts *testServer) createTestFolder(t *testing.T, token string, body map[string]any) FolderResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/folders", bearer(token), body)
	require.Equal(t, http.StatusOK, resp.Code, "Create folder failed: %s", resp.Body.String())

	var envelope testEnvelope[FolderResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	return envelope.Data
}

func TestCreateFolder(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	work := ts.createTestFolder(t, auth.AccessToken, map[string]any{
		"name":  "Work",
		"color": "#ff0000",
	})

	assert.NotEmpty(t, work.ID)
	assert.Equal(t, "Work", work.Name)
	assert.Equal(t, "#ff0000", work.Color)
	assert.Nil(t, work.ParentID)
	assert.Equal(t, 0, work.Position)

	// Siblings get consecutive positions.
	personal := ts.createTestFolder(t, auth.AccessToken, map[string]any{
		"name": "Personal",
	})
	assert.Equal(t, 1, personal.Position)

	// A child starts its own sibling group at zero.
	child := ts.createTestFolder(t, auth.AccessToken, map[string]any{
		"name":      "Projects",
		"parent_id": work.ID,
	})
	require.NotNil(t, child.ParentID)
	assert.Equal(t, work.ID, *child.ParentID)
	assert.Equal(t, 0, child.Position)
}

func TestCreateFolder_UnknownParent(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/folders", bearer(auth.AccessToken), map[string]any{
		"name":      "Orphan",
		"parent_id": "fld-nope",
	})

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListFolders_Tree(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	work := ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Work"})
	ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Personal"})
	ts.createTestFolder(t, auth.AccessToken, map[string]any{
		"name":      "Projects",
		"parent_id": work.ID,
	})

	resp := ts.api.Get("/api/v1/folders", bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[ListFoldersResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	require.Len(t, envelope.Data.Folders, 2)
	assert.Equal(t, "Work", envelope.Data.Folders[0].Name)
	assert.Equal(t, "Personal", envelope.Data.Folders[1].Name)
	require.Len(t, envelope.Data.Folders[0].Children, 1)
	assert.Equal(t, "Projects", envelope.Data.Folders[0].Children[0].Name)
	assert.Empty(t, envelope.Data.Folders[1].Children)
}

func TestUpdateFolder_Move(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	work := ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Work"})
	personal := ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Personal"})

	resp := ts.api.Put("/api/v1/folders/"+personal.ID, bearer(auth.AccessToken), map[string]any{
		"parent_id": work.ID,
	})

	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[FolderResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)

	require.NotNil(t, envelope.Data.ParentID)
	assert.Equal(t, work.ID, *envelope.Data.ParentID)
	assert.Equal(t, 0, envelope.Data.Position)
}

func TestUpdateFolder_RejectsCycle(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	work := ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Work"})
	child := ts.createTestFolder(t, auth.AccessToken, map[string]any{
		"name":      "Projects",
		"parent_id": work.ID,
	})

	// A folder cannot move under its own descendant.
	resp := ts.api.Put("/api/v1/folders/"+work.ID, bearer(auth.AccessToken), map[string]any{
		"parent_id": child.ID,
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	// Or under itself.
	resp = ts.api.Put("/api/v1/folders/"+work.ID, bearer(auth.AccessToken), map[string]any{
		"parent_id": work.ID,
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDeleteFolder(t *testing.T) {
	ts := setupTestServer(t)
	auth := ts.signupTestUser(t, "alice@example.com")

	work := ts.createTestFolder(t, auth.AccessToken, map[string]any{"name": "Work"})

	// A bookmark filed in the folder survives its deletion.
	bookmark := ts.createTestBookmark(t, auth.AccessToken, map[string]any{
		"url":       "https://example.com/article",
		"folder_id": work.ID,
	})

	resp := ts.api.Delete("/api/v1/folders/"+work.ID, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/folders/"+work.ID, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/bookmarks/"+bookmark.ID, bearer(auth.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Nil(t, envelope.Data.FolderID)
}
