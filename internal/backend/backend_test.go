package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcnelson/workspace-tree/internal/backend"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/requirement-browser/folders/10/content", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]domain.NodeDescriptor{
			{DomType: domain.DomRequirement, ResType: "requirements", ResID: "100", Name: "Login", Synchronized: true},
		})
	}))
	defer srv.Close()

	c := backend.New(time.Second, zerolog.Nop())
	descs, err := c.FetchContent(context.Background(), srv.URL+"/requirement-browser/folders/10/content")
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "100", descs[0].ResID)
	assert.True(t, descs[0].Synchronized)
}

func TestClient_CopySendsNodeIDs(t *testing.T) {
	var got domain.CopyNodesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := backend.New(time.Second, zerolog.Nop())
	require.NoError(t, c.Copy(context.Background(), srv.URL+"/requirement-browser/folders/10/content/new", []string{"1", "2"}))
	assert.Equal(t, []string{"1", "2"}, got.NodeIDs)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(domain.APIError{Code: http.StatusUnprocessableEntity, Message: "target does not accept these nodes"})
	}))
	defer srv.Close()

	c := backend.New(time.Second, zerolog.Nop())
	err := c.Move(context.Background(), srv.URL+"/requirement-browser/folders/10/content/1/0")

	var serr *backend.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnprocessableEntity, serr.StatusCode)
	assert.Equal(t, http.MethodPost, serr.Method)
	assert.Contains(t, serr.Error(), "target does not accept")
}

func TestClient_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := backend.New(time.Minute, zerolog.Nop())
	err := c.Delete(ctx, srv.URL+"/requirement-browser/content/1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileShim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	fixture := backend.Fixture{Content: map[string][]domain.NodeDescriptor{
		"/requirement-browser/libraries": {
			{DomType: domain.DomDrive, ResType: "requirement-libraries", ResID: "1", Name: "L1"},
		},
	}}
	data, err := json.Marshal(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	shim := backend.NewFileShim(path, zerolog.Nop())
	ctx := context.Background()

	roots, err := shim.FetchContent(ctx, "http://localhost:8080/requirement-browser/libraries")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "L1", roots[0].Name)

	empty, err := shim.FetchContent(ctx, "http://localhost:8080/requirement-browser/drives/1/content")
	require.NoError(t, err)
	assert.Empty(t, empty)

	before := shim.Revision()
	require.NoError(t, shim.Delete(ctx, "http://localhost:8080/campaign-browser/test-suites/7?remove_from_iter=true"))
	require.NoError(t, shim.Copy(ctx, "http://localhost:8080/requirement-browser/drives/1/content/new", []string{"5"}))
	assert.NotEqual(t, before, shim.Revision())

	ops, err := shim.Operations()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, http.MethodDelete, ops[0].Method)
	assert.Equal(t, "/campaign-browser/test-suites/7", ops[0].Path)
	assert.Equal(t, "remove_from_iter=true", ops[0].Query)
	assert.Equal(t, []string{"5"}, ops[1].NodeIDs)

	roots, err = shim.FetchContent(ctx, "http://localhost:8080/requirement-browser/libraries")
	require.NoError(t, err)
	assert.Len(t, roots, 1, "recording keeps the listings")
}

func TestFileShim_MissingFileIsEmpty(t *testing.T) {
	shim := backend.NewFileShim(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop())
	descs, err := shim.FetchContent(context.Background(), "http://x/requirement-browser/libraries")
	require.NoError(t, err)
	assert.Empty(t, descs)
}
