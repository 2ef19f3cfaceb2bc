package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/workspace-tree/internal/api"
	"github.com/bcnelson/workspace-tree/internal/backend"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/bcnelson/workspace-tree/internal/storage/memory"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer serves the browser endpoints from an in-memory store holding:
//
//	L1 (1) > F1 (10) > R1 (100) > R2 (101), L1 > F2 (11)
//	L2 (2) > F3 (20)
//	CL (3) > C1 (30) > I1 (31) > S1 (32)
type testServer struct {
	srv   *httptest.Server
	store *memory.Store
	svc   *service.TreeService
	bus   *event.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	bus := event.NewBus(zerolog.Nop())
	svc := service.NewTreeService(store, domain.DefaultTypeTable(), bus, zerolog.Nop())
	ctx := context.Background()

	add := func(parent, id string, d domain.DomType, resType, name string, synced bool) {
		t.Helper()
		_, err := svc.CreateNode(ctx, parent, &domain.Entity{
			ID:           id,
			DomType:      d,
			ResType:      resType,
			Name:         name,
			Synchronized: synced,
			Permissions:  domain.AllCapabilities().String(),
		})
		require.NoError(t, err)
	}
	add("", "1", domain.DomDrive, "requirement-libraries", "L1", false)
	add("1", "10", domain.DomFolder, "requirement-folders", "F1", false)
	add("10", "100", domain.DomRequirement, "requirements", "R1", true)
	add("100", "101", domain.DomRequirement, "requirements", "R2", true)
	add("1", "11", domain.DomFolder, "requirement-folders", "F2", false)
	add("", "2", domain.DomDrive, "requirement-libraries", "L2", false)
	add("2", "20", domain.DomFolder, "requirement-folders", "F3", false)
	add("", "3", domain.DomDrive, "campaign-libraries", "CL", false)
	add("3", "30", domain.DomCampaign, "campaigns", "C1", false)
	add("30", "31", domain.DomIteration, "iterations", "I1", false)
	add("31", "32", domain.DomTestSuite, "test-suites", "S1", false)

	srv := httptest.NewServer(api.NewRouter(svc, bus, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store, svc: svc, bus: bus}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// engine returns a client tree talking to ts over HTTP, with the
// requirement roots loaded.
func (ts *testServer) engine(t *testing.T) *tree.Engine {
	t.Helper()
	client := backend.New(time.Second, zerolog.Nop())
	e := tree.NewEngine(domain.DefaultTypeTable(), ts.srv.URL, client, event.NewBus(zerolog.Nop()), zerolog.Nop())
	_, err := e.LoadRoots(context.Background(), "requirement")
	require.NoError(t, err)
	return e
}

// walk loads each named node in turn, starting from the roots, and returns
// the last one.
func walk(t *testing.T, e *tree.Engine, names ...string) *tree.Node {
	t.Helper()
	level := e.Tree.Roots()
	var cur *tree.Node
	for _, name := range names {
		cur = nil
		for _, n := range level {
			if n.Name() == name {
				cur = n
			}
		}
		require.NotNil(t, cur, "no node named %s", name)
		children, err := e.Load(context.Background(), cur)
		require.NoError(t, err)
		level = children
	}
	return cur
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestLibrariesAndContent(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/requirement-browser/libraries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	libs := decode[[]domain.NodeDescriptor](t, resp)
	require.Len(t, libs, 2)
	assert.Equal(t, "L1", libs[0].Name)

	resp = ts.request(t, http.MethodGet, "/requirement-browser/folders/10/content", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content := decode[[]domain.NodeDescriptor](t, resp)
	require.Len(t, content, 1)
	assert.Equal(t, "100", content[0].ResID)

	resp = ts.request(t, http.MethodGet, "/campaign-browser/folders/10/content", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/requirement/libraries", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"negative position", http.MethodPost, "/requirement-browser/folders/11/content/100/-2", nil, http.StatusBadRequest},
		{"duplicate ids", http.MethodPost, "/requirement-browser/folders/11/content/100,100/0", nil, http.StatusBadRequest},
		{"empty copy", http.MethodPost, "/requirement-browser/folders/11/content/new", domain.CopyNodesRequest{}, http.StatusBadRequest},
		{"bad flag", http.MethodDelete, "/campaign-browser/test-suites/32?remove_from_iter=maybe", nil, http.StatusBadRequest},
		{"not accepted", http.MethodPost, "/requirement-browser/requirements/100/content/11/0", nil, http.StatusUnprocessableEntity},
		{"unsupported copy", http.MethodPost, "/requirement-browser/folders/10/iterations/new", domain.CopyNodesRequest{NodeIDs: []string{"100"}}, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.request(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestDeleteTestSuiteFromIteration(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodDelete, "/campaign-browser/test-suites/32?remove_from_iter=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[domain.DeleteResult](t, resp)
	assert.Equal(t, []string{"32"}, res.Removed)
	assert.True(t, res.RemovedFromIteration)
}

func TestEngine_MoveAcrossLibraries(t *testing.T) {
	ts := newTestServer(t)
	e := ts.engine(t)
	ctx := context.Background()

	r1 := walk(t, e, "L1", "F1", "R1")
	f3 := walk(t, e, "L2", "F3")

	mv, err := e.Move(ctx, []*tree.Node{r1}, f3)
	require.NoError(t, err)
	assert.False(t, mv.Deferred)
	assert.False(t, r1.Synchronized())

	stored, err := ts.store.GetNode(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "20", *stored.ParentID)
	assert.Equal(t, "2", stored.LibraryID)
	assert.False(t, stored.Synchronized)

	child, err := ts.store.GetNode(ctx, "101")
	require.NoError(t, err)
	assert.False(t, child.Synchronized)
}

func TestEngine_MixedLibraryMoveAgreesWithServer(t *testing.T) {
	ts := newTestServer(t)
	e := ts.engine(t)
	ctx := context.Background()

	r1 := walk(t, e, "L1", "F1", "R1")
	f3 := walk(t, e, "L2", "F3")
	f2 := walk(t, e, "L1", "F2")

	_, err := e.Move(ctx, []*tree.Node{r1, f3}, f2)
	require.NoError(t, err)
	assert.False(t, r1.Synchronized())

	stored, err := ts.store.GetNode(ctx, "100")
	require.NoError(t, err)
	assert.False(t, stored.Synchronized)

	children, err := e.Refresh(ctx, f2)
	require.NoError(t, err)
	require.Equal(t, []string{"R1", "F3"}, tree.Collect(children, (*tree.Node).Name))
	assert.False(t, children[0].Synchronized())
}

func TestEngine_MoveRevertsWhenServerRefuses(t *testing.T) {
	ts := newTestServer(t)
	e := ts.engine(t)
	ctx := context.Background()

	r1 := walk(t, e, "L1", "F1", "R1")
	f2 := walk(t, e, "L1", "F2")
	require.NoError(t, ts.store.DeleteNode(ctx, "11"))

	_, err := e.Move(ctx, []*tree.Node{r1}, f2)
	var serr *backend.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)

	assert.Equal(t, "F1", e.Tree.Parent(r1).Name())
	assert.True(t, r1.Synchronized())
}

func TestEngine_CopyShowsNewNodes(t *testing.T) {
	ts := newTestServer(t)
	e := ts.engine(t)
	ctx := context.Background()

	r1 := walk(t, e, "L1", "F1", "R1")
	f1 := e.Tree.Parent(r1)

	children, err := e.Copy(ctx, []*tree.Node{r1}, f1)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R1-Copy"}, tree.Collect(children, (*tree.Node).Name))
	assert.Equal(t, "100", children[0].ResID())
	assert.NotEqual(t, "100", children[1].ResID())
	assert.False(t, children[1].Synchronized())
}

func TestEngine_Delete(t *testing.T) {
	ts := newTestServer(t)
	e := ts.engine(t)
	ctx := context.Background()

	f2 := walk(t, e, "L1", "F2")
	require.NoError(t, e.Delete(ctx, []*tree.Node{f2}, tree.DeleteOptions{}))
	assert.False(t, e.Tree.Contains(f2))

	_, err := ts.store.GetNode(ctx, "11")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (ts *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventStream_ForwardsWorkspaceChanges(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/requirement-browser/events")

	// A campaign change must not reach the requirement subscriber.
	resp := ts.request(t, http.MethodDelete, "/campaign-browser/test-suites/32", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.request(t, http.MethodPost, "/requirement-browser/folders/20/content/100/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n domain.ChangeNotice
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "requirement", n.Workspace)
	assert.Equal(t, domain.ChangeMove, n.Op)
	assert.Equal(t, []string{"10", "20"}, n.Parents)
	assert.Equal(t, []string{"100"}, n.Nodes)
	assert.False(t, n.At.IsZero())
}

func TestEventStream_RejectsUnknownBrowser(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.srv.URL, "http")+"/requirement/events", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
