package tree_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	baseURL = "http://tree.test"
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var errBackendDown = errors.New("backend down")

// fakeBackend serves canned content listings and records every request.
type fakeBackend struct {
	mu      sync.Mutex
	content map[string][]domain.NodeDescriptor
	fails   map[string]error
	calls   map[string]int
	gate    chan struct{}

	moved   []string
	copied  []string
	deleted []string
	moveErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		content: make(map[string][]domain.NodeDescriptor),
		fails:   make(map[string]error),
		calls:   make(map[string]int),
	}
}

// FetchContent answers with the listing as it stood when the request
// arrived, even if the gate holds the response back.
func (b *fakeBackend) FetchContent(ctx context.Context, url string) ([]domain.NodeDescriptor, error) {
	b.mu.Lock()
	b.calls[url]++
	gate := b.gate
	content, err := slices.Clone(b.content[url]), b.fails[url]
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (b *fakeBackend) Move(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moved = append(b.moved, url)
	return b.moveErr
}

func (b *fakeBackend) Copy(ctx context.Context, url string, nodeIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.copied = append(b.copied, url)
	return nil
}

func (b *fakeBackend) Delete(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, url)
	return nil
}

func (b *fakeBackend) setContent(url string, descs ...domain.NodeDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content[url] = descs
}

func (b *fakeBackend) moveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.moved)
}

func (b *fakeBackend) callCount(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[url]
}

func desc(d domain.DomType, resType, resID, name string) domain.NodeDescriptor {
	return domain.NodeDescriptor{
		DomType:      d,
		ResType:      resType,
		ResID:        resID,
		Name:         name,
		Capabilities: domain.AllCapabilities(),
	}
}

func syncedRequirement(resID, name string) domain.NodeDescriptor {
	d := desc(domain.DomRequirement, "requirements", resID, name)
	d.Synchronized = true
	return d
}

// fixture is a requirement workspace with two libraries:
//
//	L1 (drive 1)
//	├── F1 (folder 10)
//	│   └── R1 (requirement 100, synchronized)
//	│       └── R2 (requirement 101, synchronized)
//	└── F2 (folder 11, empty)
//	L2 (drive 2)
//	├── F3 (folder 20, empty)
//	└── C1 (campaign 30)
type fixture struct {
	engine  *tree.Engine
	backend *fakeBackend
	bus     *event.Bus
	nodes   map[string]*tree.Node
}

func seedBackend(b *fakeBackend) {
	lib1 := desc(domain.DomDrive, "requirement-libraries", "1", "L1")
	lib1.EnabledWizards = "jira,redmine"
	b.content[baseURL+"/requirement-browser/libraries"] = []domain.NodeDescriptor{
		lib1,
		desc(domain.DomDrive, "requirement-libraries", "2", "L2"),
	}
	b.content[baseURL+"/requirement-browser/drives/1/content"] = []domain.NodeDescriptor{
		desc(domain.DomFolder, "requirement-folders", "10", "F1"),
		desc(domain.DomFolder, "requirement-folders", "11", "F2"),
	}
	b.content[baseURL+"/requirement-browser/drives/2/content"] = []domain.NodeDescriptor{
		desc(domain.DomFolder, "requirement-folders", "20", "F3"),
		desc(domain.DomCampaign, "campaigns", "30", "C1"),
	}
	b.content[baseURL+"/requirement-browser/folders/10/content"] = []domain.NodeDescriptor{
		syncedRequirement("100", "R1"),
	}
	b.content[baseURL+"/requirement-browser/requirements/100/content"] = []domain.NodeDescriptor{
		syncedRequirement("101", "R2"),
	}
}

// newFixture loads every node of the fixture except the empty folders.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newFakeBackend()
	seedBackend(b)
	bus := event.NewBus(zerolog.Nop())
	e := tree.NewEngine(domain.DefaultTypeTable(), baseURL, b, bus, zerolog.Nop())
	f := &fixture{engine: e, backend: b, bus: bus, nodes: make(map[string]*tree.Node)}

	ctx := context.Background()
	roots, err := e.LoadRoots(ctx, "requirement")
	require.NoError(t, err)
	f.collect(roots...)
	for _, name := range []string{"L1", "L2", "F1", "R1"} {
		children, err := e.Load(ctx, f.nodes[name])
		require.NoError(t, err)
		f.collect(children...)
	}
	return f
}

func (f *fixture) collect(nodes ...*tree.Node) {
	for _, n := range nodes {
		f.nodes[n.Name()] = n
	}
}

func (f *fixture) node(name string) *tree.Node {
	return f.nodes[name]
}

func (f *fixture) names(nodes []*tree.Node) []string {
	return tree.Collect(nodes, (*tree.Node).Name)
}
