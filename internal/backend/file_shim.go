package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/rs/zerolog"
)

// Fixture is the on-disk format read by FileShim. Content listings are keyed
// by URL path, e.g. "/requirement-browser/drives/1/content".
type Fixture struct {
	Content    map[string][]domain.NodeDescriptor `json:"content"`
	Operations []Operation                        `json:"operations,omitempty"`
}

// Operation is a mutating request recorded by the shim.
type Operation struct {
	Method  string    `json:"method"`
	Path    string    `json:"path"`
	Query   string    `json:"query,omitempty"`
	NodeIDs []string  `json:"nodeIds,omitempty"`
	At      time.Time `json:"at"`
}

// FileShim serves listings from a JSON fixture and appends every move, copy
// and delete to the same file instead of sending it anywhere.
type FileShim struct {
	filePath string
	mu       sync.Mutex
	revision string
	logger   zerolog.Logger
}

var _ tree.Backend = (*FileShim)(nil)

func NewFileShim(filePath string, logger zerolog.Logger) *FileShim {
	return &FileShim{
		filePath: filePath,
		revision: revisionOf(nil),
		logger:   logger,
	}
}

// Revision changes every time the shim writes the fixture.
func (f *FileShim) Revision() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revision
}

func (f *FileShim) FetchContent(ctx context.Context, rawURL string) ([]domain.NodeDescriptor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fx, err := f.read()
	if err != nil {
		return nil, err
	}
	// Paths without an entry list nothing.
	return fx.Content[u.Path], nil
}

func (f *FileShim) Move(ctx context.Context, rawURL string) error {
	return f.record(http.MethodPost, rawURL, nil)
}

func (f *FileShim) Copy(ctx context.Context, rawURL string, nodeIDs []string) error {
	return f.record(http.MethodPost, rawURL, nodeIDs)
}

func (f *FileShim) Delete(ctx context.Context, rawURL string) error {
	return f.record(http.MethodDelete, rawURL, nil)
}

// Operations returns the requests recorded so far.
func (f *FileShim) Operations() ([]Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fx, err := f.read()
	if err != nil {
		return nil, err
	}
	return fx.Operations, nil
}

func (f *FileShim) record(method, rawURL string, nodeIDs []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fx, err := f.read()
	if err != nil {
		return err
	}
	fx.Operations = append(fx.Operations, Operation{
		Method:  method,
		Path:    u.Path,
		Query:   u.RawQuery,
		NodeIDs: nodeIDs,
		At:      time.Now().UTC(),
	})

	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling fixture: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing fixture file: %w", err)
	}
	f.revision = revisionOf(data)

	f.logger.Info().Str("method", method).Str("path", u.Path).Str("revision", f.revision[:12]).Msg("operation recorded")
	return nil
}

// read loads the fixture; a missing file is an empty fixture.
func (f *FileShim) read() (*Fixture, error) {
	fx := &Fixture{}
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fx, nil
		}
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	if err := json.Unmarshal(data, fx); err != nil {
		return nil, fmt.Errorf("parsing fixture file: %w", err)
	}
	return fx, nil
}

func revisionOf(data []byte) string {
	if data == nil {
		data = []byte(time.Now().String())
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
