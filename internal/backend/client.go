// Package backend talks to the workspace REST service on behalf of the tree
// engine.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/rs/zerolog"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Client is the HTTP implementation of tree.Backend.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

var _ tree.Backend = (*Client)(nil)

// New creates a client whose requests give up after timeout.
func New(timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchContent GETs a content or libraries listing.
func (c *Client) FetchContent(ctx context.Context, url string) ([]domain.NodeDescriptor, error) {
	var descs []domain.NodeDescriptor
	if err := c.do(ctx, http.MethodGet, url, nil, &descs); err != nil {
		return nil, err
	}
	return descs, nil
}

// Move POSTs a move address; the node ids and position are part of the URL.
func (c *Client) Move(ctx context.Context, url string) error {
	return c.do(ctx, http.MethodPost, url, nil, nil)
}

// Copy POSTs the ids of the nodes to copy.
func (c *Client) Copy(ctx context.Context, url string, nodeIDs []string) error {
	return c.do(ctx, http.MethodPost, url, domain.CopyNodesRequest{NodeIDs: nodeIDs}, nil)
}

func (c *Client) Delete(ctx context.Context, url string) error {
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode}
		var apiErr domain.APIError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil {
			serr.Message = apiErr.Message
		}
		return serr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, url, err)
	}
	return nil
}
