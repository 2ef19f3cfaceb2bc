package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrStopWatching ends Watch without error when returned from the callback.
var ErrStopWatching = errors.New("stop watching")

// EventsURL derives the change feed address of a workspace from the HTTP
// base URL.
func EventsURL(baseURL, workspace string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	u.Path += "/" + workspace + "-browser/events"
	return u.String(), nil
}

// Watch streams change notices from a server's events endpoint to fn until
// ctx is done, the server hangs up or fn returns an error.
func Watch(ctx context.Context, eventsURL string, logger zerolog.Logger, fn func(domain.ChangeNotice) error) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, eventsURL, nil)
	if err != nil {
		if resp != nil {
			return &StatusError{Method: http.MethodGet, URL: eventsURL, StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("dialing %s: %w", eventsURL, err)
	}
	defer conn.Close()
	logger.Debug().Str("url", eventsURL).Msg("watching changes")

	// ReadJSON does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var n domain.ChangeNotice
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading change notice: %w", err)
		}
		if err := fn(n); err != nil {
			if errors.Is(err, ErrStopWatching) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			return err
		}
	}
}
