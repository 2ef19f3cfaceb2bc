package api

import (
	"net/http"
	"slices"

	"github.com/bcnelson/workspace-tree/internal/api/handler"
	"github.com/bcnelson/workspace-tree/internal/api/middleware"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(svc *service.TreeService, bus *event.Bus, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.ContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Workspace browsers: /{workspace}-browser/...
	nodeHandler := handler.NewNodeHandler(svc, logger)
	eventHandler := handler.NewEventHandler(bus, logger)
	table := svc.Table()
	r.Route("/{browser}", func(r chi.Router) {
		r.Get("/libraries", nodeHandler.Libraries)
		if bus != nil {
			r.Get("/events", eventHandler.Stream)
		}

		r.Get("/{semiType}/{id}/content", nodeHandler.Content)
		for _, suffix := range suffixes(table, func(rule domain.TypeRule) string { return rule.MoveSuffix }) {
			r.Post("/{semiType}/{id}"+suffix+"/{nodeIds}/{position}", nodeHandler.Move(suffix))
		}
		for _, suffix := range suffixes(table, func(rule domain.TypeRule) string { return rule.CopySuffix }) {
			r.Post("/{semiType}/{id}"+suffix, nodeHandler.Copy(suffix))
		}

		for _, suffix := range suffixes(table, func(rule domain.TypeRule) string { return rule.DeleteSuffix }) {
			r.Delete(suffix+"/{ids}", nodeHandler.Delete(suffix))
		}
	})

	return r
}

// suffixes returns the distinct non-empty suffixes the type table declares
// for one operation, sorted.
func suffixes(table domain.TypeTable, pick func(domain.TypeRule) string) []string {
	var out []string
	for _, rule := range table {
		if s := pick(rule); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
