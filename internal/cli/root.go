// Package cli implements treectl, a command-line client for the workspace
// tree. It drives the same tree engine a browser front end would.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bcnelson/workspace-tree/internal/backend"
	"github.com/bcnelson/workspace-tree/internal/config"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/logger"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/spf13/cobra"
)

// App holds the persistent flags and the engine built from them.
type App struct {
	BaseURL   string
	Fixture   string
	Workspace string
	TypeTable string
	Timeout   time.Duration
	Format    string
	LogLevel  string

	engine *tree.Engine
	shim   *backend.FileShim
	log    *logger.Log
}

// NewRootCmd builds the treectl command tree. Flag defaults come from the
// same environment variables the server reads.
func NewRootCmd() *cobra.Command {
	app := &App{}
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	cmd := &cobra.Command{
		Use:          "treectl",
		Short:        "Browse and rearrange workspace trees",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # List the requirement libraries
  treectl roots

  # Show two levels below a library
  treectl tree Platform --depth 2

  # Move a requirement into another folder
  treectl mv Platform/Authentication/Login Platform/Billing

  # Work against a recorded fixture instead of a server
  treectl --fixture fixture.json roots

  # Follow changes other clients make to the campaign workspace
  treectl -w campaign watch
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd.ErrOrStderr())
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			return app.log.Close()
		}
		return nil
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.BaseURL, "base-url", cfg.Tree.BaseURL, "Base URL of the tree backend")
	flags.StringVar(&app.Fixture, "fixture", cfg.Tree.Fixture, "JSON fixture served instead of the backend; mutations are recorded into it")
	flags.StringVarP(&app.Workspace, "workspace", "w", "requirement", "Workspace to browse")
	flags.StringVar(&app.TypeTable, "type-table", cfg.Tree.TypeTable, "JSON file overriding the built-in type table")
	flags.DurationVar(&app.Timeout, "timeout", orDefault(cfg.Tree.HTTPTimeout, 15*time.Second), "Backend request timeout")
	flags.StringVar(&app.Format, "format", "text", "Output format (text|json)")
	flags.StringVar(&app.LogLevel, "log-level", "warn", "Log level written to stderr")

	cmd.AddCommand(newRootsCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newCopyCmd(app))
	cmd.AddCommand(newRemoveCmd(app))
	cmd.AddCommand(newWatchCmd(app))

	return cmd
}

// Execute runs treectl with os.Args.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (app *App) init(stderr io.Writer) error {
	switch app.Format {
	case "text", "json":
	default:
		return fmt.Errorf("--format must be text or json, got %q", app.Format)
	}

	log, err := logger.New(config.LogConfig{Level: app.LogLevel, Format: "console"}, stderr)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	app.log = log

	table, err := domain.LoadTypeTable(app.TypeTable)
	if err != nil {
		return err
	}

	var be tree.Backend
	if app.Fixture != "" {
		app.shim = backend.NewFileShim(app.Fixture, log.Logger)
		be = app.shim
	} else {
		be = backend.New(app.Timeout, log.Logger)
	}
	app.engine = tree.NewEngine(table, app.BaseURL, be, event.NewBus(log.Logger), log.Logger)
	return nil
}

// resolve walks a "/"-separated path of node names from the workspace roots,
// loading each level on the way.
func (app *App) resolve(ctx context.Context, path string) (*tree.Node, error) {
	names := strings.Split(strings.Trim(path, "/"), "/")
	level, err := app.roots(ctx)
	if err != nil {
		return nil, err
	}

	var cur *tree.Node
	for i, name := range names {
		cur = nil
		for _, n := range level {
			if n.Name() == name {
				cur = n
				break
			}
		}
		if cur == nil {
			return nil, fmt.Errorf("%w: %q in %q", domain.ErrNotFound, name, path)
		}
		if i < len(names)-1 {
			if level, err = app.engine.Load(ctx, cur); err != nil {
				return nil, err
			}
		}
	}
	return cur, nil
}

func (app *App) resolveAll(ctx context.Context, paths []string) ([]*tree.Node, error) {
	nodes := make([]*tree.Node, 0, len(paths))
	for _, p := range paths {
		n, err := app.resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (app *App) roots(ctx context.Context) ([]*tree.Node, error) {
	if roots := app.engine.Tree.Roots(); len(roots) > 0 {
		return roots, nil
	}
	return app.engine.LoadRoots(ctx, app.Workspace)
}

// reportRevision tells fixture users which revision their mutation produced,
// so a later run can be matched against it.
func (app *App) reportRevision(w io.Writer) {
	if app.shim == nil {
		return
	}
	fmt.Fprintf(w, "fixture revision %s\n", app.shim.Revision()[:12])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
