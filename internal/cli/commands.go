package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/spf13/cobra"
)

// nodeView is the JSON shape of one node in command output.
type nodeView struct {
	Name         string         `json:"name"`
	Reference    string         `json:"reference,omitempty"`
	DomType      domain.DomType `json:"domType"`
	ResType      string         `json:"resType"`
	ResID        string         `json:"resId"`
	Synchronized bool           `json:"synchronized,omitempty"`
	Expandable   bool           `json:"expandable"`
	Children     []nodeView     `json:"children,omitempty"`
}

func viewOf(n *tree.Node) nodeView {
	return nodeView{
		Name:         n.Name(),
		Reference:    n.Reference(),
		DomType:      n.DomType(),
		ResType:      n.ResType(),
		ResID:        n.ResID(),
		Synchronized: n.Synchronized(),
		Expandable:   n.Expandable(),
	}
}

func newRootsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List the libraries of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := app.roots(cmd.Context())
			if err != nil {
				return err
			}
			views := tree.Collect(roots, viewOf)
			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			for _, n := range roots {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s\n", n.Label(), n.ResType(), n.ResID())
			}
			return nil
		},
	}
}

func newTreeCmd(app *App) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print the tree below a node, loading it on the way",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var top []*tree.Node
			if len(args) == 0 {
				roots, err := app.roots(ctx)
				if err != nil {
					return err
				}
				top = roots
			} else {
				n, err := app.resolve(ctx, args[0])
				if err != nil {
					return err
				}
				top = []*tree.Node{n}
			}

			var expand func(n *tree.Node, level int) (nodeView, error)
			expand = func(n *tree.Node, level int) (nodeView, error) {
				if level >= depth || !app.engine.Tree.CanContainNodes(n) {
					return viewOf(n), nil
				}
				children, err := app.engine.Load(ctx, n)
				if err != nil {
					return nodeView{}, err
				}
				v := viewOf(n)
				for _, ch := range children {
					cv, err := expand(ch, level+1)
					if err != nil {
						return v, err
					}
					v.Children = append(v.Children, cv)
				}
				return v, nil
			}

			views := make([]nodeView, 0, len(top))
			for _, n := range top {
				v, err := expand(n, 0)
				if err != nil {
					return err
				}
				views = append(views, v)
			}
			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			for _, v := range views {
				printTree(cmd.OutOrStdout(), v, 0)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "Levels to load below each node")
	return cmd
}

func printTree(w io.Writer, v nodeView, indent int) {
	label := v.Name
	if v.Reference != "" {
		label = v.Reference + " - " + v.Name
	}
	marker := " "
	if v.Expandable {
		marker = "+"
	}
	fmt.Fprintf(w, "%s%s %s [%s]\n", strings.Repeat("  ", indent), marker, label, v.DomType)
	for _, ch := range v.Children {
		printTree(w, ch, indent+1)
	}
}

// showView adds the capability model and addresses of one node.
type showView struct {
	nodeView
	Workspace    string            `json:"workspace"`
	Capabilities string            `json:"capabilities"`
	Library      string            `json:"library,omitempty"`
	Wizards      map[string]bool   `json:"wizards,omitempty"`
	URLs         map[string]string `json:"urls"`
}

func newShowCmd(app *App) *cobra.Command {
	var wizards []string
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show a node's identity, capabilities and REST addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e := app.engine
			id := n.Identity()

			v := showView{
				nodeView:     viewOf(n),
				Workspace:    n.Workspace(),
				Capabilities: n.Capabilities().String(),
				URLs: map[string]string{
					"resource": e.Resolver.ResourceURL(id),
					"browser":  e.Resolver.BrowserURL(id),
				},
			}
			if lib := e.Tree.OwningLibrary(n); lib != nil {
				v.Library = lib.Name()
			}
			if e.Tree.CanContainNodes(n) {
				v.URLs["content"] = e.Resolver.ContentURL(id)
			}
			if e.Resolver.SupportsCopy(n.DomType()) {
				v.URLs["copy"] = e.Resolver.CopyURL(id)
			}
			if e.Resolver.SupportsMove(n.DomType()) {
				v.URLs["move"] = e.Resolver.MoveURL(id, []string{"{ids}"}, -1)
			}
			if e.Resolver.SupportsDelete(n.DomType()) && !e.Tree.Table().IsRoot(n.DomType()) {
				v.URLs["delete"] = e.Resolver.DeleteURL(tree.DeleteOptions{}, id)
			}
			if len(wizards) > 0 {
				v.Wizards = make(map[string]bool, len(wizards))
				for _, w := range wizards {
					v.Wizards[w] = e.Tree.IsWorkspaceWizardEnabled(n, w)
				}
			}

			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s] %s/%s\n", n.Label(), n.DomType(), n.ResType(), n.ResID())
			fmt.Fprintf(out, "workspace:     %s\n", v.Workspace)
			fmt.Fprintf(out, "library:       %s\n", v.Library)
			fmt.Fprintf(out, "capabilities:  %s\n", v.Capabilities)
			fmt.Fprintf(out, "synchronized:  %t\n", v.Synchronized)
			for _, w := range wizards {
				fmt.Fprintf(out, "wizard %s: %t\n", w, v.Wizards[w])
			}
			for _, k := range []string{"resource", "browser", "content", "copy", "move", "delete"} {
				if u, ok := v.URLs[k]; ok {
					fmt.Fprintf(out, "%-14s %s\n", k+":", u)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&wizards, "wizard", nil, "Report whether these wizards are enabled for the node's library")
	return cmd
}

func newMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <path>... <target>",
		Short: "Move nodes under a new parent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := app.resolve(ctx, args[len(args)-1])
			if err != nil {
				return err
			}
			nodes, err := app.resolveAll(ctx, args[:len(args)-1])
			if err != nil {
				return err
			}
			if _, err := app.engine.Load(ctx, target); err != nil {
				return err
			}

			mv, err := app.engine.Move(ctx, nodes, target)
			if err != nil {
				return err
			}
			app.reportRevision(cmd.ErrOrStderr())
			cleared := tree.Collect(mv.SynchronizedCleared, (*tree.Node).Name)
			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"moved":               tree.Collect(mv.Nodes, (*tree.Node).Name),
					"target":              target.Name(),
					"synchronizedCleared": cleared,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d node(s) into %s\n", len(mv.Nodes), target.Label())
			if len(cleared) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no longer synchronized: %s\n", strings.Join(cleared, ", "))
			}
			return nil
		},
	}
}

func newCopyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <path>... <target>",
		Short: "Copy nodes under a parent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := app.resolve(ctx, args[len(args)-1])
			if err != nil {
				return err
			}
			nodes, err := app.resolveAll(ctx, args[:len(args)-1])
			if err != nil {
				return err
			}

			children, err := app.engine.Copy(ctx, nodes, target)
			if err != nil {
				return err
			}
			app.reportRevision(cmd.ErrOrStderr())
			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), tree.Collect(children, viewOf))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d node(s) into %s, now holding:\n", len(nodes), target.Label())
			for _, ch := range children {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ch.Label())
			}
			return nil
		},
	}
}

func newRemoveCmd(app *App) *cobra.Command {
	var opts tree.DeleteOptions
	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete nodes of one type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nodes, err := app.resolveAll(ctx, args)
			if err != nil {
				return err
			}
			if err := app.engine.Delete(ctx, nodes, opts); err != nil {
				return err
			}
			app.reportRevision(cmd.ErrOrStderr())
			names := tree.Collect(nodes, (*tree.Node).Name)
			if app.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"removed": names})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", strings.Join(names, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.RemoveFromIteration, "remove-from-iter", false, "Also detach test suites from their iteration's test plan")
	return cmd
}
