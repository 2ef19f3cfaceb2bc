package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/backend"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print content changes committed on the server",
		Long: strings.TrimSpace(`
Follow the server's change feed for the current workspace. Each line names
the operation, the containers whose content changed and the nodes involved.
In json format every notice is written as one line.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Fixture != "" {
				return errors.New("watch needs a server; it cannot follow a fixture")
			}
			url, err := backend.EventsURL(app.BaseURL, app.Workspace)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			seen := 0
			return backend.Watch(cmd.Context(), url, app.log.Logger, func(n domain.ChangeNotice) error {
				if app.Format == "json" {
					if err := enc.Encode(n); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "%s %s in %s: %s\n",
						n.At.Format("15:04:05"), n.Op, containers(n.Parents), strings.Join(n.Nodes, ","))
				}
				seen++
				if count > 0 && seen >= count {
					return backend.ErrStopWatching
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many notices (0 follows forever)")
	return cmd
}

// containers renders parent ids; the empty id stands for the library list.
func containers(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == "" {
			id = "libraries"
		}
		out[i] = id
	}
	return strings.Join(out, ",")
}
