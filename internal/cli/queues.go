package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yungbote/agentwriter-backend/internal/app"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
)

// QueuesCmd prints per-queue job counts.
func QueuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Show waiting, active, completed and failed jobs per queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.ModeAdmin)
			if err != nil {
				return err
			}
			defer closeApp(a)

			counts, err := a.Registry.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("read queue counts: %w", err)
			}
			printQueueCounts(counts)
			return nil
		},
	}
}

func printQueueCounts(counts map[string]queue.Counts) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tWAITING\tACTIVE\tCOMPLETED\tFAILED")
	for _, name := range names {
		c := counts[name]
		failed := fmt.Sprint(c.Failed)
		if c.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(c.Failed)
		}
		active := fmt.Sprint(c.Active)
		if c.Active > 0 {
			active = color.New(color.FgGreen).Sprint(c.Active)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", name, c.Waiting, active, c.Completed, failed)
	}
	_ = w.Flush()
}
