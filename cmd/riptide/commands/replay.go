package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
	"github.com/foofork/riptidecrawler/go/pkg/journal"
)

var (
	replayOut    outputFlags
	replayDelete bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <dir> [run-id]",
	Short: "List or replay recorded runs",
	Long: `Without a run id, list the runs recorded in a journal directory.
With a run id, print its events exactly as they were received.

Examples:
  riptide replay ~/.riptide/riptide/journal
  riptide replay ~/.riptide/riptide/journal 0192f4c1-... --jq '.payload.result.url // empty'
  riptide replay ~/.riptide/riptide/journal 0192f4c1-... --delete`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("journal directory: %w", err)
		}
		j, err := journal.Open(args[0])
		if err != nil {
			return err
		}
		defer j.Close()

		ctx := cmd.Context()
		if len(args) == 1 {
			return cli.NewResultPrinter(os.Stdout, replayOut.json).Runs(j.Runs(ctx))
		}
		runID := args[1]
		if replayDelete {
			if err := j.Delete(ctx, runID); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Deleted run %s\n", runID)
			return nil
		}
		printer, err := replayOut.printer()
		if err != nil {
			return err
		}
		return printStream(ctx, j.Replay(ctx, runID), printer, replayOut.quiet)
	},
}

func init() {
	replayOut.register(replayCmd, false)
	replayCmd.Flags().BoolVar(&replayDelete, "delete", false, "delete the run instead of printing it")
}
