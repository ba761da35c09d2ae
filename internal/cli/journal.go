package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"

	"workspace-merge/internal/app"
	"workspace-merge/internal/types"
)

type journalOptions struct {
	Limit int
}

func newJournalCommand() *cobra.Command {
	opts := journalOptions{}
	cmd := &cobra.Command{
		Use:   "journal [run-id]",
		Short: "Show recorded merge runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, opts, args)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of runs to list")
	return cmd
}

func runJournal(cmd *cobra.Command, opts journalOptions, args []string) error {
	req := app.JournalRequest{
		JournalDB: resolveString(cmd, "", "journal_db", ""),
		Limit:     resolveInt(cmd, opts.Limit, "journal_limit", "limit"),
	}
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid run id: " + args[0])
		}
		req.RunID = id
	}
	result, err := newAppService().Journal(req)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), result.Runs, req.RunID > 0)
	return nil
}

func printRuns(w io.Writer, runs []types.JournalRun, withFiles bool) {
	for _, run := range runs {
		fmt.Fprintf(w, "#%d %s %-13s errors=%d %dms %s\n",
			run.ID, run.Timestamp.Local().Format("2006-01-02 15:04:05"), run.Direction, run.Errors, run.DurationMs, run.Workspace)
		if !withFiles {
			continue
		}
		for _, file := range run.Files {
			fmt.Fprintf(w, "  %-9s %-10s %s\n", file.Status, file.Format, file.Path)
			if file.Message != "" {
				fmt.Fprintf(w, "            %s\n", file.Message)
			}
		}
	}
}
