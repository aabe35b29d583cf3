package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/emcshop-dev/emcshop/internal/journal"
	"github.com/emcshop-dev/emcshop/internal/model"
	"github.com/emcshop-dev/emcshop/internal/report"
	"github.com/emcshop-dev/emcshop/internal/runlog"
)

func newSummaryCommand() *cobra.Command {
	var dir, month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize stored rupee history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd.OutOrStdout(), dir, month)
		},
	}

	cmd.Flags().StringVar(&dir, "repo", ".", "history repo directory")
	cmd.Flags().StringVar(&month, "month", "", "only summarize this month (YYYY-MM)")

	return cmd
}

func runSummary(out io.Writer, dir, month string) error {
	r, err := openRepo(dir)
	if err != nil {
		return err
	}
	store := journal.NewService(r.historyDir())

	var records []model.Record
	if month == "" {
		records, err = store.ReadAll()
	} else {
		m, perr := time.Parse("2006-01", month)
		if perr != nil {
			return fmt.Errorf("invalid month %q: expected YYYY-MM", month)
		}
		records, err = store.ReadMonth(m.Year(), m.Month())
	}
	if err != nil {
		return err
	}

	if err := report.Write(out, report.Summarize(records)); err != nil {
		return err
	}

	if problems := journal.ValidateRecords(records); len(problems) > 0 {
		fmt.Fprintf(out, "\n%d problem(s) in stored history:\n", len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "  %s\n", p.Error())
		}
	}

	last, ok, err := runlog.Last(r.logDir())
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(out, "\nLast download: %s (%d transactions)\n", last.Timestamp.Local().Format(time.DateTime), last.Records)
	}
	return nil
}
