// ABOUTME: The audit command: lists recent generation runs, or the stage attempts of one run.
// ABOUTME: Reads the SQLite store that the in-process pipeline records into.
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit [RUN_ID]",
		Short: "Show recorded visualization generation runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openAudit()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if len(args) == 0 {
				runs, err := st.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "RUN\tSTARTED\tATTEMPTS\tACCEPTED\tQUERY")
				for _, r := range runs {
					accepted := r.Accepted
					if accepted == "" {
						accepted = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.RunID, r.StartedAt, r.Attempts, accepted, r.Query)
				}
				return nil
			}

			attempts, err := st.Attempts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				return fmt.Errorf("no attempts recorded for run %s", args[0])
			}
			fmt.Fprintln(tw, "SEQ\tSTAGE\tVALID\tKIND\tDURATION\tREASON")
			for _, at := range attempts {
				fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%dms\t%s\n", at.Seq, at.Stage, at.Valid, at.Kind, at.DurationMS, at.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}
