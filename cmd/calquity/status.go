// ABOUTME: Backend inspection commands: job status and the uploaded document list.
// ABOUTME: Both print plain text so they compose with shell tools.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the status of a backend job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.backendClient().JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job:     %s\n", st.JobID)
			fmt.Fprintf(a.out, "Status:  %s\n", st.Status)
			if st.Query != "" {
				fmt.Fprintf(a.out, "Query:   %s\n", st.Query)
			}
			if st.CreatedAt != "" {
				fmt.Fprintf(a.out, "Created: %s\n", st.CreatedAt)
			}
			if st.Error != nil && *st.Error != "" {
				fmt.Fprintf(a.out, "Error:   %s\n", *st.Error)
			}
			return nil
		},
	}
}

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List documents uploaded to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.backendClient().Documents(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(a.out, "No documents uploaded.")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintln(a.out, d)
			}
			return nil
		},
	}
}
