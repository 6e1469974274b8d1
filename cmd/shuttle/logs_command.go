package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/daemonctl"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				resp, err := client.Logs(user)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "Audit log is empty")
					return nil
				}

				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						fmt.Sprintf("%d", entry.Seq),
						entry.Timestamp,
						entry.Action,
						entry.User,
						entry.Details,
					})
				}
				table := renderTable(
					[]string{"Seq", "Timestamp", "Action", "User", "Details"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				fmt.Fprintf(out, "Sequence intact: %s\n", yesNo(resp.Intact))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Filter entries by acting user")
	return cmd
}
