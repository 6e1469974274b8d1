package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
	"shuttle/internal/daemonctl"
)

func newOverrideCommands(ctx *commandContext) []*cobra.Command {
	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause automatic dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				if _, err := client.Override(api.OverrideRequest{Action: "pause"}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Dispatch paused")
				return nil
			})
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume automatic dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				if _, err := client.Override(api.OverrideRequest{Action: "resume"}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Dispatch resumed")
				return nil
			})
		},
	}

	forcePostCmd := &cobra.Command{
		Use:   "force-post [itemID]",
		Short: "Run a dispatch cycle immediately",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.OverrideRequest{Action: "force-post"}
			if len(args) > 0 {
				req.ItemID = args[0]
			}
			return ctx.withClient(func(client *daemonctl.Client) error {
				resp, err := client.Override(req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Retried > 0 {
					fmt.Fprintf(out, "Requeued %d failed items\n", resp.Retried)
				}
				fmt.Fprintf(out, "Cycle complete: %d fetched, %d scheduled, %d failed\n",
					resp.Fetched, resp.Scheduled, resp.Failed)
				return nil
			})
		},
	}

	return []*cobra.Command{pauseCmd, resumeCmd, forcePostCmd}
}
