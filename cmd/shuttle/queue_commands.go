package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
	"shuttle/internal/daemonctl"
	"shuttle/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the content queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var platforms []string
	var caption string
	var hashtags []string
	var at string

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a content item to the posting queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(args[0])
			if content == "" {
				return errors.New("content must not be empty")
			}
			if len(platforms) == 0 {
				return errors.New("at least one --platform is required")
			}

			scheduledAt := time.Now().UTC()
			if strings.TrimSpace(at) != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value %q (expected RFC3339)", at)
				}
				scheduledAt = parsed
			}

			return ctx.withStore(func(client *daemonctl.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					resp, err := client.Enqueue(api.EnqueueRequest{
						Content:     content,
						Platforms:   platforms,
						Caption:     caption,
						Hashtags:    hashtags,
						ScheduledAt: scheduledAt.Format(time.RFC3339),
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued item %s\n", resp.ID)
					return nil
				}

				item, err := store.Add(cmd.Context(), queue.NewItem{
					Content:     content,
					Platforms:   platforms,
					Caption:     caption,
					Hashtags:    hashtags,
					ScheduledAt: scheduledAt,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued item %s\n", item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&platforms, "platform", "p", nil, "Target platform (repeatable)")
	cmd.Flags().StringVar(&caption, "caption", "", "Caption text")
	cmd.Flags().StringSliceVar(&hashtags, "hashtag", nil, "Hashtag (repeatable)")
	cmd.Flags().StringVar(&at, "at", "", "Scheduled time in RFC3339 (defaults to now)")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listStatus != "" {
				if _, ok := queue.ParseStatus(listStatus); !ok {
					return fmt.Errorf("unknown status %q", listStatus)
				}
			}

			return ctx.withStore(func(client *daemonctl.Client, store *queue.Store) error {
				var items []api.QueueItem
				if client != nil {
					resp, err := client.QueueList(listStatus)
					if err != nil {
						return err
					}
					items = resp.Items
				} else {
					var statuses []queue.Status
					if listStatus != "" {
						status, _ := queue.ParseStatus(listStatus)
						statuses = append(statuses, status)
					}
					stored, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					items = api.FromQueueItems(stored)
				}

				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(queueListHeaders, buildQueueListRows(items), queueListAligns)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by queue status")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(client *daemonctl.Client, store *queue.Store) error {
				var item api.QueueItem
				if client != nil {
					resp, err := client.Describe(id)
					if err != nil {
						return err
					}
					item = resp.Item
				} else {
					stored, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if stored == nil {
						return fmt.Errorf("item %s not found", id)
					}
					item = api.FromQueueItem(stored)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", item.ID)
				fmt.Fprintf(out, "Content:   %s\n", item.Content)
				fmt.Fprintf(out, "Platforms: %s\n", strings.Join(item.Platforms, ", "))
				if item.Caption != "" {
					fmt.Fprintf(out, "Caption:   %s\n", item.Caption)
				}
				if len(item.Hashtags) > 0 {
					fmt.Fprintf(out, "Hashtags:  %s\n", strings.Join(item.Hashtags, ", "))
				}
				fmt.Fprintf(out, "Scheduled: %s\n", item.ScheduledAt)
				fmt.Fprintf(out, "Status:    %s\n", item.Status)
				fmt.Fprintf(out, "Attempts:  %d\n", item.Attempts)
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", item.ErrorMessage)
				}
				for platform, postID := range item.PostIDs {
					fmt.Fprintf(out, "Post ID:   %s=%s\n", platform, postID)
				}
				return nil
			})
		},
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *daemonctl.Client, store *queue.Store) error {
				var stats map[string]int
				if client != nil {
					resp, err := client.QueueList("")
					if err != nil {
						return err
					}
					stats = resp.Stats
				} else {
					stored, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					stats = statsToStringMap(stored)
				}

				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *daemonctl.Client, store *queue.Store) error {
				var health queue.HealthSummary
				if client != nil {
					mon, err := client.Monitoring()
					if err != nil {
						return err
					}
					health = queue.HealthSummary{
						Total:     mon.Queue.Total,
						Pending:   mon.Queue.Pending,
						Scheduled: mon.Queue.Scheduled,
						Posted:    mon.Queue.Posted,
						Failed:    mon.Queue.Failed,
					}
				} else {
					var err error
					health, err = store.Health(cmd.Context())
					if err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nScheduled: %d\nPosted: %d\nFailed: %d\n",
					health.Total,
					health.Pending,
					health.Scheduled,
					health.Posted,
					health.Failed,
				)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Return failed queue items to pending",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				updated, err := store.RetryFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Retried %d failed items\n", updated)
				return nil
			}

			for _, id := range args {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					fmt.Fprintf(out, "Item %s not found\n", id)
					continue
				}
				if item.Status != queue.StatusFailed {
					fmt.Fprintf(out, "Item %s is not in failed state\n", id)
					continue
				}
				updated, err := store.RetryFailed(cmd.Context(), id)
				if err != nil {
					return err
				}
				if updated > 0 {
					fmt.Fprintf(out, "Item %s reset for retry\n", id)
				} else {
					fmt.Fprintf(out, "Item %s is not in failed state\n", id)
				}
			}
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearPosted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearPosted && clearFailed {
				return errors.New("specify only one of --posted or --failed")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			var removed int64
			switch {
			case clearPosted:
				removed, err = store.ClearPosted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d posted items\n", removed)
			case clearFailed:
				removed, err = store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d failed items\n", removed)
			default:
				removed, err = store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d queue items\n", removed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearPosted, "posted", false, "Remove only posted items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}
