package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/task"
	"github.com/stylebot/server/internal/module/generation"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		req     generation.StartRequest
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate <user-id> <service>",
		Short: "Run one charged generation end to end and wait for the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			service, err := billing.ParseService(args[1])
			if err != nil {
				return err
			}
			req.UserID = userID
			req.Service = service

			a, cleanup, err := opts.buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			// Start is not called: recovering unfinished tasks is the server's job.
			defer func() { _ = a.Tasks.Stop(context.WithoutCancel(ctx)) }()

			done := make(chan *task.Task, 1)
			t, err := a.Flow.Start(ctx, req)
			if err != nil {
				return err
			}
			unsubscribe := a.Tasks.Subscribe(t.ID, func(updated *task.Task) {
				if updated.IsTerminal() {
					select {
					case done <- updated:
					default:
					}
				}
			})
			defer unsubscribe()

			// The task may have finished before the subscription.
			if current, err := a.Tasks.Get(ctx, t.ID); err == nil && current.IsTerminal() {
				return printJSON(cmd.OutOrStdout(), current)
			}

			select {
			case finished := <-done:
				return printJSON(cmd.OutOrStdout(), finished)
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	cmd.Flags().StringVar(&req.Identity, "identity", "", "username, checked against the unlimited allowlist")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "style prompt")
	cmd.Flags().StringVar(&req.Style, "style", "", "style preset")
	cmd.Flags().StringVar(&req.SourceURL, "source-url", "", "URL of the source photo")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the result")
	return cmd
}
