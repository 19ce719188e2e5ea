package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/stylebot/server/internal/domain/billing"
)

func newQuotaCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and adjust user quota",
	}
	cmd.AddCommand(newQuotaStatusCmd(opts))
	cmd.AddCommand(newQuotaTopupCmd(opts))
	cmd.AddCommand(newQuotaRefundCmd(opts))
	return cmd
}

func newQuotaStatusCmd(opts *rootOptions) *cobra.Command {
	var identity string
	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show remaining quota, verdicts and the active pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			a, cleanup, err := opts.buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			return printJSON(cmd.OutOrStdout(), a.Status.Status(cmd.Context(), userID, identity))
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "username, checked against the unlimited allowlist")
	return cmd
}

func newQuotaTopupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <user-id> <pack>",
		Short: "Grant a top-up pack without a payment (image_10, image_50, video_3, video_10)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			a, cleanup, err := opts.buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.Purchases.AddTopup(cmd.Context(), userID, billing.TopupType(args[1])); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Status.Status(cmd.Context(), userID, ""))
		},
	}
}

func newQuotaRefundCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refund <user-id> <service> <amount>",
		Short: "Give back quota for a generation that was charged but not delivered",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			service, err := billing.ParseService(args[1])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("invalid amount %q", args[2])
			}
			a, cleanup, err := opts.buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if !a.Ledger.Refund(cmd.Context(), userID, service, amount) {
				return fmt.Errorf("refund failed: %w", billing.ErrStorageUnavailable)
			}
			return printJSON(cmd.OutOrStdout(), a.Status.Status(cmd.Context(), userID, ""))
		},
	}
}
