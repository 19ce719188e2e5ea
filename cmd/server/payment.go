package main

import (
	"github.com/spf13/cobra"
)

func newPaymentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Replay and inspect payment events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "replay-telegram <charge-id> <invoice-payload>",
		Short: "Apply a Telegram successful_payment that was not processed",
		Long: `Applies the purchase encoded in invoice-payload (kind:item:user) under the
Telegram charge id. Replaying an already applied charge is a no-op.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			purchase, err := a.Payments.HandleTelegramPayment(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), purchase)
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history <user-id>",
		Short: "List the latest purchases of a user",
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

			purchases, err := a.Payments.History(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), purchases)
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum number of purchases")
	cmd.AddCommand(history)

	return cmd
}
