package main

import (
	"github.com/spf13/cobra"
	"github.com/stylebot/server/internal/domain/billing"
)

func newPassCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Manage passes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "activate <user-id> <pass-type>",
		Short: "Activate a pass without a payment (pass_1d, pass_7d, pass_30d)",
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

			pass, err := a.Passes.Activate(cmd.Context(), userID, billing.PassType(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pass)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Show the active pass",
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

			pass, err := a.Passes.GetActivePass(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pass)
		},
	})
	return cmd
}
