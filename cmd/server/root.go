package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/stylebot/server/internal/app"
	"github.com/stylebot/server/internal/infra/config"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stylebot",
		Short: "Quota and payment core of the photo-style bot",
		Long: `stylebot serves the payment webhooks and operator endpoints of the
photo-style bot and offers admin commands to inspect and adjust user quota.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml, ./configs/config.yaml or /etc/stylebot/config.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newQuotaCmd(opts))
	cmd.AddCommand(newPassCmd(opts))
	cmd.AddCommand(newPaymentCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildApp wires the application for a one-shot admin command.
func (o *rootOptions) buildApp() (*app.App, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return app.New(cfg)
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
