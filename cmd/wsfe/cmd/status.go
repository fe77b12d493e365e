package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the authority's servers (FEDummy)",
	Long: `Report the status of the authority's application, database and
authentication servers. No credentials are needed.

Examples:
  wsfe status
  WSFE_ENV=production wsfe status -f json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
	defer cancel()

	status, err := a.wsfe.ServerStatus(ctx, a.cfg.Env)
	if err != nil {
		return err
	}

	if err := output(status, func(w io.Writer) {
		fmt.Fprintf(w, "Environment:\t%s\n", a.cfg.Env)
		fmt.Fprintf(w, "App server:\t%s\n", status.AppServer)
		fmt.Fprintf(w, "DB server:\t%s\n", status.DbServer)
		fmt.Fprintf(w, "Auth server:\t%s\n", status.AuthServer)
	}); err != nil {
		return err
	}
	if !status.OK() {
		return fmt.Errorf("authority reports degraded service")
	}
	return nil
}
