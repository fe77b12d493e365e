package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	configPath   string
	accountID    string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wsfe",
	Short: "Authorize electronic vouchers with AFIP (WSAA + WSFEv1)",
	Long: `wsfe is a CLI client for AFIP electronic invoicing.

Supports:
  - WSAA authentication with cached access tickets
  - Voucher authorization (CAE) with per point-of-sale sequencing
  - Voucher queries and last authorized number lookups
  - QR payload and barcode generation for printed vouchers
  - Certificate inspection (validity, CUIT, chain, OCSP)

Examples:
  # Authenticate and cache a ticket
  wsfe login -a acme

  # Authorize a voucher from a JSON draft
  wsfe authorize -a acme draft.json

  # Last authorized number for point of sale 1, type B
  wsfe last -a acme --pos 1 --type B

  # Serve the HTTP API
  wsfe serve`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (env: WSFE_CONFIG, default wsfe.yaml)")
	rootCmd.PersistentFlags().StringVarP(&accountID, "account", "a", "", "Account id from the config file (env: WSFE_ACCOUNT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if accountID == "" {
		accountID = os.Getenv("WSFE_ACCOUNT")
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func requireAccount() error {
	if accountID == "" {
		return fmt.Errorf("no account selected; use --account or WSFE_ACCOUNT")
	}
	return nil
}
