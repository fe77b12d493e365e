package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/config"
	"github.com/rezonia/wsfe-client/internal/credential"
	"github.com/rezonia/wsfe-client/internal/logger"
	"github.com/rezonia/wsfe-client/internal/model"
)

var (
	keyFile   string
	certFile  string
	caFile    string
	checkOCSP bool
	softFail  bool
)

var certinfoCmd = &cobra.Command{
	Use:   "certinfo",
	Short: "Inspect an account's key and certificate",
	Long: `Inspect the key material of an account before it is used with WSAA.

Checks:
  - Certificate validity window
  - Private key matches the certificate
  - CUIT in the certificate subject matches the account
  - Certificate chain (when a CA file is configured)
  - Revocation status (OCSP, with --ocsp)

Examples:
  # Inspect a configured account
  wsfe certinfo -a acme

  # Inspect loose files
  wsfe certinfo --key acme.key --cert acme.crt --ca-file afip-ca.pem --ocsp`,
	Args: cobra.NoArgs,
	RunE: runCertinfo,
}

func init() {
	rootCmd.AddCommand(certinfoCmd)

	certinfoCmd.Flags().StringVar(&keyFile, "key", "", "Private key file (PEM)")
	certinfoCmd.Flags().StringVar(&certFile, "cert", "", "Certificate file (PEM)")
	certinfoCmd.Flags().StringVar(&caFile, "ca-file", "", "CA certificate file (PEM)")
	certinfoCmd.Flags().BoolVar(&checkOCSP, "ocsp", false, "Check revocation with OCSP")
	certinfoCmd.Flags().BoolVar(&softFail, "soft-fail", false, "Treat an unreachable OCSP responder as a warning")
}

func runCertinfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	if caFile != "" {
		cfg.Credentials.CAFile = caFile
	}
	cfg.Credentials.OCSP = cfg.Credentials.OCSP || checkOCSP
	cfg.Credentials.SoftFail = cfg.Credentials.SoftFail || softFail

	inspector, err := newInspector(cfg, logger.WithComponent("credential"))
	if err != nil {
		return err
	}

	account, err := certinfoAccount(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	report, err := inspector.Inspect(ctx, account)
	if err != nil {
		return err
	}

	if err := output(report, func(w io.Writer) { printReport(w, account, report, inspector.RootCount() > 0) }); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("credential inspection failed")
	}
	return nil
}

func certinfoAccount(cfg *config.ParsedConfig) (model.Account, error) {
	if keyFile == "" && certFile == "" {
		if err := requireAccount(); err != nil {
			return model.Account{}, err
		}
		entry, ok := cfg.Account(accountID)
		if !ok {
			return model.Account{}, model.NewAuthCredentialError(accountID, "account is not configured", nil)
		}
		keyFile, certFile = entry.KeyFile, entry.CertFile
		return readAccount(accountID, entry.CUIT, cfg.AccountEnvironment(entry))
	}
	if keyFile == "" || certFile == "" {
		return model.Account{}, fmt.Errorf("--key and --cert must be given together")
	}
	return readAccount("files", "", cfg.Env)
}

func readAccount(id, cuit string, env model.Environment) (model.Account, error) {
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return model.Account{}, model.NewAuthCredentialError(id, "failed to read private key", err)
	}
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return model.Account{}, model.NewAuthCredentialError(id, "failed to read certificate", err)
	}
	return model.Account{
		ID:   id,
		CUIT: cuit,
		Credential: model.Credential{
			PrivateKeyPEM:  keyPEM,
			CertificatePEM: certPEM,
			Environment:    env,
		},
	}, nil
}

func printReport(w io.Writer, account model.Account, r *credential.Report, chainConfigured bool) {
	statusIcon, statusText := "✓", "VALID"
	if !r.Valid {
		statusIcon, statusText = "✗", "INVALID"
	}
	fmt.Fprintf(w, "%s %s: %s\n", statusIcon, account.ID, statusText)

	if c := r.Certificate; c != nil {
		fmt.Fprintf(w, "  Subject:\t%s\n", c.Name)
		if c.Organization != "" {
			fmt.Fprintf(w, "  Org:\t%s\n", c.Organization)
		}
		fmt.Fprintf(w, "  Issuer:\t%s\n", c.Issuer)
		fmt.Fprintf(w, "  Valid:\t%s to %s\n", c.ValidFrom.Format(time.RFC3339), c.ValidTo.Format(time.RFC3339))
	}
	if r.CUIT != "" {
		fmt.Fprintf(w, "  CUIT:\t%s\n", r.CUIT)
	}

	fmt.Fprintf(w, "  Key match:\t%s\n", mark(r.KeyMatches, true))
	fmt.Fprintf(w, "  Validity:\t%s\n", mark(r.WithinWindow, true))
	fmt.Fprintf(w, "  Cert chain:\t%s\n", mark(r.ChainValid, chainConfigured && r.ChainChecked))
	fmt.Fprintf(w, "  Not revoked:\t%s\n", mark(r.NotRevoked, r.OCSPChecked))
	if r.WithinWindow {
		fmt.Fprintf(w, "  Expires in:\t%d days\n", int(r.ExpiresIn.Hours()/24))
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warning)
	}
}

func mark(ok, checked bool) string {
	switch {
	case !checked:
		return "- (skipped)"
	case ok:
		return "✓"
	default:
		return "✗"
	}
}
