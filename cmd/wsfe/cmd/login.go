package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain or reuse a WSAA access ticket",
	Long: `Authenticate the account against WSAA and cache the access ticket.

A cached ticket that is still valid is reused; the token and sign are never
printed.

Examples:
  wsfe login -a acme
  wsfe login -a acme -f json`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

type loginResult struct {
	Account   string        `json:"account"`
	ExpiresAt time.Time     `json:"expires_at"`
	ValidFor  time.Duration `json:"valid_for"`
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
	defer cancel()

	account, err := a.account(ctx)
	if err != nil {
		return err
	}
	ticket, err := a.auth.GetTicket(ctx, account)
	if err != nil {
		return err
	}

	result := loginResult{
		Account:   account.ID,
		ExpiresAt: ticket.ExpiresAt,
		ValidFor:  time.Until(ticket.ExpiresAt).Round(time.Second),
	}
	return output(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s authenticated\n", result.Account)
		fmt.Fprintf(w, "Expires:\t%s (in %s)\n", result.ExpiresAt.Format(time.RFC3339), result.ValidFor)
	})
}
