package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/logger"
	"github.com/rezonia/wsfe-client/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server in front of the configured accounts.

The API provides endpoints for:
  - POST /api/v1/accounts/:account/vouchers                    - Authorize a draft
  - POST /api/v1/accounts/:account/batches                     - Authorize drafts in order
  - GET  /api/v1/accounts/:account/last?pos=&type=             - Last authorized number
  - GET  /api/v1/accounts/:account/vouchers/:pos/:type/:number - Read back a voucher
  - POST /api/v1/proof                                         - Build QR payload and barcode
  - GET  /health                                               - Health check
  - GET  /health/upstream                                      - Authority server status

Examples:
  # Start server on the configured port
  wsfe serve

  # Start on a custom address in debug mode
  wsfe serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default from config port)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	addr := serverAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", a.cfg.Server.Port)
	}

	config := &server.Config{
		Address:      addr,
		Environment:  a.cfg.Env,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug || a.cfg.Server.Mode == "debug",
	}
	srv := server.NewServer(config, a.accounts, a.emitter, a.wsfe, logger.WithComponent("server"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info().Strs("accounts", a.accounts.IDs()).Msg("accounts configured")
	// in-flight authorizations get their full timeout to finish
	return srv.Run(ctx, a.cfg.RequestTimeout+5*time.Second)
}
