package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/config"
	"github.com/rezonia/wsfe-client/internal/credential"
	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/logger"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/soap"
	"github.com/rezonia/wsfe-client/internal/store"
	"github.com/rezonia/wsfe-client/internal/wsaa"
	"github.com/rezonia/wsfe-client/internal/wsfe"
)

// app wires config, logging, the authority clients and the stores
type app struct {
	cfg       *config.ParsedConfig
	log       zerolog.Logger
	auth      *wsaa.Authenticator
	wsfe      *wsfe.Client
	accounts  *store.FileAccountStore
	ledger    *store.MemoryLedger
	emitter   *emitter.Emitter
	inspector *credential.Inspector
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return nil, err
	}

	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	log := logger.GetLogger()
	printVerbose("Environment: %s\n", cfg.Env)

	inspector, err := newInspector(cfg, logger.WithComponent("credential"))
	if err != nil {
		return nil, err
	}

	soapClient := soap.NewClient(
		soap.WithTimeout(cfg.RequestTimeout),
		soap.WithLogger(logger.WithComponent("soap")),
	)

	authOpts := []wsaa.Option{
		wsaa.WithSOAPClient(soapClient),
		wsaa.WithService(cfg.Ticket.Service),
		wsaa.WithSkew(cfg.GenerationSkew, cfg.ExpirationSkew),
		wsaa.WithLogger(logger.WithComponent("wsaa")),
	}
	if cfg.TicketCacheFile != "" {
		cache, err := store.NewFileTicketCache(cfg.TicketCacheFile, logger.WithComponent("tickets"))
		if err != nil {
			return nil, err
		}
		authOpts = append(authOpts, wsaa.WithTicketCache(cache))
	}
	if cfg.Endpoints.WSAA != "" {
		authOpts = append(authOpts, wsaa.WithEndpoint(cfg.Env, cfg.Endpoints.WSAA))
	}
	auth := wsaa.NewAuthenticator(authOpts...)

	wsfeOpts := []wsfe.Option{
		wsfe.WithSOAPClient(soapClient),
		wsfe.WithLogger(logger.WithComponent("wsfe")),
	}
	if cfg.Endpoints.WSFE != "" {
		wsfeOpts = append(wsfeOpts, wsfe.WithEndpoint(cfg.Env, cfg.Endpoints.WSFE))
	}
	client := wsfe.NewClient(auth, wsfeOpts...)

	accounts := store.NewFileAccountStore(cfg, inspector)
	ledger := store.NewMemoryLedger()

	em := emitter.New(client,
		emitter.WithAccountStore(accounts),
		emitter.WithLedger(ledger),
		emitter.WithServicePeriodPolicy(cfg.PeriodPolicy),
		emitter.WithTimeout(cfg.RequestTimeout),
		emitter.WithLogger(logger.WithComponent("emitter")),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		auth:      auth,
		wsfe:      client,
		accounts:  accounts,
		ledger:    ledger,
		emitter:   em,
		inspector: inspector,
	}, nil
}

func setupLogging(cfg *config.ParsedConfig) error {
	logCfg := cfg.LoggerConfig()
	if verbose {
		logCfg.Level = "debug"
	}
	return logger.Setup(logCfg)
}

func newInspector(cfg *config.ParsedConfig, log zerolog.Logger) (*credential.Inspector, error) {
	opts := []credential.InspectorOption{credential.WithLogger(log)}
	if cfg.Credentials.OCSP {
		opts = append(opts, credential.WithOCSP())
	}
	if cfg.Credentials.SoftFail {
		opts = append(opts, credential.WithSoftFail())
	}
	inspector := credential.NewInspector(opts...)
	if cfg.Credentials.CAFile != "" {
		if err := inspector.AddCertificatesFromFile(cfg.Credentials.CAFile); err != nil {
			return nil, fmt.Errorf("failed to load CA file: %w", err)
		}
	}
	return inspector, nil
}

// account resolves the --account flag
func (a *app) account(ctx context.Context) (model.Account, error) {
	if err := requireAccount(); err != nil {
		return model.Account{}, err
	}
	return a.accounts.GetAccount(ctx, accountID)
}
