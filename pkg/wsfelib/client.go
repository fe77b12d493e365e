package wsfelib

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/proof"
	"github.com/rezonia/wsfe-client/internal/soap"
	"github.com/rezonia/wsfe-client/internal/store"
	"github.com/rezonia/wsfe-client/internal/wsaa"
	"github.com/rezonia/wsfe-client/internal/wsfe"
)

// HTTPDoer is the subset of *http.Client the client needs
type HTTPDoer = soap.HTTPDoer

// Options configures a Client
type Options struct {
	// Environment the URL overrides apply to
	Environment Environment
	WSAAURL     string
	WSFEURL     string

	// WSAA ticket request
	Service        string        // default: wsfe
	GenerationSkew time.Duration // default: 10m
	ExpirationSkew time.Duration // default: 10m

	// Timeout bounds each SOAP call and each emission (default: 30s)
	Timeout time.Duration

	ServicePeriodPolicy ServicePeriodPolicy

	// TicketCacheFile persists tickets between processes when set
	TicketCacheFile string

	HTTPClient HTTPDoer
	Logger     *zerolog.Logger
}

// DefaultOptions returns default client options
func DefaultOptions() Options {
	return Options{
		Environment:         EnvironmentTest,
		Service:             wsaa.DefaultService,
		GenerationSkew:      wsaa.DefaultGenerationSkew,
		ExpirationSkew:      wsaa.DefaultExpirationSkew,
		Timeout:             emitter.DefaultTimeout,
		ServicePeriodPolicy: ServicePeriodStrict,
	}
}

// Client authenticates, authorizes vouchers and builds their proofs
type Client struct {
	auth    *wsaa.Authenticator
	wsfe    *wsfe.Client
	emitter *emitter.Emitter
}

// New creates a client with the given options
func New(opts Options) (*Client, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.Environment == "" {
		opts.Environment = EnvironmentTest
	}

	soapOpts := []soap.ClientOption{
		soap.WithTimeout(opts.Timeout),
		soap.WithLogger(log.With().Str("component", "soap").Logger()),
	}
	if opts.HTTPClient != nil {
		soapOpts = append(soapOpts, soap.WithHTTPClient(opts.HTTPClient))
	}
	soapClient := soap.NewClient(soapOpts...)

	authOpts := []wsaa.Option{
		wsaa.WithSOAPClient(soapClient),
		wsaa.WithLogger(log.With().Str("component", "wsaa").Logger()),
	}
	if opts.Service != "" {
		authOpts = append(authOpts, wsaa.WithService(opts.Service))
	}
	if opts.GenerationSkew > 0 && opts.ExpirationSkew > 0 {
		authOpts = append(authOpts, wsaa.WithSkew(opts.GenerationSkew, opts.ExpirationSkew))
	}
	if opts.WSAAURL != "" {
		authOpts = append(authOpts, wsaa.WithEndpoint(opts.Environment, opts.WSAAURL))
	}
	if opts.TicketCacheFile != "" {
		cache, err := store.NewFileTicketCache(opts.TicketCacheFile, log.With().Str("component", "tickets").Logger())
		if err != nil {
			return nil, err
		}
		authOpts = append(authOpts, wsaa.WithTicketCache(cache))
	}
	auth := wsaa.NewAuthenticator(authOpts...)

	wsfeOpts := []wsfe.Option{
		wsfe.WithSOAPClient(soapClient),
		wsfe.WithLogger(log.With().Str("component", "wsfe").Logger()),
	}
	if opts.WSFEURL != "" {
		wsfeOpts = append(wsfeOpts, wsfe.WithEndpoint(opts.Environment, opts.WSFEURL))
	}
	client := wsfe.NewClient(auth, wsfeOpts...)

	em := emitter.New(client,
		emitter.WithServicePeriodPolicy(opts.ServicePeriodPolicy),
		emitter.WithTimeout(opts.Timeout),
		emitter.WithLogger(log.With().Str("component", "emitter").Logger()),
	)

	return &Client{
		auth:    auth,
		wsfe:    client,
		emitter: em,
	}, nil
}

// NewAccount builds and validates an account from PEM key material
func NewAccount(id, cuit string, env Environment, keyPEM, certPEM []byte) (Account, error) {
	account := model.Account{
		ID:   id,
		CUIT: cuit,
		Credential: model.Credential{
			PrivateKeyPEM:  keyPEM,
			CertificatePEM: certPEM,
			Environment:    env,
		},
	}
	if err := account.Validate(); err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// Login returns a valid access ticket, authenticating only when needed
func (c *Client) Login(ctx context.Context, account Account) (SessionTicket, error) {
	return c.auth.GetTicket(ctx, account)
}

// LastVoucher returns the last authorized number for the tuple, 0 if none
func (c *Client) LastVoucher(ctx context.Context, account Account, pointOfSale int, voucherType VoucherType) (int64, error) {
	return c.wsfe.LastVoucher(ctx, account, pointOfSale, voucherType)
}

// Authorize numbers the draft, authorizes it and builds its proofs. If the
// voucher is approved but its proofs fail, the emission is returned with a
// *ProofError; the CAE in it is valid.
func (c *Client) Authorize(ctx context.Context, account Account, draft Draft) (*Emission, error) {
	return c.emitter.Emit(ctx, account, draft)
}

// AuthorizeBatch authorizes drafts one at a time in order
func (c *Client) AuthorizeBatch(ctx context.Context, account Account, drafts []Draft) *BatchResult {
	return c.emitter.EmitBatch(ctx, account, drafts)
}

// GetVoucher reads back an authorized voucher
func (c *Client) GetVoucher(ctx context.Context, account Account, pointOfSale int, voucherType VoucherType, number int64) (VoucherRecord, error) {
	return c.wsfe.GetVoucher(ctx, account, pointOfSale, voucherType, number)
}

// ServerStatus reports the authority's infrastructure health
func (c *Client) ServerStatus(ctx context.Context, env Environment) (ServerStatus, error) {
	return c.wsfe.ServerStatus(ctx, env)
}

// BuildProof derives the QR payload and barcode of an authorized voucher
func BuildProof(issuerCUIT string, req AuthorizationRequest, result AuthorizationResult) (ProofArtifacts, error) {
	return proof.Build(issuerCUIT, req, result)
}
