// Package wsaa obtains and caches WSAA access tickets.
package wsaa

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/signing"
	"github.com/rezonia/wsfe-client/internal/soap"
)

// Default ticket request configuration
const (
	DefaultService        = "wsfe"
	DefaultGenerationSkew = 10 * time.Minute
	DefaultExpirationSkew = 10 * time.Minute
)

// Authenticator issues session tickets and caches them per account
type Authenticator struct {
	soap           *soap.Client
	cache          TicketCache
	clock          clockwork.Clock
	flights        singleflight.Group
	service        string
	generationSkew time.Duration
	expirationSkew time.Duration
	endpoints      map[model.Environment]string
	logger         zerolog.Logger
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithTicketCache replaces the in-memory cache
func WithTicketCache(cache TicketCache) Option {
	return func(a *Authenticator) {
		a.cache = cache
	}
}

// WithClock sets the clock used for ticket windows and expiry checks
func WithClock(clock clockwork.Clock) Option {
	return func(a *Authenticator) {
		a.clock = clock
	}
}

// WithSOAPClient sets the transport
func WithSOAPClient(c *soap.Client) Option {
	return func(a *Authenticator) {
		a.soap = c
	}
}

// WithService sets the service name the ticket is requested for
func WithService(service string) Option {
	return func(a *Authenticator) {
		a.service = service
	}
}

// WithSkew sets how far before and after now the request window extends
func WithSkew(generation, expiration time.Duration) Option {
	return func(a *Authenticator) {
		if generation > 0 {
			a.generationSkew = generation
		}
		if expiration > 0 {
			a.expirationSkew = expiration
		}
	}
}

// WithEndpoint overrides the LoginCms URL for an environment
func WithEndpoint(env model.Environment, url string) Option {
	return func(a *Authenticator) {
		if url != "" {
			a.endpoints[env] = url
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = l
	}
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		soap:           soap.NewClient(),
		cache:          NewMemoryTicketCache(),
		clock:          clockwork.NewRealClock(),
		service:        DefaultService,
		generationSkew: DefaultGenerationSkew,
		expirationSkew: DefaultExpirationSkew,
		endpoints:      make(map[model.Environment]string),
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetTicket returns a ticket that is valid now, authenticating only when
// the cached one is missing or expired. Concurrent refreshes for the same
// account share a single LoginCms call.
func (a *Authenticator) GetTicket(ctx context.Context, account model.Account) (model.SessionTicket, error) {
	if t, ok := a.cached(account.ID); ok {
		a.logger.Debug().Str("account", account.ID).Time("expires_at", t.ExpiresAt).Msg("ticket cache hit")
		return t, nil
	}

	// The shared login outlives any single caller; the SOAP timeout bounds it.
	flight := context.WithoutCancel(ctx)
	ch := a.flights.DoChan(account.ID, func() (interface{}, error) {
		if t, ok := a.cached(account.ID); ok {
			return t, nil
		}
		t, err := a.login(flight, account)
		if err != nil {
			return nil, err
		}
		a.cache.Set(account.ID, t)
		return t, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "cancelled while waiting for an access ticket", ctx.Err())
	}
	if res.Err != nil {
		return model.SessionTicket{}, res.Err
	}

	t := res.Val.(model.SessionTicket)
	if !t.ValidAt(a.clock.Now()) {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "authority returned a ticket that is already expired", nil)
	}
	return t, nil
}

// Invalidate drops the account's cached ticket, forcing the next call to authenticate
func (a *Authenticator) Invalidate(accountID string) {
	a.cache.Delete(accountID)
}

func (a *Authenticator) cached(accountID string) (model.SessionTicket, bool) {
	t, ok := a.cache.Get(accountID)
	if !ok || !t.ValidAt(a.clock.Now()) {
		return model.SessionTicket{}, false
	}
	return t, true
}

func (a *Authenticator) login(ctx context.Context, account model.Account) (model.SessionTicket, error) {
	signer, err := signing.NewSigner(account.ID, account.Credential)
	if err != nil {
		return model.SessionTicket{}, err
	}

	url := a.endpoint(account.Credential.Environment)
	if url == "" {
		return model.SessionTicket{}, model.NewAuthCredentialError(account.ID, "unknown environment "+string(account.Credential.Environment), nil)
	}

	tra, err := BuildTicketRequest(a.service, a.clock.Now(), a.generationSkew, a.expirationSkew)
	if err != nil {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "failed to build ticket request", err)
	}

	cms, err := signer.Sign(tra)
	if err != nil {
		return model.SessionTicket{}, err
	}

	log := a.logger.With().Str("account", account.ID).Str("env", string(account.Credential.Environment)).Logger()
	log.Info().Str("service", a.service).Msg("requesting access ticket")

	resp, err := a.soap.Call(ctx, url, SOAPAction, operation, loginCms{In0: cms}, wsaaNamespace)
	if err != nil {
		var te *model.AuthTransportError
		if errors.As(err, &te) && strings.Contains(te.Code, "alreadyAuthenticated") {
			log.Warn().Msg("authority reports a valid ticket already exists; it is not in the local cache")
		} else {
			log.Error().Err(err).Msg("access ticket request failed")
		}
		return model.SessionTicket{}, err
	}

	ticket, err := ParseLoginResponse(resp)
	if err != nil {
		log.Error().Err(err).Msg("access ticket response rejected")
		return model.SessionTicket{}, err
	}

	log.Info().Time("expires_at", ticket.ExpiresAt).Msg("access ticket issued")
	return ticket, nil
}

func (a *Authenticator) endpoint(env model.Environment) string {
	if url, ok := a.endpoints[env]; ok {
		return url
	}
	return env.Endpoints().WSAA
}
