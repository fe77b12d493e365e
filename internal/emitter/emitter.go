// Package emitter runs the numbered authorization sequence for vouchers:
// query the last authorized number, bind the draft to the next one, request
// authorization and derive the printable proofs.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/proof"
	"github.com/rezonia/wsfe-client/internal/store"
)

// DefaultTimeout bounds one LastVoucher plus Authorize sequence
const DefaultTimeout = 30 * time.Second

// Authority is the part of the WSFE client the emitter drives
type Authority interface {
	LastVoucher(ctx context.Context, account model.Account, pointOfSale int, voucherType model.VoucherType) (int64, error)
	Authorize(ctx context.Context, account model.Account, req model.AuthorizationRequest) (model.AuthorizationResult, error)
}

// ErrNotConfigured is returned by EmitInvoice when no account store or ledger is set
var ErrNotConfigured = errors.New("emitter has no account store or ledger")

// Emission is one authorized voucher with its proofs. Proof is empty when
// the authorization succeeded but the proofs could not be derived.
type Emission struct {
	Request model.AuthorizationRequest `json:"request"`
	Result  model.AuthorizationResult  `json:"result"`
	Proof   model.ProofArtifacts       `json:"proof"`
}

// Emitter serializes authorizations per (account, point of sale, voucher type)
type Emitter struct {
	authority Authority
	accounts  store.AccountStore
	ledger    store.Ledger
	policy    model.ServicePeriodPolicy
	timeout   time.Duration
	logger    zerolog.Logger
	tuples    *keyedLocks[tupleKey]
	invoices  *keyedLocks[invoiceKey]
}

// Option configures an Emitter
type Option func(*Emitter)

// WithAccountStore sets the store EmitInvoice resolves accounts from
func WithAccountStore(s store.AccountStore) Option {
	return func(e *Emitter) {
		e.accounts = s
	}
}

// WithLedger sets the ledger EmitInvoice reads drafts from and records into
func WithLedger(l store.Ledger) Option {
	return func(e *Emitter) {
		e.ledger = l
	}
}

// WithServicePeriodPolicy sets how missing service periods are handled
func WithServicePeriodPolicy(p model.ServicePeriodPolicy) Option {
	return func(e *Emitter) {
		e.policy = p
	}
}

// WithTimeout bounds each emission. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Emitter) {
		e.logger = l
	}
}

// New creates an emitter driving authority
func New(authority Authority, opts ...Option) *Emitter {
	e := &Emitter{
		authority: authority,
		policy:    model.ServicePeriodStrict,
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
		tuples:    newKeyedLocks[tupleKey](),
		invoices:  newKeyedLocks[invoiceKey](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit authorizes draft as the next voucher of its tuple. The tuple lock is
// held from the last-voucher query until the authorization returns.
//
// When the authority approves but the proofs cannot be derived, Emit returns
// the emission without proofs together with a *model.ProofError.
func (e *Emitter) Emit(ctx context.Context, account model.Account, draft model.Draft) (*Emission, error) {
	key := tupleKey{account: account.ID, pointOfSale: draft.PointOfSale, voucherType: draft.VoucherType}

	unlock, err := e.tuples.acquire(ctx, key)
	if err != nil {
		return nil, model.NewAuthTransportError("Emit", "cancelled while waiting for the voucher sequence", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log := e.logger.With().
		Str("account", account.ID).
		Int("pos", draft.PointOfSale).
		Str("type", draft.VoucherType.Code()).
		Logger()

	last, err := e.authority.LastVoucher(ctx, account, draft.PointOfSale, draft.VoucherType)
	if err != nil {
		return nil, err
	}

	req, err := draft.Request(last+1, e.policy)
	if err != nil {
		return nil, err
	}
	log = log.With().Int64("number", req.VoucherNumber).Logger()

	result, err := e.authority.Authorize(ctx, account, req)
	if err != nil {
		var te *model.AuthTransportError
		if errors.As(err, &te) && te.Timeout {
			log.Warn().Err(err).Msg("authorization outcome unknown; query the last voucher before retrying")
		}
		return nil, err
	}

	emission := &Emission{Request: req, Result: result}
	artifacts, err := proof.Build(account.CUIT, req, result)
	if err != nil {
		log.Error().Err(err).Str("cae", result.CAE).Msg("authorized but proof generation failed")
		return emission, model.NewProofError(req.VoucherNumber, result.CAE, err)
	}
	emission.Proof = artifacts
	return emission, nil
}

// EmitInvoice resolves the account and the invoice draft, emits it and
// records the outcome in the ledger. Calls for the same invoice run one at a
// time, so an invoice is authorized at most once. Every approved result is
// recorded, including one whose proofs failed.
func (e *Emitter) EmitInvoice(ctx context.Context, accountID, invoiceID string) (*Emission, error) {
	if e.accounts == nil || e.ledger == nil {
		return nil, ErrNotConfigured
	}

	unlock, err := e.invoices.acquire(ctx, invoiceKey{account: accountID, invoice: invoiceID})
	if err != nil {
		return nil, model.NewAuthTransportError("EmitInvoice", "cancelled while waiting for the invoice", err)
	}
	defer unlock()

	account, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	draft, err := e.ledger.NextDraftContext(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	emission, emitErr := e.Emit(ctx, account, draft)
	if emission == nil {
		return nil, emitErr
	}

	if err := e.ledger.RecordAuthorization(ctx, invoiceID, emission.Result, emission.Proof); err != nil {
		e.logger.Error().Err(err).
			Str("invoice", invoiceID).
			Str("cae", emission.Result.CAE).
			Int64("number", emission.Request.VoucherNumber).
			Msg("authorized but failed to record in ledger")
		return emission, fmt.Errorf("invoice %s authorized with CAE %s but recording failed: %w", invoiceID, emission.Result.CAE, err)
	}
	return emission, emitErr
}
