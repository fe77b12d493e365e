// Package wsfe talks to the electronic invoicing service (WSFEv1).
package wsfe

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/soap"
)

// Error codes with specific handling
const (
	codeTokenInvalid = 600
	codeNoResults    = 602
)

// TicketSource hands out valid session tickets
type TicketSource interface {
	GetTicket(ctx context.Context, account model.Account) (model.SessionTicket, error)
}

type invalidator interface {
	Invalidate(accountID string)
}

// Client performs WSFEv1 operations on behalf of an account
type Client struct {
	soap      *soap.Client
	tickets   TicketSource
	endpoints map[model.Environment]string
	logger    zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSOAPClient sets the transport
func WithSOAPClient(c *soap.Client) Option {
	return func(cl *Client) {
		cl.soap = c
	}
}

// WithEndpoint overrides the service URL for an environment
func WithEndpoint(env model.Environment, url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.endpoints[env] = url
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a WSFEv1 client backed by tickets
func NewClient(tickets TicketSource, opts ...Option) *Client {
	c := &Client{
		soap:      soap.NewClient(),
		tickets:   tickets,
		endpoints: make(map[model.Environment]string),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastVoucher returns the highest number the authority has authorized for
// the (account, point of sale, voucher type) tuple, or 0 when there is none.
func (c *Client) LastVoucher(ctx context.Context, account model.Account, pointOfSale int, voucherType model.VoucherType) (int64, error) {
	ticket, err := c.tickets.GetTicket(ctx, account)
	if err != nil {
		return 0, err
	}

	req := lastVoucherRequest{
		Auth:     newAuthHeader(ticket, account.CUIT),
		PtoVta:   pointOfSale,
		CbteTipo: int(voucherType),
	}

	result, err := c.call(ctx, account, OpLastVoucher, req)
	if err != nil {
		return 0, err
	}
	if errs := collect(result, "Errors/Err"); len(errs) > 0 {
		return 0, c.headerError(account, OpLastVoucher, errs)
	}

	raw := soap.Text(result, "CbteNro")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, model.NewAuthTransportError(OpLastVoucher, fmt.Sprintf("invalid CbteNro %q", raw), err)
	}

	c.logger.Debug().
		Str("account", account.ID).
		Int("pos", pointOfSale).
		Str("type", voucherType.Code()).
		Int64("last", n).
		Msg("last authorized voucher")
	return n, nil
}

// Authorize submits one voucher. The request is validated before any network
// call. An approved result may carry observations as warnings; a rejection
// is returned as a FiscalRejectionError carrying every observation.
func (c *Client) Authorize(ctx context.Context, account model.Account, req model.AuthorizationRequest) (model.AuthorizationResult, error) {
	if err := req.Validate(); err != nil {
		return model.AuthorizationResult{}, err
	}

	ticket, err := c.tickets.GetTicket(ctx, account)
	if err != nil {
		return model.AuthorizationResult{}, err
	}

	payload := buildAuthorizeRequest(newAuthHeader(ticket, account.CUIT), req)

	log := c.logger.With().
		Str("account", account.ID).
		Int("pos", req.PointOfSale).
		Str("type", req.VoucherType.Code()).
		Int64("number", req.VoucherNumber).
		Logger()
	log.Info().Msg("requesting authorization")

	result, err := c.call(ctx, account, OpAuthorize, payload)
	if err != nil {
		return model.AuthorizationResult{}, err
	}
	if errs := collect(result, "Errors/Err"); len(errs) > 0 {
		return model.AuthorizationResult{}, c.headerError(account, OpAuthorize, errs)
	}

	detail := result.FindElement("FeDetResp/FECAEDetResponse")
	if detail == nil {
		return model.AuthorizationResult{}, model.NewAuthTransportError(OpAuthorize, "response has no detail record", nil)
	}

	out := model.AuthorizationResult{
		VoucherNumber: req.VoucherNumber,
		Observations:  collect(detail, "Observaciones/Obs"),
		Events:        collect(result, "Events/Evt"),
	}

	switch outcome := soap.Text(detail, "Resultado"); outcome {
	case "A":
		cae := soap.Text(detail, "CAE")
		expiry, err := model.ParseCompactDate(soap.Text(detail, "CAEFchVto"))
		if cae == "" || err != nil {
			return model.AuthorizationResult{}, model.NewAuthTransportError(OpAuthorize, "approved response without a usable CAE", err)
		}
		out.Approved = true
		out.CAE = cae
		out.CAEExpiresAt = expiry
		if len(out.Observations) > 0 {
			log.Warn().Str("observations", model.JoinObservations(out.Observations)).Msg("authorized with observations")
		}
		log.Info().Str("cae", cae).Str("cae_expires", expiry.ISO()).Msg("voucher authorized")
		return out, nil
	case "R":
		log.Warn().Str("observations", model.JoinObservations(out.Observations)).Msg("voucher rejected")
		return model.AuthorizationResult{}, model.NewFiscalRejectionError(OpAuthorize, out.Observations)
	default:
		return model.AuthorizationResult{}, model.NewAuthTransportError(OpAuthorize, fmt.Sprintf("unexpected Resultado %q", outcome), nil)
	}
}

// GetVoucher reads back a previously authorized voucher. A voucher the
// authority does not know returns model.ErrVoucherNotFound.
func (c *Client) GetVoucher(ctx context.Context, account model.Account, pointOfSale int, voucherType model.VoucherType, number int64) (model.VoucherRecord, error) {
	ticket, err := c.tickets.GetTicket(ctx, account)
	if err != nil {
		return model.VoucherRecord{}, err
	}

	req := getVoucherRequest{
		Auth:  newAuthHeader(ticket, account.CUIT),
		Query: compQuery{CbteTipo: int(voucherType), CbteNro: number, PtoVta: pointOfSale},
	}

	result, err := c.call(ctx, account, OpGetVoucher, req)
	if err != nil {
		return model.VoucherRecord{}, err
	}
	if errs := collect(result, "Errors/Err"); len(errs) > 0 {
		for _, e := range errs {
			if e.Code == codeNoResults {
				return model.VoucherRecord{}, fmt.Errorf("%w: pos %d type %s number %d", model.ErrVoucherNotFound, pointOfSale, voucherType, number)
			}
		}
		return model.VoucherRecord{}, c.headerError(account, OpGetVoucher, errs)
	}

	get := result.FindElement("ResultGet")
	if get == nil {
		return model.VoucherRecord{}, model.NewAuthTransportError(OpGetVoucher, "response has no ResultGet", nil)
	}
	return parseVoucherRecord(get)
}

// ServerStatus probes the service's infrastructure. It needs no ticket.
func (c *Client) ServerStatus(ctx context.Context, env model.Environment) (model.ServerStatus, error) {
	resp, err := c.soap.Call(ctx, c.endpoint(env), action(OpDummy), OpDummy, dummyRequest{}, arNamespace)
	if err != nil {
		return model.ServerStatus{}, err
	}
	result := resp.FindElement("FEDummyResult")
	return model.ServerStatus{
		AppServer:  soap.Text(result, "AppServer"),
		DbServer:   soap.Text(result, "DbServer"),
		AuthServer: soap.Text(result, "AuthServer"),
	}, nil
}

func (c *Client) call(ctx context.Context, account model.Account, op string, payload interface{}) (*etree.Element, error) {
	resp, err := c.soap.Call(ctx, c.endpoint(account.Credential.Environment), action(op), op, payload, arNamespace)
	if err != nil {
		var te *model.AuthTransportError
		if errors.As(err, &te) && te.Timeout {
			c.logger.Warn().Str("account", account.ID).Str("operation", op).
				Msg("request timed out; query the last voucher before retrying")
		}
		return nil, err
	}
	result := resp.FindElement(op + "Result")
	if result == nil {
		return nil, model.NewAuthTransportError(op, "response has no "+op+"Result", nil)
	}
	return result, nil
}

// headerError turns a header-level Errors block into a transport error with
// the authority's text verbatim. A rejected token also drops the cached ticket.
func (c *Client) headerError(account model.Account, op string, errs []model.Observation) error {
	for _, e := range errs {
		if e.Code == codeTokenInvalid {
			if inv, ok := c.tickets.(invalidator); ok {
				inv.Invalidate(account.ID)
			}
		}
	}
	c.logger.Error().Str("account", account.ID).Str("operation", op).Str("errors", model.JoinObservations(errs)).Msg("service returned errors")
	msg := errs[0].Message
	if len(errs) > 1 {
		msg += "; " + model.JoinObservations(errs[1:])
	}
	return &model.AuthTransportError{
		Operation: op,
		Code:      strconv.Itoa(errs[0].Code),
		Message:   msg,
	}
}

func (c *Client) endpoint(env model.Environment) string {
	if url, ok := c.endpoints[env]; ok {
		return url
	}
	return env.Endpoints().WSFE
}
