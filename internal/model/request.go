package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	dec "github.com/rezonia/wsfe-client/internal/decimal"
)

// MaxPointOfSale is the widest point of sale the printed barcode can carry
const MaxPointOfSale = 9999

// ServicePeriodPolicy decides what happens when a services voucher has no period
type ServicePeriodPolicy int

const (
	// ServicePeriodStrict fails validation when any period date is missing
	ServicePeriodStrict ServicePeriodPolicy = iota
	// ServicePeriodDefaultToday fills missing dates with the voucher date
	ServicePeriodDefaultToday
)

// ParseServicePeriodPolicy accepts "strict" or "default_today"
func ParseServicePeriodPolicy(s string) (ServicePeriodPolicy, error) {
	switch s {
	case "", "strict":
		return ServicePeriodStrict, nil
	case "default_today", "today":
		return ServicePeriodDefaultToday, nil
	}
	return 0, NewValidationError("service_period_policy", s, "enum", "must be strict or default_today")
}

// Totals are the five monetary totals of a voucher plus other tributes
type Totals struct {
	Net      decimal.Decimal `json:"net"`
	Exempt   decimal.Decimal `json:"exempt"`
	NonTaxed decimal.Decimal `json:"non_taxed"`
	Tax      decimal.Decimal `json:"tax"`
	Tributes decimal.Decimal `json:"tributes"`
	Total    decimal.Decimal `json:"total"`
}

// ServicePeriod is mandatory for services and mixed vouchers
type ServicePeriod struct {
	From       Date `json:"from"`
	To         Date `json:"to"`
	PaymentDue Date `json:"payment_due"`
}

func (p ServicePeriod) complete() bool {
	return !p.From.IsZero() && !p.To.IsZero() && !p.PaymentDue.IsZero()
}

// LinkedVoucher references the voucher a credit or debit note adjusts
type LinkedVoucher struct {
	Type        VoucherType `json:"type"`
	PointOfSale int         `json:"point_of_sale"`
	Number      int64       `json:"number"`
}

// Draft is everything needed to authorize a voucher except its number,
// which is only known right before submission.
type Draft struct {
	PointOfSale          int             `json:"point_of_sale"`
	VoucherType          VoucherType     `json:"voucher_type"`
	Concept              Concept         `json:"concept"`
	DocumentType         DocumentType    `json:"document_type"`
	DocumentNumber       string          `json:"document_number"`
	VoucherDate          Date            `json:"voucher_date"`
	Totals               Totals          `json:"totals"`
	Currency             string          `json:"currency"`
	ExchangeRate         decimal.Decimal `json:"exchange_rate"`
	TaxRateLines         []TaxRateLine   `json:"tax_rate_lines,omitempty"`
	ServicePeriod        *ServicePeriod  `json:"service_period,omitempty"`
	LinkedVouchers       []LinkedVoucher `json:"linked_vouchers,omitempty"`
	ReceiverTaxCondition int             `json:"receiver_tax_condition,omitempty"`
}

// AuthorizationRequest is a draft bound to a voucher number. One request
// authorizes exactly one voucher.
type AuthorizationRequest struct {
	Draft
	VoucherNumber int64 `json:"voucher_number"`
}

// Request binds the draft to number after applying the service period policy
// and validating the result.
func (d Draft) Request(number int64, policy ServicePeriodPolicy) (AuthorizationRequest, error) {
	req := AuthorizationRequest{Draft: d, VoucherNumber: number}
	if d.Currency == "" {
		req.Currency = "PES"
	}
	if d.ExchangeRate.IsZero() {
		req.ExchangeRate = decimal.NewFromInt(1)
	}
	if d.Concept.RequiresServicePeriod() && policy == ServicePeriodDefaultToday {
		req.ServicePeriod = fillPeriod(d.ServicePeriod, d.VoucherDate)
	}
	if err := req.Validate(); err != nil {
		return AuthorizationRequest{}, err
	}
	return req, nil
}

func fillPeriod(p *ServicePeriod, today Date) *ServicePeriod {
	out := ServicePeriod{}
	if p != nil {
		out = *p
	}
	if out.From.IsZero() {
		out.From = today
	}
	if out.To.IsZero() {
		out.To = today
	}
	if out.PaymentDue.IsZero() {
		out.PaymentDue = today
	}
	return &out
}

// Validate checks every local precondition of the request
func (r AuthorizationRequest) Validate() error {
	if r.PointOfSale < 1 || r.PointOfSale > MaxPointOfSale {
		return NewValidationError("point_of_sale", r.PointOfSale, "range", fmt.Sprintf("must be between 1 and %d", MaxPointOfSale))
	}
	if !r.VoucherType.Valid() {
		return NewValidationError("voucher_type", int(r.VoucherType), "enum", "unknown voucher type")
	}
	if r.VoucherNumber < 1 {
		return NewValidationError("voucher_number", r.VoucherNumber, "min", "must be at least 1")
	}
	if !r.Concept.Valid() {
		return NewValidationError("concept", int(r.Concept), "enum", "must be goods, services or mixed")
	}
	if r.VoucherDate.IsZero() {
		return NewValidationError("voucher_date", nil, "required", "voucher date is required")
	}
	if err := r.validateDocument(); err != nil {
		return err
	}
	if err := r.validatePeriod(); err != nil {
		return err
	}
	if r.VoucherType.IsNote() && len(r.LinkedVouchers) == 0 {
		return NewValidationError("linked_vouchers", nil, "required",
			fmt.Sprintf("%s requires at least one linked voucher", r.VoucherType.Class()))
	}
	if !r.VoucherType.IsNote() && len(r.LinkedVouchers) > 0 {
		return NewValidationError("linked_vouchers", len(r.LinkedVouchers), "forbidden", "only credit and debit notes carry linked vouchers")
	}
	for i, lv := range r.LinkedVouchers {
		if !lv.Type.Valid() || lv.PointOfSale < 1 || lv.Number < 1 {
			return NewValidationError(fmt.Sprintf("linked_vouchers[%d]", i), lv, "reference", "type, point of sale and number are required")
		}
	}
	if len(r.Currency) != 3 {
		return NewValidationError("currency", r.Currency, "length", "must be a 3 character currency id")
	}
	if !dec.IsPositive(r.ExchangeRate) {
		return NewValidationError("exchange_rate", r.ExchangeRate.String(), "positive", "must be greater than zero")
	}
	return r.validateAmounts()
}

func (r AuthorizationRequest) validateDocument() error {
	switch r.DocumentType {
	case DocumentCUIT, DocumentCUIL:
		if len(r.DocumentNumber) != 11 || !isDigits(r.DocumentNumber) {
			return NewValidationError("document_number", r.DocumentNumber, "format", "CUIT/CUIL must be 11 digits")
		}
	case DocumentDNI:
		if !isDigits(r.DocumentNumber) || len(r.DocumentNumber) < 7 || len(r.DocumentNumber) > 8 {
			return NewValidationError("document_number", r.DocumentNumber, "format", "DNI must be 7 or 8 digits")
		}
	case DocumentAnonymous:
		if r.DocumentNumber != AnonymousNumber {
			return NewValidationError("document_number", r.DocumentNumber, "format", "anonymous receiver must use number 0")
		}
	default:
		return NewValidationError("document_type", int(r.DocumentType), "enum", "unsupported document type")
	}
	return nil
}

func (r AuthorizationRequest) validatePeriod() error {
	if !r.Concept.RequiresServicePeriod() {
		if r.ServicePeriod != nil {
			return NewValidationError("service_period", nil, "forbidden", "goods vouchers must not carry a service period")
		}
		return nil
	}
	if r.ServicePeriod == nil || !r.ServicePeriod.complete() {
		return NewValidationError("service_period", nil, "required",
			fmt.Sprintf("%s vouchers require from, to and payment due dates", r.Concept))
	}
	if r.ServicePeriod.To.Before(r.ServicePeriod.From.Time) {
		return NewValidationError("service_period.to", r.ServicePeriod.To.ISO(), "order", "period end precedes period start")
	}
	return nil
}

func (r AuthorizationRequest) validateAmounts() error {
	t := r.Totals
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"totals.net", t.Net},
		{"totals.exempt", t.Exempt},
		{"totals.non_taxed", t.NonTaxed},
		{"totals.tax", t.Tax},
		{"totals.tributes", t.Tributes},
		{"totals.total", t.Total},
	}
	for _, a := range amounts {
		if !dec.IsNonNegative(a.value) {
			return NewValidationError(a.name, a.value.String(), "non_negative", "amounts must not be negative")
		}
	}

	sum := dec.Sum([]decimal.Decimal{t.Net, t.Exempt, t.NonTaxed, t.Tax, t.Tributes})
	if !dec.Reconciles(sum, t.Total) {
		return NewValidationError("totals.total", t.Total.String(), "reconcile",
			fmt.Sprintf("total does not match net+exempt+non_taxed+tax+tributes = %s", dec.Format(sum)))
	}

	if !r.VoucherType.DiscriminatesVAT() {
		if len(r.TaxRateLines) > 0 {
			return NewValidationError("tax_rate_lines", len(r.TaxRateLines), "forbidden", "class C vouchers carry no VAT breakdown")
		}
		if !t.Tax.IsZero() {
			return NewValidationError("totals.tax", t.Tax.String(), "zero", "class C vouchers carry no VAT")
		}
		return nil
	}

	base, tax := decimal.Zero, decimal.Zero
	for i, l := range r.TaxRateLines {
		if !l.RateID.Valid() || l.RateID.Excluded() {
			return NewValidationError(fmt.Sprintf("tax_rate_lines[%d].rate_id", i), int(l.RateID), "enum", "rate must be a taxed VAT rate")
		}
		base = base.Add(l.NetBase)
		tax = tax.Add(l.TaxAmount)
	}
	if !tax.Equal(t.Tax) {
		return NewValidationError("totals.tax", t.Tax.String(), "reconcile",
			fmt.Sprintf("tax does not match VAT breakdown sum %s", dec.Format(tax)))
	}
	if base.Sub(t.Net).GreaterThan(dec.Cent) {
		return NewValidationError("tax_rate_lines", dec.Format(base), "reconcile", "VAT bases exceed the net total")
	}
	return nil
}
