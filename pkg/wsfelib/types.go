// Package wsfelib provides a public API for authorizing AFIP electronic
// vouchers through WSAA and WSFEv1.
//
// Example usage:
//
//	client, err := wsfelib.New(wsfelib.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	account, err := wsfelib.NewAccount("acme", "20123456789", wsfelib.EnvironmentTest, keyPEM, certPEM)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	emission, err := client.Authorize(ctx, account, draft)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(emission.Result.CAE, emission.Proof.QRURL)
package wsfelib

import (
	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
)

// Re-export core types for public API
type (
	Account              = model.Account
	Credential           = model.Credential
	Environment          = model.Environment
	SessionTicket        = model.SessionTicket
	Draft                = model.Draft
	Totals               = model.Totals
	ServicePeriod        = model.ServicePeriod
	LinkedVoucher        = model.LinkedVoucher
	TaxRateLine          = model.TaxRateLine
	LineItem             = model.LineItem
	TaxBreakdown         = model.TaxBreakdown
	AuthorizationRequest = model.AuthorizationRequest
	AuthorizationResult  = model.AuthorizationResult
	VoucherRecord        = model.VoucherRecord
	ProofArtifacts       = model.ProofArtifacts
	QRPayload            = model.QRPayload
	ServerStatus         = model.ServerStatus
	Observation          = model.Observation
	Date                 = model.Date
	VoucherType          = model.VoucherType
	Concept              = model.Concept
	DocumentType         = model.DocumentType
	VATRate              = model.VATRate
	ServicePeriodPolicy  = model.ServicePeriodPolicy

	Emission    = emitter.Emission
	BatchResult = emitter.BatchResult
	BatchItem   = emitter.BatchItem
)

// MaxPointOfSale is the widest point of sale accepted for authorization
const MaxPointOfSale = model.MaxPointOfSale

// Re-export environments
const (
	EnvironmentTest       = model.EnvironmentTest
	EnvironmentProduction = model.EnvironmentProduction
)

// Re-export voucher types
const (
	VoucherA   = model.VoucherA
	VoucherNDA = model.VoucherNDA
	VoucherNCA = model.VoucherNCA
	VoucherB   = model.VoucherB
	VoucherNDB = model.VoucherNDB
	VoucherNCB = model.VoucherNCB
	VoucherC   = model.VoucherC
	VoucherNDC = model.VoucherNDC
	VoucherNCC = model.VoucherNCC
	VoucherM   = model.VoucherM
	VoucherNDM = model.VoucherNDM
	VoucherNCM = model.VoucherNCM
)

// Re-export concepts
const (
	ConceptGoods    = model.ConceptGoods
	ConceptServices = model.ConceptServices
	ConceptMixed    = model.ConceptMixed
)

// Re-export document types
const (
	DocumentCUIT      = model.DocumentCUIT
	DocumentCUIL      = model.DocumentCUIL
	DocumentDNI       = model.DocumentDNI
	DocumentAnonymous = model.DocumentAnonymous
)

// Re-export VAT rates
const (
	VATNonTaxed = model.VATNonTaxed
	VATExempt   = model.VATExempt
	VAT0        = model.VAT0
	VAT10_5     = model.VAT10_5
	VAT21       = model.VAT21
	VAT27       = model.VAT27
	VAT5        = model.VAT5
	VAT2_5      = model.VAT2_5
)

// Re-export service period policies
const (
	ServicePeriodStrict       = model.ServicePeriodStrict
	ServicePeriodDefaultToday = model.ServicePeriodDefaultToday
)

// Re-export error types
type (
	AuthCredentialError  = model.AuthCredentialError
	AuthTransportError   = model.AuthTransportError
	ValidationError      = model.ValidationError
	FiscalRejectionError = model.FiscalRejectionError
	ProofError           = model.ProofError
)

// Re-export helpers
var (
	ErrVoucherNotFound = model.ErrVoucherNotFound
	IsRetryable        = model.IsRetryable
	InferDocument      = model.InferDocument
	BuildTaxBreakdown  = model.BuildTaxBreakdown
	NewDate            = model.NewDate
	ParseDate          = model.ParseDate
	ParseVoucherType   = model.ParseVoucherType
)
