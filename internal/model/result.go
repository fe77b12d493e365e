package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Observation is a code/message pair returned by the authority
type Observation struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (o Observation) String() string {
	return fmt.Sprintf("(%d) %s", o.Code, o.Message)
}

// AuthorizationResult is the outcome of one authorization. CAE and
// CAEExpiresAt are set together, and only when Approved.
type AuthorizationResult struct {
	Approved      bool          `json:"approved"`
	CAE           string        `json:"cae,omitempty"`
	CAEExpiresAt  Date          `json:"cae_expires_at"`
	VoucherNumber int64         `json:"voucher_number"`
	Observations  []Observation `json:"observations,omitempty"`
	Events        []Observation `json:"events,omitempty"`
}

// VoucherRecord is a previously authorized voucher as read back from the authority
type VoucherRecord struct {
	PointOfSale    int             `json:"point_of_sale"`
	VoucherType    VoucherType     `json:"voucher_type"`
	VoucherNumber  int64           `json:"voucher_number"`
	Concept        Concept         `json:"concept"`
	DocumentType   DocumentType    `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	VoucherDate    Date            `json:"voucher_date"`
	Totals         Totals          `json:"totals"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	Result         string          `json:"result"`
	EmissionType   string          `json:"emission_type"`
	CAE            string          `json:"cae,omitempty"`
	CAEExpiresAt   Date            `json:"cae_expires_at"`
	ProcessedAt    string          `json:"processed_at,omitempty"`
	Observations   []Observation   `json:"observations,omitempty"`
}

// QRPayload is the versioned record encoded into the voucher's QR code
type QRPayload struct {
	Version           int         `json:"ver"`
	Date              string      `json:"fecha"`
	IssuerCUIT        json.Number `json:"cuit"`
	PointOfSale       int         `json:"ptoVta"`
	VoucherType       int         `json:"tipoCmp"`
	VoucherNumber     int64       `json:"nroCmp"`
	Total             json.Number `json:"importe"`
	Currency          string      `json:"moneda"`
	ExchangeRate      json.Number `json:"ctz"`
	ReceiverDocType   int         `json:"tipoDocRec"`
	ReceiverDocNum    json.Number `json:"nroDocRec"`
	AuthorizationKind string      `json:"tipoCodAut"`
	CAE               json.Number `json:"codAut"`
}

// ProofArtifacts are the printable proofs derived from an authorized voucher
type ProofArtifacts struct {
	QR      QRPayload `json:"qr"`
	QRJSON  string    `json:"qr_json"`
	QRURL   string    `json:"qr_url"`
	Barcode string    `json:"barcode"`
}

// ServerStatus is the authority's infrastructure health as reported by FEDummy
type ServerStatus struct {
	AppServer  string `json:"app_server"`
	DbServer   string `json:"db_server"`
	AuthServer string `json:"auth_server"`
}

// OK reports whether every server answered OK
func (s ServerStatus) OK() bool {
	return s.AppServer == "OK" && s.DbServer == "OK" && s.AuthServer == "OK"
}
