package server

import (
	"strconv"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/proof"
)

// BatchRequest is the body of the batch endpoint
type BatchRequest struct {
	Drafts []model.Draft `json:"drafts"`
}

// ProofRequest rebuilds proofs for a voucher authorized earlier
type ProofRequest struct {
	IssuerCUIT string                     `json:"issuer_cuit" binding:"required"`
	Request    model.AuthorizationRequest `json:"request"`
	Result     model.AuthorizationResult  `json:"result"`
}

func (r ProofRequest) build() (model.ProofArtifacts, error) {
	return proof.Build(r.IssuerCUIT, r.Request, r.Result)
}

// LastVoucherResponse is the response for the last voucher endpoint
type LastVoucherResponse struct {
	PointOfSale int               `json:"point_of_sale"`
	VoucherType model.VoucherType `json:"voucher_type"`
	Last        int64             `json:"last"`
	Next        int64             `json:"next"`
}

// UpstreamResponse reports the authority's infrastructure status
type UpstreamResponse struct {
	Environment string             `json:"environment"`
	OK          bool               `json:"ok"`
	Status      model.ServerStatus `json:"status"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error        string              `json:"error"`
	Kind         string              `json:"kind,omitempty"`
	Field        string              `json:"field,omitempty"`
	Code         string              `json:"code,omitempty"`
	Retryable    bool                `json:"retryable"`
	Observations []model.Observation `json:"observations,omitempty"`

	// Set when the voucher was authorized but its proofs failed
	CAE           string            `json:"cae,omitempty"`
	VoucherNumber int64             `json:"voucher_number,omitempty"`
	Emission      *emitter.Emission `json:"emission,omitempty"`
}

func parseTuple(posRaw, typeRaw string) (int, model.VoucherType, error) {
	pos, err := strconv.Atoi(posRaw)
	if err != nil || pos < 1 || pos > 99999 {
		return 0, 0, model.NewValidationError("pos", posRaw, "range", "point of sale must be between 1 and 99999")
	}
	if typeRaw == "" {
		return 0, 0, model.NewValidationError("type", nil, "required", "voucher type is required")
	}
	voucherType, err := model.ParseVoucherType(typeRaw)
	if err != nil {
		return 0, 0, err
	}
	return pos, voucherType, nil
}

func parseNumber(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, model.NewValidationError("number", raw, "min", "voucher number must be a positive integer")
	}
	return n, nil
}
