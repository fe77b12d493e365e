package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/wsfe-client/internal/model"
)

// writeError maps the typed errors to a status code and body
func writeError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	abort(c, err, status, resp)
}

// errorResponse maps err to a status code and body. A proof error is checked
// first: the voucher behind it is authorized even though the cause is a
// validation failure.
func errorResponse(err error) (int, ErrorResponse) {
	var (
		pe *model.ProofError
		ve *model.ValidationError
		fe *model.FiscalRejectionError
		ce *model.AuthCredentialError
		te *model.AuthTransportError
	)

	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	switch {
	case errors.As(err, &pe):
		resp.Kind = "proof_failed"
		resp.CAE = pe.CAE
		resp.VoucherNumber = pe.VoucherNumber
	case errors.Is(err, model.ErrVoucherNotFound):
		status = http.StatusNotFound
		resp.Kind = "not_found"
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		resp.Kind = "validation"
		resp.Field = ve.Field
	case errors.As(err, &fe):
		status = http.StatusUnprocessableEntity
		resp.Kind = "rejected"
		resp.Observations = fe.Observations
	case errors.As(err, &ce):
		status = http.StatusPreconditionFailed
		resp.Kind = "credential"
	case errors.As(err, &te):
		status = http.StatusBadGateway
		if te.Timeout {
			status = http.StatusGatewayTimeout
		}
		resp.Kind = "transport"
		resp.Code = te.Code
		resp.Retryable = true
	}
	return status, resp
}

func abort(c *gin.Context, err error, status int, resp ErrorResponse) {
	if status >= http.StatusInternalServerError {
		requestLogger(c).Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		requestLogger(c).Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, resp)
}

// writeBindError reports a body that could not be decoded. Field-level
// validation errors raised while decoding keep their 422.
func writeBindError(c *gin.Context, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeError(c, err)
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body: " + err.Error(),
		Kind:  "bad_request",
	})
}
