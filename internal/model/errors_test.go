package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/wsfe-client/internal/model"
)

func TestFiscalRejectionError_ContainsEveryObservation(t *testing.T) {
	err := model.NewFiscalRejectionError("FECAESolicitar", []model.Observation{
		{Code: 10016, Message: "El numero o fecha del comprobante no se corresponde con el proximo a autorizar."},
		{Code: 10242, Message: "El campo Condicion Frente al IVA del receptor es obligatorio."},
	})

	msg := err.Error()
	assert.Contains(t, msg, "(10016) El numero o fecha del comprobante no se corresponde con el proximo a autorizar.")
	assert.Contains(t, msg, "(10242) El campo Condicion Frente al IVA del receptor es obligatorio.")
	assert.False(t, model.IsRetryable(err))
}

func TestAuthTransportError(t *testing.T) {
	cause := context.DeadlineExceeded
	err := model.NewTimeoutError("FECompUltimoAutorizado", cause)

	assert.True(t, err.Timeout)
	assert.True(t, err.IsRetryable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout")

	wrapped := fmt.Errorf("emit: %w", err)
	assert.True(t, model.IsRetryable(wrapped))

	coded := &model.AuthTransportError{Operation: "FECAESolicitar", Code: "600", Message: "ValidacionDeToken: No validaron las credenciales"}
	assert.Equal(t, "transport error [FECAESolicitar]: (600) ValidacionDeToken: No validaron las credenciales", coded.Error())
}

func TestAuthCredentialError(t *testing.T) {
	cause := errors.New("asn1: structure error")
	err := model.NewAuthCredentialError("acme", "failed to parse private key", cause)

	assert.Equal(t, "credential error [acme]: failed to parse private key (asn1: structure error)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, model.IsRetryable(err))
}

func TestValidationError(t *testing.T) {
	err := model.NewValidationError("point_of_sale", 0, "range", "must be between 1 and 99999")
	assert.Equal(t, "validation failed on point_of_sale: must be between 1 and 99999 (value=0, rule=range)", err.Error())

	err = model.NewValidationError("service_period", nil, "required", "missing")
	assert.Equal(t, "validation failed on service_period: missing (rule=required)", err.Error())
}

func TestAccount_Validate(t *testing.T) {
	acct := model.Account{
		ID:   "acme",
		CUIT: "20123456789",
		Credential: model.Credential{
			PrivateKeyPEM:  []byte("key"),
			CertificatePEM: []byte("cert"),
			Environment:    model.EnvironmentTest,
		},
	}
	require.NoError(t, acct.Validate())

	bad := acct
	bad.CUIT = "2012345678"
	var ce *model.AuthCredentialError
	require.ErrorAs(t, bad.Validate(), &ce)

	bad = acct
	bad.Credential.PrivateKeyPEM = nil
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Contains(t, ce.Message, "private key")
}
