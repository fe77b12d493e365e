package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/server"
	"github.com/rezonia/wsfe-client/internal/store"
)

var account = model.Account{ID: "acme", CUIT: "20123456789"}

type stubEmitter struct {
	err    error
	drafts []model.Draft
}

func (s *stubEmitter) Emit(_ context.Context, _ model.Account, draft model.Draft) (*emitter.Emission, error) {
	s.drafts = append(s.drafts, draft)
	emission := &emitter.Emission{
		Request: model.AuthorizationRequest{Draft: draft, VoucherNumber: 43},
		Result:  model.AuthorizationResult{Approved: true, CAE: "75123456789012", VoucherNumber: 43},
	}
	var pe *model.ProofError
	if errors.As(s.err, &pe) {
		return emission, s.err
	}
	if s.err != nil {
		return nil, s.err
	}
	return emission, nil
}

func (s *stubEmitter) EmitBatch(_ context.Context, _ model.Account, drafts []model.Draft) *emitter.BatchResult {
	result := &emitter.BatchResult{ID: "batch-1"}
	for i := range drafts {
		result.Items = append(result.Items, emitter.BatchItem{Index: i, Status: emitter.StatusAuthorized})
	}
	return result
}

type stubAuthority struct {
	last      int64
	err       error
	status    model.ServerStatus
	gotPos    int
	gotType   model.VoucherType
	gotNumber int64
}

func (s *stubAuthority) LastVoucher(_ context.Context, _ model.Account, pos int, vt model.VoucherType) (int64, error) {
	s.gotPos, s.gotType = pos, vt
	return s.last, s.err
}

func (s *stubAuthority) GetVoucher(_ context.Context, _ model.Account, pos int, vt model.VoucherType, number int64) (model.VoucherRecord, error) {
	s.gotPos, s.gotType, s.gotNumber = pos, vt, number
	if s.err != nil {
		return model.VoucherRecord{}, s.err
	}
	return model.VoucherRecord{PointOfSale: pos, VoucherType: vt, VoucherNumber: number, Result: "A", CAE: "75123456789012"}, nil
}

func (s *stubAuthority) ServerStatus(context.Context, model.Environment) (model.ServerStatus, error) {
	return s.status, s.err
}

func newTestServer(em *stubEmitter, auth *stubAuthority) *server.Server {
	config := &server.Config{
		Address: ":8080",
		Debug:   true,
	}
	accounts := store.StaticAccountStore{"acme": account}
	return server.NewServer(config, accounts, em, auth, zerolog.Nop())
}

func do(t *testing.T, srv *server.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) server.ErrorResponse {
	t.Helper()
	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

const draftJSON = `{
  "point_of_sale": 1,
  "voucher_type": "A",
  "concept": 1,
  "document_type": 80,
  "document_number": "30712345671",
  "voucher_date": "2025-01-15",
  "totals": {"net": "1000", "exempt": "0", "non_taxed": "0", "tax": "210", "tributes": "0", "total": "1210"},
  "tax_rate_lines": [{"rate_id": 5, "net_base": "1000", "tax_amount": "210"}]
}`

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubEmitter{}, &stubAuthority{})

	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
	assert.NotEmpty(t, w.Header().Get(server.RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(&stubEmitter{}, &stubAuthority{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(server.RequestIDHeader))
}

func TestUpstreamEndpoint(t *testing.T) {
	auth := &stubAuthority{status: model.ServerStatus{AppServer: "OK", DbServer: "OK", AuthServer: "OK"}}
	srv := newTestServer(&stubEmitter{}, auth)

	w := do(t, srv, http.MethodGet, "/health/upstream", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp server.UpstreamResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "TEST", resp.Environment)

	auth.status.DbServer = "DOWN"
	w = do(t, srv, http.MethodGet, "/health/upstream", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEmitEndpoint(t *testing.T) {
	em := &stubEmitter{}
	srv := newTestServer(em, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", draftJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var emission emitter.Emission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &emission))
	assert.Equal(t, int64(43), emission.Request.VoucherNumber)
	assert.Equal(t, "75123456789012", emission.Result.CAE)

	require.Len(t, em.drafts, 1)
	assert.Equal(t, model.VoucherA, em.drafts[0].VoucherType)
	assert.Equal(t, "1210", em.drafts[0].Totals.Total.String())
}

func TestEmitEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", model.NewValidationError("totals.total", "1", "reconcile", "mismatch"), http.StatusUnprocessableEntity, "validation"},
		{"rejection", model.NewFiscalRejectionError("FECAESolicitar", []model.Observation{{Code: 10016, Message: "bad number"}}), http.StatusUnprocessableEntity, "rejected"},
		{"credential", model.NewAuthCredentialError("acme", "certificate expired", nil), http.StatusPreconditionFailed, "credential"},
		{"transport", model.NewAuthTransportError("FECAESolicitar", "request failed", nil), http.StatusBadGateway, "transport"},
		{"timeout", model.NewTimeoutError("FECAESolicitar", context.DeadlineExceeded), http.StatusGatewayTimeout, "transport"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubEmitter{err: tt.err}, &stubAuthority{})

			w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", draftJSON)
			assert.Equal(t, tt.status, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.kind == "transport", resp.Retryable)
		})
	}
}

func TestEmitEndpoint_ProofFailure(t *testing.T) {
	cause := model.NewValidationError("point_of_sale", 12345, "width", "point of sale must fit in 4 digits")
	srv := newTestServer(&stubEmitter{err: model.NewProofError(43, "75123456789012", cause)}, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", draftJSON)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "proof_failed", resp.Kind)
	assert.Empty(t, resp.Field)
	assert.False(t, resp.Retryable)
	assert.Equal(t, "75123456789012", resp.CAE)
	assert.Equal(t, int64(43), resp.VoucherNumber)
	require.NotNil(t, resp.Emission)
	assert.Equal(t, "75123456789012", resp.Emission.Result.CAE)
}

func TestEmitEndpoint_RejectionObservations(t *testing.T) {
	obs := []model.Observation{{Code: 10016, Message: "bad number"}, {Code: 10048, Message: "bad total"}}
	srv := newTestServer(&stubEmitter{err: model.NewFiscalRejectionError("FECAESolicitar", obs)}, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", draftJSON)
	resp := decodeError(t, w)
	assert.Equal(t, obs, resp.Observations)
	assert.Contains(t, resp.Error, "(10016) bad number")
	assert.Contains(t, resp.Error, "(10048) bad total")
}

func TestEmitEndpoint_BadBody(t *testing.T) {
	em := &stubEmitter{}
	srv := newTestServer(em, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/accounts/acme/vouchers", `{"voucher_type": "Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "voucher_type", decodeError(t, w).Field)

	assert.Empty(t, em.drafts)
}

func TestEmitEndpoint_UnknownAccount(t *testing.T) {
	em := &stubEmitter{}
	srv := newTestServer(em, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/other/vouchers", draftJSON)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Empty(t, em.drafts)
}

func TestBatchEndpoint(t *testing.T) {
	srv := newTestServer(&stubEmitter{}, &stubAuthority{})

	w := do(t, srv, http.MethodPost, "/api/v1/accounts/acme/batches", `{"drafts": [`+draftJSON+`,`+draftJSON+`]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result emitter.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "batch-1", result.ID)
	assert.Len(t, result.Items, 2)

	w = do(t, srv, http.MethodPost, "/api/v1/accounts/acme/batches", `{"drafts": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLastEndpoint(t *testing.T) {
	auth := &stubAuthority{last: 42}
	srv := newTestServer(&stubEmitter{}, auth)

	w := do(t, srv, http.MethodGet, "/api/v1/accounts/acme/last?pos=3&type=B", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.LastVoucherResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Last)
	assert.Equal(t, int64(43), resp.Next)
	assert.Equal(t, 3, auth.gotPos)
	assert.Equal(t, model.VoucherB, auth.gotType)

	w = do(t, srv, http.MethodGet, "/api/v1/accounts/acme/last?pos=0&type=B", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "pos", decodeError(t, w).Field)

	w = do(t, srv, http.MethodGet, "/api/v1/accounts/acme/last?pos=1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetVoucherEndpoint(t *testing.T) {
	auth := &stubAuthority{}
	srv := newTestServer(&stubEmitter{}, auth)

	w := do(t, srv, http.MethodGet, "/api/v1/accounts/acme/vouchers/1/11/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.VoucherC, auth.gotType)
	assert.Equal(t, int64(7), auth.gotNumber)

	var record model.VoucherRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "75123456789012", record.CAE)

	auth.err = fmt.Errorf("lookup: %w", model.ErrVoucherNotFound)
	w = do(t, srv, http.MethodGet, "/api/v1/accounts/acme/vouchers/1/11/8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/accounts/acme/vouchers/1/11/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProofEndpoint(t *testing.T) {
	srv := newTestServer(&stubEmitter{}, &stubAuthority{})

	body := fmt.Sprintf(`{
  "issuer_cuit": "20123456789",
  "request": %s,
  "result": {"approved": true, "cae": "75123456789012", "cae_expires_at": "2025-01-25", "voucher_number": 43}
}`, draftJSON)

	w := do(t, srv, http.MethodPost, "/api/v1/proof", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var artifacts model.ProofArtifacts
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &artifacts))
	assert.Equal(t, "2012345678901000175123456789012202501250", artifacts.Barcode)
	assert.Equal(t, int64(43), artifacts.QR.VoucherNumber)

	w = do(t, srv, http.MethodPost, "/api/v1/proof", `{"issuer_cuit": "20123456789", "request": `+draftJSON+`, "result": {"approved": false}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	config := &server.Config{Address: "127.0.0.1:0"}
	srv := server.NewServer(config, store.StaticAccountStore{}, &stubEmitter{}, &stubAuthority{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
