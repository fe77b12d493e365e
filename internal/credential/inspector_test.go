package credential

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/ocsp"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/testutil"
)

const year = 365 * 24 * time.Hour

func TestInspect_SelfSigned(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", year)
	inspector := NewInspector()

	report, err := inspector.Inspect(context.Background(), kp.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if !report.Valid {
		t.Errorf("expected valid report, errors: %v", report.Errors)
	}
	if !report.KeyMatches {
		t.Error("expected key to match certificate")
	}
	if !report.WithinWindow {
		t.Error("expected certificate within validity window")
	}
	if report.ChainChecked {
		t.Error("chain should not be checked without trusted roots")
	}
	if report.CUIT != testutil.TestCUIT {
		t.Errorf("CUIT: got %q, want %q", report.CUIT, testutil.TestCUIT)
	}
	if report.Certificate == nil || report.Certificate.Name != "acme" {
		t.Errorf("certificate info not populated: %+v", report.Certificate)
	}
	if len(report.Warnings) == 0 {
		t.Error("expected a warning about the unverified chain")
	}
}

func TestInspect_ValidityWindow(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", year)

	tests := []struct {
		name string
		now  time.Time
		code string
	}{
		{"expired", kp.Cert.NotAfter.Add(time.Minute), ErrCodeCertExpired},
		{"not yet valid", kp.Cert.NotBefore.Add(-time.Minute), ErrCodeCertNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspector := NewInspector(WithClock(clockwork.NewFakeClockAt(tt.now)))

			report, err := inspector.Inspect(context.Background(), kp.Account("acme"))
			if err != nil {
				t.Fatalf("Inspect failed: %v", err)
			}
			if report.Valid {
				t.Error("expected invalid report")
			}
			if !report.HasCode(tt.code) {
				t.Errorf("expected %s, got %v", tt.code, report.Errors)
			}

			err = inspector.Check(context.Background(), kp.Account("acme"))
			var ce *model.AuthCredentialError
			if !errors.As(err, &ce) {
				t.Fatalf("expected AuthCredentialError, got %v", err)
			}
			var ie *InspectionError
			if !errors.As(err, &ie) || ie.Code != tt.code {
				t.Errorf("expected wrapped %s, got %v", tt.code, err)
			}
		})
	}
}

func TestInspect_ExpiryWarning(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", 10*24*time.Hour)
	inspector := NewInspector()

	report, err := inspector.Inspect(context.Background(), kp.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.Valid {
		t.Errorf("expected valid report, errors: %v", report.Errors)
	}

	found := false
	for _, w := range report.Warnings {
		if strings.HasPrefix(w, "certificate expires in 9 days") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected expiry warning, got %v", report.Warnings)
	}
}

func TestInspect_KeyMismatch(t *testing.T) {
	one := testutil.NewKeyPair(t, "one", year)
	two := testutil.NewKeyPair(t, "two", year)

	account := one.Account("acme")
	account.Credential.PrivateKeyPEM = two.KeyPEM

	report, err := NewInspector().Inspect(context.Background(), account)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if report.KeyMatches {
		t.Error("expected key mismatch")
	}
	if !report.HasCode(ErrCodeKeyMismatch) {
		t.Errorf("expected %s, got %v", ErrCodeKeyMismatch, report.Errors)
	}
}

func TestInspect_CUITMismatch(t *testing.T) {
	account := testutil.NewKeyPair(t, "acme", year).Account("acme")
	account.CUIT = "30712345671"

	report, err := NewInspector().Inspect(context.Background(), account)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.HasCode(ErrCodeCUITMismatch) {
		t.Errorf("expected %s, got %v", ErrCodeCUITMismatch, report.Errors)
	}
}

func TestInspect_UnparseableKey(t *testing.T) {
	account := testutil.NewKeyPair(t, "acme", year).Account("acme")
	account.Credential.PrivateKeyPEM = []byte("garbage")

	_, err := NewInspector().Inspect(context.Background(), account)
	var ce *model.AuthCredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("expected AuthCredentialError, got %v", err)
	}
	if ce.AccountID != "acme" {
		t.Errorf("account id: got %q", ce.AccountID)
	}
}

func TestInspect_Chain(t *testing.T) {
	ca := testutil.NewKeyPair(t, "Test Root CA", 2*year)
	leaf := testutil.NewLeaf(t, ca, "acme", year)

	trusted := NewInspector()
	trusted.AddCertificate(ca.Cert)

	report, err := trusted.Inspect(context.Background(), leaf.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.ChainChecked || !report.ChainValid {
		t.Errorf("expected valid chain, errors: %v", report.Errors)
	}
	if !report.Valid {
		t.Errorf("expected valid report, errors: %v", report.Errors)
	}

	other := testutil.NewKeyPair(t, "Other Root", 2*year)
	untrusted := NewInspector()
	if err := untrusted.AddCertificatesFromPEM(other.CertPEM); err != nil {
		t.Fatalf("AddCertificatesFromPEM failed: %v", err)
	}

	report, err = untrusted.Inspect(context.Background(), leaf.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.HasCode(ErrCodeChainInvalid) {
		t.Errorf("expected %s, got %v", ErrCodeChainInvalid, report.Errors)
	}
}

func TestAddCertificatesFromPEM_Empty(t *testing.T) {
	if err := NewInspector().AddCertificatesFromPEM([]byte("nothing here")); err == nil {
		t.Error("expected error for PEM without certificates")
	}
}

// ocspResponder answers every request with status, signed by ca
func ocspResponder(t *testing.T, ca *testutil.KeyPair, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status < 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, _ := io.ReadAll(r.Body)
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		now := time.Now()
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(time.Hour),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = now.Add(-time.Hour)
			tmpl.RevocationReason = ocsp.KeyCompromise
		}

		resp, err := ocsp.CreateResponse(ca.Cert, ca.Cert, tmpl, ca.Key)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInspect_OCSPGoodIsCached(t *testing.T) {
	ca := testutil.NewKeyPair(t, "Test Root CA", 2*year)
	var hits atomic.Int32
	srv := ocspResponder(t, ca, ocsp.Good, &hits)
	leaf := testutil.NewLeaf(t, ca, "acme", year, srv.URL)

	inspector := NewInspector(WithOCSP())
	inspector.AddCertificate(ca.Cert)

	for i := 0; i < 2; i++ {
		report, err := inspector.Inspect(context.Background(), leaf.Account("acme"))
		if err != nil {
			t.Fatalf("Inspect failed: %v", err)
		}
		if !report.OCSPChecked || !report.NotRevoked {
			t.Errorf("expected OCSP good, errors: %v warnings: %v", report.Errors, report.Warnings)
		}
	}

	if hits.Load() != 1 {
		t.Errorf("responder hits: got %d, want 1", hits.Load())
	}
	if inspector.CacheSize() != 1 {
		t.Errorf("cache size: got %d, want 1", inspector.CacheSize())
	}
}

func TestInspect_OCSPRevoked(t *testing.T) {
	ca := testutil.NewKeyPair(t, "Test Root CA", 2*year)
	var hits atomic.Int32
	srv := ocspResponder(t, ca, ocsp.Revoked, &hits)
	leaf := testutil.NewLeaf(t, ca, "acme", year, srv.URL)

	inspector := NewInspector(WithOCSP())
	inspector.AddCertificate(ca.Cert)

	report, err := inspector.Inspect(context.Background(), leaf.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if report.Valid {
		t.Error("expected revoked certificate to be invalid")
	}
	if !report.HasCode(ErrCodeCertRevoked) {
		t.Errorf("expected %s, got %v", ErrCodeCertRevoked, report.Errors)
	}
}

func TestInspect_OCSPUnavailable(t *testing.T) {
	ca := testutil.NewKeyPair(t, "Test Root CA", 2*year)
	var hits atomic.Int32
	srv := ocspResponder(t, ca, -1, &hits)
	leaf := testutil.NewLeaf(t, ca, "acme", year, srv.URL)

	strict := NewInspector(WithOCSP())
	strict.AddCertificate(ca.Cert)
	report, err := strict.Inspect(context.Background(), leaf.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.HasCode(ErrCodeOCSPUnavailable) {
		t.Errorf("expected %s, got %v", ErrCodeOCSPUnavailable, report.Errors)
	}

	soft := NewInspector(WithOCSP(), WithSoftFail())
	soft.AddCertificate(ca.Cert)
	report, err = soft.Inspect(context.Background(), leaf.Account("acme"))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.Valid {
		t.Errorf("soft-fail should keep the report valid, errors: %v", report.Errors)
	}
	if report.OCSPChecked {
		t.Error("OCSP should not be marked checked when the responder failed")
	}
}

func TestOCSPCache_Expiration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewOCSPCache(time.Hour, clock)
	cert := testutil.NewKeyPair(t, "acme", year).Cert

	if _, found := cache.Get(cert); found {
		t.Error("expected not found for new cert")
	}

	cache.Set(cert, false)
	notRevoked, found := cache.Get(cert)
	if !found || notRevoked {
		t.Errorf("got notRevoked=%v found=%v, want false true", notRevoked, found)
	}

	clock.Advance(time.Hour)
	if _, found := cache.Get(cert); found {
		t.Error("expected entry to expire after ttl")
	}
	if cache.Size() != 0 {
		t.Errorf("size: got %d, want 0", cache.Size())
	}
}

func TestCUITFromCertificate(t *testing.T) {
	cert := testutil.NewKeyPair(t, "acme", year).Cert

	cuit, ok := CUITFromCertificate(cert)
	if !ok || cuit != testutil.TestCUIT {
		t.Errorf("got %q %v, want %q", cuit, ok, testutil.TestCUIT)
	}

	cert.Subject.SerialNumber = "DNI 12345678"
	if _, ok := CUITFromCertificate(cert); ok {
		t.Error("expected no CUIT for a DNI serial number")
	}
}
