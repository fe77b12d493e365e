// Package credential inspects the key material configured for an account:
// certificate validity, key pairing, the CUIT the certificate was issued to,
// chain of trust and revocation status.
package credential

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/signing"
)

// DefaultExpiryWarning is how close to NotAfter a certificate starts producing a warning
const DefaultExpiryWarning = 30 * 24 * time.Hour

// Inspector checks account credentials against a set of trusted roots
type Inspector struct {
	roots         *x509.CertPool
	rootCerts     []*x509.Certificate
	ocspCache     *OCSPCache
	ocspCacheTTL  time.Duration
	ocspTimeout   time.Duration
	checkOCSP     bool
	softFail      bool
	expiryWarning time.Duration
	clock         clockwork.Clock
	http          HTTPDoer
	logger        zerolog.Logger
}

// InspectorOption configures an Inspector
type InspectorOption func(*Inspector)

// WithClock sets the clock validity windows are checked against
func WithClock(clock clockwork.Clock) InspectorOption {
	return func(i *Inspector) {
		i.clock = clock
	}
}

// WithOCSP enables revocation checks for certificates that list a responder
func WithOCSP() InspectorOption {
	return func(i *Inspector) {
		i.checkOCSP = true
	}
}

// WithSoftFail turns an unreachable OCSP responder into a warning
func WithSoftFail() InspectorOption {
	return func(i *Inspector) {
		i.softFail = true
	}
}

// WithOCSPTimeout sets the timeout for OCSP requests
func WithOCSPTimeout(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		if d > 0 {
			i.ocspTimeout = d
		}
	}
}

// WithOCSPCacheTTL sets how long OCSP answers are reused
func WithOCSPCacheTTL(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		if d > 0 {
			i.ocspCacheTTL = d
		}
	}
}

// WithExpiryWarning sets the window before expiry that triggers a warning
func WithExpiryWarning(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		i.expiryWarning = d
	}
}

// WithHTTPClient replaces the client used for OCSP
func WithHTTPClient(doer HTTPDoer) InspectorOption {
	return func(i *Inspector) {
		i.http = doer
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) InspectorOption {
	return func(i *Inspector) {
		i.logger = l
	}
}

// NewInspector creates an inspector with no trusted roots. Chain verification
// is skipped until roots are added.
func NewInspector(opts ...InspectorOption) *Inspector {
	i := &Inspector{
		roots:         x509.NewCertPool(),
		rootCerts:     make([]*x509.Certificate, 0),
		ocspCacheTTL:  DefaultOCSPCacheTTL,
		ocspTimeout:   DefaultOCSPTimeout,
		expiryWarning: DefaultExpiryWarning,
		clock:         clockwork.NewRealClock(),
		http:          defaultHTTPClient(),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.ocspCache = NewOCSPCache(i.ocspCacheTTL, i.clock)
	return i
}

// AddCertificate trusts a single root
func (i *Inspector) AddCertificate(cert *x509.Certificate) {
	if cert != nil {
		i.roots.AddCert(cert)
		i.rootCerts = append(i.rootCerts, cert)
	}
}

// AddCertificatesFromPEM trusts every certificate in pemData
func (i *Inspector) AddCertificatesFromPEM(pemData []byte) error {
	certs, err := parseCertificates(pemData)
	if err != nil {
		return err
	}
	if len(certs) == 0 {
		return fmt.Errorf("no certificates found in PEM data")
	}
	for _, cert := range certs {
		i.AddCertificate(cert)
	}
	return nil
}

// AddCertificatesFromFile trusts every certificate in the PEM file at path
func (i *Inspector) AddCertificatesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read CA file: %w", err)
	}
	return i.AddCertificatesFromPEM(data)
}

// RootCount returns the number of trusted roots
func (i *Inspector) RootCount() int {
	return len(i.rootCerts)
}

// Inspect runs every check on the account's credential. Unparseable key
// material is returned as an AuthCredentialError; every other finding is
// recorded in the report.
func (i *Inspector) Inspect(ctx context.Context, account model.Account) (*Report, error) {
	key, err := signing.ParsePrivateKey(account.Credential.PrivateKeyPEM)
	if err != nil {
		return nil, model.NewAuthCredentialError(account.ID, "failed to parse private key", err)
	}
	certs, err := parseCertificates(account.Credential.CertificatePEM)
	if err != nil || len(certs) == 0 {
		return nil, model.NewAuthCredentialError(account.ID, "failed to parse certificate", err)
	}
	cert, intermediates := certs[0], certs[1:]

	report := newReport()
	report.setCertificate(cert)

	report.KeyMatches = signing.KeyMatches(key, cert)
	if !report.KeyMatches {
		report.AddError(NewInspectionError(ErrCodeKeyMismatch, "private_key", "private key does not match certificate", nil))
	}

	i.checkValidity(report, cert)
	i.checkCUIT(report, cert, account.CUIT)

	chain := i.checkChain(report, cert, intermediates)

	if i.checkOCSP {
		i.checkRevocation(ctx, report, cert, issuerOf(cert, chain, intermediates, i.rootCerts))
	}

	report.computeValidity()
	return report, nil
}

// Check inspects the account and turns an invalid report into an AuthCredentialError
func (i *Inspector) Check(ctx context.Context, account model.Account) error {
	report, err := i.Inspect(ctx, account)
	if err != nil {
		return err
	}
	if !report.Valid {
		var cause error
		if len(report.Failures) > 0 {
			cause = report.Failures[0]
		}
		return model.NewAuthCredentialError(account.ID, "credential failed inspection", cause)
	}
	for _, w := range report.Warnings {
		i.logger.Warn().Str("account", account.ID).Msg(w)
	}
	return nil
}

func (i *Inspector) checkValidity(report *Report, cert *x509.Certificate) {
	now := i.clock.Now()
	subject := cert.Subject.CommonName

	switch {
	case now.Before(cert.NotBefore):
		report.AddError(errCertNotYetValid(subject))
	case now.After(cert.NotAfter):
		report.AddError(errCertExpired(subject))
	default:
		report.WithinWindow = true
		report.ExpiresIn = cert.NotAfter.Sub(now)
		if report.ExpiresIn < i.expiryWarning {
			report.AddWarning(fmt.Sprintf("certificate expires in %d days", int(report.ExpiresIn.Hours()/24)))
		}
	}
}

func (i *Inspector) checkCUIT(report *Report, cert *x509.Certificate, want string) {
	cuit, ok := CUITFromCertificate(cert)
	if !ok {
		report.AddWarning(NewInspectionError(ErrCodeCUITMissing, "subject", "certificate subject carries no CUIT serial number", nil).Error())
		return
	}
	report.CUIT = cuit
	if want != "" && want != cuit {
		report.AddError(NewInspectionError(ErrCodeCUITMismatch, "cuit",
			fmt.Sprintf("certificate issued to %s, account configured for %s", cuit, want), nil))
	}
}

func (i *Inspector) checkChain(report *Report, cert *x509.Certificate, intermediates []*x509.Certificate) []*x509.Certificate {
	if len(i.rootCerts) == 0 {
		report.AddWarning("no trusted roots configured; chain not verified")
		return nil
	}
	report.ChainChecked = true

	chain, err := i.VerifyChain(cert, intermediates)
	if err != nil {
		report.AddError(errChainInvalid(err))
		return nil
	}
	report.ChainValid = true
	return chain
}

func (i *Inspector) checkRevocation(ctx context.Context, report *Report, cert, issuer *x509.Certificate) {
	if len(cert.OCSPServer) == 0 {
		report.AddWarning("certificate lists no OCSP responder; revocation not checked")
		return
	}
	if issuer == nil {
		report.AddWarning("issuer certificate unavailable; revocation not checked")
		return
	}

	notRevoked, err := i.CheckRevocation(ctx, cert, issuer)
	if err != nil {
		if i.softFail {
			report.AddWarning(errOCSPUnavailable(err).Error())
			return
		}
		report.AddError(errOCSPUnavailable(err))
		return
	}

	report.OCSPChecked = true
	report.NotRevoked = notRevoked
	if !notRevoked {
		report.AddError(errCertRevoked(cert.Subject.CommonName))
	}
}

// VerifyChain verifies the certificate against the trusted roots at the inspector's current time
func (i *Inspector) VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}

	var interPool *x509.CertPool
	if len(intermediates) > 0 {
		interPool = x509.NewCertPool()
		for _, inter := range intermediates {
			interPool.AddCert(inter)
		}
	}

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         i.roots,
		Intermediates: interPool,
		CurrentTime:   i.clock.Now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no valid certificate chains found")
	}
	return chains[0], nil
}

// CheckRevocation asks the certificate's OCSP responder, reusing cached answers
func (i *Inspector) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, fmt.Errorf("certificate or issuer is nil")
	}
	if notRevoked, found := i.ocspCache.Get(cert); found {
		return notRevoked, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.ocspTimeout)
	defer cancel()

	revoked, err := checkOCSP(ctx, i.http, cert, issuer)
	if err != nil {
		return false, err
	}
	i.ocspCache.Set(cert, !revoked)
	return !revoked, nil
}

// CacheSize returns the number of cached OCSP answers
func (i *Inspector) CacheSize() int {
	return i.ocspCache.Size()
}

// CUITFromCertificate reads the tax id from a subject serial number of the
// form "CUIT 20123456789"
func CUITFromCertificate(cert *x509.Certificate) (string, bool) {
	sn := strings.TrimSpace(cert.Subject.SerialNumber)
	if !strings.HasPrefix(strings.ToUpper(sn), "CUIT") {
		return "", false
	}
	cuit := strings.TrimSpace(sn[len("CUIT"):])
	if len(cuit) != 11 {
		return "", false
	}
	for _, r := range cuit {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return cuit, true
}

// issuerOf finds the certificate that signed cert
func issuerOf(cert *x509.Certificate, chain []*x509.Certificate, pools ...[]*x509.Certificate) *x509.Certificate {
	if len(chain) > 1 {
		return chain[1]
	}
	for _, pool := range pools {
		for _, candidate := range pool {
			if bytes.Equal(candidate.RawSubject, cert.RawIssuer) && cert.CheckSignatureFrom(candidate) == nil {
				return candidate
			}
		}
	}
	if bytes.Equal(cert.RawSubject, cert.RawIssuer) {
		return cert
	}
	return nil
}

func parseCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := bytes.TrimSpace(pemData)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
