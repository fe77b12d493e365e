// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/rezonia/wsfe-client/internal/model"
)

// TestCUIT is a syntactically valid issuer tax id used across tests
const TestCUIT = "20123456789"

// KeyPair is a generated key and self-signed certificate
type KeyPair struct {
	Key     *rsa.PrivateKey
	Cert    *x509.Certificate
	KeyPEM  []byte
	CertPEM []byte
}

// NewKeyPair creates an RSA key and a certificate valid from an hour ago
// for the given duration, with the CUIT in the subject serial number the way
// the authority issues them.
func NewKeyPair(t *testing.T, cn string, validFor time.Duration) *KeyPair {
	t.Helper()
	return NewKeyPairAt(t, cn, time.Now().Add(-time.Hour), validFor)
}

// NewKeyPairAt is NewKeyPair with an explicit NotBefore
func NewKeyPairAt(t *testing.T, cn string, notBefore time.Time, validFor time.Duration) *KeyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"Test Issuer SRL"},
			SerialNumber: "CUIT " + TestCUIT,
		},
		Issuer: pkix.Name{
			CommonName: cn,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return &KeyPair{
		Key:     key,
		Cert:    cert,
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

// Credential returns the pair as a TEST credential
func (kp *KeyPair) Credential() model.Credential {
	return model.Credential{
		PrivateKeyPEM:  kp.KeyPEM,
		CertificatePEM: kp.CertPEM,
		Environment:    model.EnvironmentTest,
	}
}

// Account wraps the pair in an account with TestCUIT
func (kp *KeyPair) Account(id string) model.Account {
	return model.Account{
		ID:         id,
		CUIT:       TestCUIT,
		Credential: kp.Credential(),
	}
}

// NewLeaf creates a certificate for cn signed by ca. OCSP responder URLs are
// embedded when given.
func NewLeaf(t *testing.T, ca *KeyPair, cn string, validFor time.Duration, ocspServers ...string) *KeyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	notBefore := time.Now().Add(-time.Hour)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   cn,
			SerialNumber: "CUIT " + TestCUIT,
		},
		NotBefore:   notBefore,
		NotAfter:    notBefore.Add(validFor),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		OCSPServer:  ocspServers,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return &KeyPair{
		Key:     key,
		Cert:    cert,
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}
