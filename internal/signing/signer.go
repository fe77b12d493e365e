// Package signing builds the CMS signed-data envelope WSAA expects for a
// login ticket request.
package signing

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/hhrutter/pkcs7"

	"github.com/rezonia/wsfe-client/internal/model"
)

// Signer signs content with one account's key and certificate
type Signer struct {
	accountID string
	key       crypto.PrivateKey
	cert      *x509.Certificate
}

// NewSigner parses the credential and checks the key matches the certificate.
// Any problem with the key material is an AuthCredentialError.
func NewSigner(accountID string, cred model.Credential) (*Signer, error) {
	if len(cred.PrivateKeyPEM) == 0 {
		return nil, model.NewAuthCredentialError(accountID, "private key is missing", nil)
	}
	if len(cred.CertificatePEM) == 0 {
		return nil, model.NewAuthCredentialError(accountID, "certificate is missing", nil)
	}

	key, err := ParsePrivateKey(cred.PrivateKeyPEM)
	if err != nil {
		return nil, model.NewAuthCredentialError(accountID, "failed to parse private key", err)
	}

	cert, err := ParseCertificate(cred.CertificatePEM)
	if err != nil {
		return nil, model.NewAuthCredentialError(accountID, "failed to parse certificate", err)
	}

	if !KeyMatches(key, cert) {
		return nil, model.NewAuthCredentialError(accountID, "private key does not match certificate", nil)
	}

	return &Signer{accountID: accountID, key: key, cert: cert}, nil
}

// Certificate returns the signing certificate
func (s *Signer) Certificate() *x509.Certificate {
	return s.cert
}

// SignDER wraps content in a non-detached CMS signed-data with a SHA-256
// digest and returns the DER encoding.
func (s *Signer) SignDER(content []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, model.NewAuthCredentialError(s.accountID, "failed to initialize signed data", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, model.NewAuthCredentialError(s.accountID, "failed to sign content", err)
	}

	der, err := sd.Finish()
	if err != nil {
		return nil, model.NewAuthCredentialError(s.accountID, "failed to encode signed data", err)
	}
	return der, nil
}

// Sign returns the signed-data as bare Base64, without PEM markers or line breaks
func (s *Signer) Sign(content []byte) (string, error) {
	der, err := s.SignDER(content)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePrivateKey accepts PKCS#1, PKCS#8 and SEC 1 keys. Encrypted keys are
// rejected: the configuration store hands out decrypted material only.
func ParsePrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(bytes.TrimSpace(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey:
			return key, nil
		}
		return nil, fmt.Errorf("unsupported key type %T", key)
	case "ENCRYPTED PRIVATE KEY":
		return nil, errors.New("private key is encrypted")
	}
	return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
}

// ParseCertificate returns the first certificate in pemData
func ParseCertificate(pemData []byte) (*x509.Certificate, error) {
	rest := bytes.TrimSpace(pemData)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no certificate found in PEM data")
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

// KeyMatches reports whether key is the private half of the certificate's public key
func KeyMatches(key crypto.PrivateKey, cert *x509.Certificate) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	pub, ok := signer.Public().(equaler)
	return ok && pub.Equal(cert.PublicKey)
}
