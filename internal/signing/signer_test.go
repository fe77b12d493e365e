package signing_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/hhrutter/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/signing"
	"github.com/rezonia/wsfe-client/internal/testutil"
)

func TestSigner_SignEmbedsContent(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", 24*time.Hour)
	signer, err := signing.NewSigner("acme", kp.Credential())
	require.NoError(t, err)

	content := []byte(`<loginTicketRequest version="1.0"><service>wsfe</service></loginTicketRequest>`)
	out, err := signer.Sign(content)
	require.NoError(t, err)

	assert.NotContains(t, out, "-----BEGIN")
	assert.NotContains(t, out, "\n")

	der, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	assert.Equal(t, content, p7.Content)
	require.NoError(t, p7.Verify())

	require.Len(t, p7.Signers, 1)
	assert.True(t, p7.Signers[0].DigestAlgorithm.Algorithm.Equal(pkcs7.OIDDigestAlgorithmSHA256))
	require.NotNil(t, p7.GetOnlySigner())
	assert.Equal(t, kp.Cert.SerialNumber, p7.GetOnlySigner().SerialNumber)
}

func TestSigner_PKCS8AndEC(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", 24*time.Hour)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(kp.Key)
	require.NoError(t, err)

	cred := kp.Credential()
	cred.PrivateKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})

	_, err = signing.NewSigner("acme", cred)
	require.NoError(t, err)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	key, err := signing.ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER}))
	require.NoError(t, err)
	assert.IsType(t, &ecdsa.PrivateKey{}, key)
}

func TestNewSigner_CredentialErrors(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", 24*time.Hour)
	other := testutil.NewKeyPair(t, "other", 24*time.Hour)

	tests := []struct {
		name    string
		cred    model.Credential
		message string
	}{
		{"missing key", model.Credential{CertificatePEM: kp.CertPEM}, "private key is missing"},
		{"missing cert", model.Credential{PrivateKeyPEM: kp.KeyPEM}, "certificate is missing"},
		{"garbage key", model.Credential{PrivateKeyPEM: []byte("nope"), CertificatePEM: kp.CertPEM}, "failed to parse private key"},
		{"encrypted key", model.Credential{
			PrivateKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: []byte{1, 2, 3}}),
			CertificatePEM: kp.CertPEM,
		}, "failed to parse private key"},
		{"garbage cert", model.Credential{PrivateKeyPEM: kp.KeyPEM, CertificatePEM: []byte("nope")}, "failed to parse certificate"},
		{"mismatched pair", model.Credential{PrivateKeyPEM: kp.KeyPEM, CertificatePEM: other.CertPEM}, "does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signing.NewSigner("acme", tt.cred)
			var ce *model.AuthCredentialError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "acme", ce.AccountID)
			assert.True(t, strings.Contains(ce.Message, tt.message), ce.Message)
		})
	}
}

func TestParseCertificate_SkipsOtherBlocks(t *testing.T) {
	kp := testutil.NewKeyPair(t, "acme", 24*time.Hour)
	bundle := append(append([]byte{}, kp.KeyPEM...), kp.CertPEM...)

	cert, err := signing.ParseCertificate(bundle)
	require.NoError(t, err)
	assert.Equal(t, "acme", cert.Subject.CommonName)
}
