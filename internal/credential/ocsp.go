package credential

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/ocsp"
)

// Default OCSP configuration
const (
	DefaultOCSPTimeout  = 10 * time.Second
	DefaultOCSPCacheTTL = 1 * time.Hour
)

// OCSPCache caches revocation answers per certificate
type OCSPCache struct {
	mu      sync.RWMutex
	entries map[string]ocspCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type ocspCacheEntry struct {
	notRevoked bool
	expiresAt  time.Time
}

// NewOCSPCache creates a cache whose entries live for ttl on clock
func NewOCSPCache(ttl time.Duration, clock clockwork.Clock) *OCSPCache {
	return &OCSPCache{
		entries: make(map[string]ocspCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get retrieves a cached result
func (c *OCSPCache) Get(cert *x509.Certificate) (notRevoked bool, found bool) {
	if cert == nil {
		return false, false
	}
	key := certCacheKey(cert)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return false, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, false
	}
	return entry.notRevoked, true
}

// Set caches a result
func (c *OCSPCache) Set(cert *x509.Certificate, notRevoked bool) {
	if cert == nil {
		return
	}
	c.mu.Lock()
	c.entries[certCacheKey(cert)] = ocspCacheEntry{
		notRevoked: notRevoked,
		expiresAt:  c.clock.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Size returns the number of cached entries
func (c *OCSPCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func certCacheKey(cert *x509.Certificate) string {
	return fmt.Sprintf("%s:%s", cert.Issuer.String(), cert.SerialNumber.String())
}

// HTTPDoer is the subset of *http.Client OCSP queries need
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// checkOCSP asks each responder listed in cert until one answers
func checkOCSP(ctx context.Context, doer HTTPDoer, cert, issuer *x509.Certificate) (revoked bool, err error) {
	if len(cert.OCSPServer) == 0 {
		return false, fmt.Errorf("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return false, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var lastErr error
	for _, server := range cert.OCSPServer {
		revoked, err := queryOCSPServer(ctx, doer, server, request, issuer)
		if err == nil {
			return revoked, nil
		}
		lastErr = err
	}
	return false, fmt.Errorf("all OCSP servers failed: %w", lastErr)
}

func queryOCSPServer(ctx context.Context, doer HTTPDoer, serverURL string, request []byte, issuer *x509.Certificate) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(request))
	if err != nil {
		return false, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := doer.Do(req)
	if err != nil {
		return false, fmt.Errorf("OCSP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("failed to read OCSP response: %w", err)
	}

	parsed, err := ocsp.ParseResponseForCert(body, nil, issuer)
	if err != nil {
		return false, fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	switch parsed.Status {
	case ocsp.Good:
		return false, nil
	case ocsp.Revoked:
		return true, nil
	case ocsp.Unknown:
		return false, fmt.Errorf("OCSP status unknown")
	default:
		return false, fmt.Errorf("unexpected OCSP status: %d", parsed.Status)
	}
}

func defaultHTTPClient() HTTPDoer {
	return &http.Client{Timeout: DefaultOCSPTimeout}
}
