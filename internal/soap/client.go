// Package soap posts SOAP 1.1 envelopes and unwraps their bodies.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/model"
)

// Default transport configuration
const (
	DefaultTimeout   = 30 * time.Second
	maxResponseBytes = 4 << 20

	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
)

// HTTPDoer is the subset of *http.Client the client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts envelopes with a bounded per-request timeout
type Client struct {
	http    HTTPDoer
	timeout time.Duration
	logger  zerolog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.http = doer
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a SOAP client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// envelope is marshalled with literal prefixed names so the payload can
// declare its own namespace prefix on the envelope element.
type envelope struct {
	XMLName    xml.Name   `xml:"soapenv:Envelope"`
	Namespaces []xml.Attr `xml:",any,attr"`
	Header     struct{}   `xml:"soapenv:Header"`
	Body       body       `xml:"soapenv:Body"`
}

type body struct {
	Content interface{}
}

// Namespace declares a payload prefix on the envelope
type Namespace struct {
	Prefix string
	URI    string
}

// Marshal renders payload inside a SOAP 1.1 envelope
func Marshal(payload interface{}, namespaces ...Namespace) ([]byte, error) {
	env := envelope{
		Namespaces: []xml.Attr{{Name: xml.Name{Local: "xmlns:soapenv"}, Value: EnvelopeNamespace}},
		Body:       body{Content: payload},
	}
	for _, ns := range namespaces {
		env.Namespaces = append(env.Namespaces, xml.Attr{Name: xml.Name{Local: "xmlns:" + ns.Prefix}, Value: ns.URI})
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Call posts payload to url with the given SOAPAction and returns the first
// element inside the response Body. Faults, non-2xx statuses, timeouts and
// unparseable responses all become AuthTransportError tagged with operation.
func (c *Client) Call(ctx context.Context, url, action, operation string, payload interface{}, namespaces ...Namespace) (*etree.Element, error) {
	reqBody, err := Marshal(payload, namespaces...)
	if err != nil {
		return nil, model.NewAuthTransportError(operation, "failed to encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, model.NewAuthTransportError(operation, "failed to create HTTP request", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(ctx, operation, err)
	}

	c.logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(data)).
		Msg("soap call completed")

	return ParseResponse(operation, resp.StatusCode, data)
}

// ParseResponse unwraps a raw SOAP response
func ParseResponse(operation string, status int, data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		if status < 200 || status > 299 {
			return nil, model.NewAuthTransportError(operation, fmt.Sprintf("HTTP %d: %s", status, snippet(data)), nil)
		}
		return nil, model.NewAuthTransportError(operation, "malformed SOAP response", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, model.NewAuthTransportError(operation, "empty SOAP response", nil)
	}

	if fault := root.FindElement(".//Fault"); fault != nil {
		return nil, &model.AuthTransportError{
			Operation: operation,
			Code:      Text(fault, "faultcode"),
			Message:   Text(fault, "faultstring"),
		}
	}

	if status < 200 || status > 299 {
		return nil, model.NewAuthTransportError(operation, fmt.Sprintf("HTTP %d: %s", status, snippet(data)), nil)
	}

	b := root.FindElement(".//Body")
	if b == nil {
		return nil, model.NewAuthTransportError(operation, "SOAP response has no Body", nil)
	}
	children := b.ChildElements()
	if len(children) == 0 {
		return nil, model.NewAuthTransportError(operation, "SOAP Body is empty", nil)
	}
	return children[0], nil
}

// Text returns the trimmed text of the first element matching path under el,
// or "" when there is none. Unprefixed path steps match any namespace.
func Text(el *etree.Element, path string) string {
	if el == nil {
		return ""
	}
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func classify(ctx context.Context, operation string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return model.NewTimeoutError(operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewTimeoutError(operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return model.NewAuthTransportError(operation, "request cancelled locally; the authority may still have processed it", err)
	}
	return model.NewAuthTransportError(operation, "request failed", err)
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
