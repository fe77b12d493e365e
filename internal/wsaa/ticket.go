package wsaa

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/soap"
)

const (
	// Namespace is the LoginCms service namespace
	Namespace = "http://wsaa.view.sua.dvadac.desein.afip.gov"

	// SOAPAction for LoginCms
	SOAPAction = "urn:LoginCms"

	operation = "LoginCms"
)

type loginTicketRequest struct {
	XMLName xml.Name          `xml:"loginTicketRequest"`
	Version string            `xml:"version,attr"`
	Header  loginTicketHeader `xml:"header"`
	Service string            `xml:"service"`
}

type loginTicketHeader struct {
	UniqueID       int64  `xml:"uniqueId"`
	GenerationTime string `xml:"generationTime"`
	ExpirationTime string `xml:"expirationTime"`
}

// BuildTicketRequest renders the login ticket request document for service.
// The validity window brackets now by the given skews.
func BuildTicketRequest(service string, now time.Time, generationSkew, expirationSkew time.Duration) ([]byte, error) {
	req := loginTicketRequest{
		Version: "1.0",
		Header: loginTicketHeader{
			UniqueID:       now.Unix(),
			GenerationTime: now.Add(-generationSkew).Format(time.RFC3339),
			ExpirationTime: now.Add(expirationSkew).Format(time.RFC3339),
		},
		Service: service,
	}
	out, err := xml.Marshal(req)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

type loginCms struct {
	XMLName xml.Name `xml:"wsaa:loginCms"`
	In0     string   `xml:"wsaa:in0"`
}

var wsaaNamespace = soap.Namespace{Prefix: "wsaa", URI: Namespace}

// ParseLoginResponse extracts the ticket from a loginCmsResponse element.
// The return value is itself an XML document carried as escaped text, so
// it is parsed a second time.
func ParseLoginResponse(resp *etree.Element) (model.SessionTicket, error) {
	inner := soap.Text(resp, ".//loginCmsReturn")
	if inner == "" {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "response has no loginCmsReturn", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(inner); err != nil {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "malformed login ticket response", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "loginTicketResponse" {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "unexpected login ticket response document", nil)
	}

	token := soap.Text(root, "credentials/token")
	sign := soap.Text(root, "credentials/sign")
	if token == "" || sign == "" {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, "login ticket response has no token or sign", nil)
	}

	rawExpiry := soap.Text(root, "header/expirationTime")
	expiresAt, err := time.Parse(time.RFC3339, rawExpiry)
	if err != nil {
		return model.SessionTicket{}, model.NewAuthTransportError(operation, fmt.Sprintf("invalid expirationTime %q", rawExpiry), err)
	}

	return model.SessionTicket{
		Token:     token,
		Sign:      sign,
		ExpiresAt: expiresAt,
	}, nil
}
