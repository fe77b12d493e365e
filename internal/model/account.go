package model

import (
	"fmt"
	"strings"
	"time"
)

// Environment selects the authority's homologation or production endpoints
type Environment string

const (
	EnvironmentTest       Environment = "TEST"
	EnvironmentProduction Environment = "PRODUCTION"
)

// Endpoints holds the SOAP endpoints for one environment
type Endpoints struct {
	WSAA string `yaml:"wsaa" json:"wsaa"`
	WSFE string `yaml:"wsfe" json:"wsfe"`
}

var endpoints = map[Environment]Endpoints{
	EnvironmentTest: {
		WSAA: "https://wsaahomo.afip.gov.ar/ws/services/LoginCms",
		WSFE: "https://wswhomo.afip.gov.ar/wsfev1/service.asmx",
	},
	EnvironmentProduction: {
		WSAA: "https://wsaa.afip.gov.ar/ws/services/LoginCms",
		WSFE: "https://servicios1.afip.gov.ar/wsfev1/service.asmx",
	},
}

// ParseEnvironment accepts TEST/PRODUCTION and the usual aliases
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "test", "testing", "homo", "homologacion", "homologation", "dev":
		return EnvironmentTest, nil
	case "production", "prod", "produccion":
		return EnvironmentProduction, nil
	}
	return "", NewValidationError("environment", s, "enum", "must be TEST or PRODUCTION")
}

// Endpoints returns the default endpoints for the environment
func (e Environment) Endpoints() Endpoints {
	return endpoints[e]
}

// Valid reports whether e is a known environment
func (e Environment) Valid() bool {
	_, ok := endpoints[e]
	return ok
}

// Credential is the key material for one account. It is never logged.
type Credential struct {
	PrivateKeyPEM  []byte
	CertificatePEM []byte
	Environment    Environment
}

// String redacts key material
func (c Credential) String() string {
	return fmt.Sprintf("Credential{env=%s, key=%d bytes, cert=%d bytes}", c.Environment, len(c.PrivateKeyPEM), len(c.CertificatePEM))
}

// GoString redacts key material in %#v
func (c Credential) GoString() string {
	return c.String()
}

// Account is an issuer as handed out by the configuration store
type Account struct {
	ID         string
	CUIT       string
	Credential Credential
}

// Validate checks the account is usable for authentication
func (a Account) Validate() error {
	if a.ID == "" {
		return NewAuthCredentialError(a.ID, "account id is empty", nil)
	}
	if len(a.CUIT) != 11 || !isDigits(a.CUIT) {
		return NewAuthCredentialError(a.ID, fmt.Sprintf("issuer CUIT must be 11 digits, got %q", a.CUIT), nil)
	}
	if len(a.Credential.PrivateKeyPEM) == 0 {
		return NewAuthCredentialError(a.ID, "private key is missing", nil)
	}
	if len(a.Credential.CertificatePEM) == 0 {
		return NewAuthCredentialError(a.ID, "certificate is missing", nil)
	}
	if !a.Credential.Environment.Valid() {
		return NewAuthCredentialError(a.ID, fmt.Sprintf("unknown environment %q", a.Credential.Environment), nil)
	}
	return nil
}

// SessionTicket is a WSAA access ticket. Refresh replaces the whole value.
type SessionTicket struct {
	Token     string    `json:"-"`
	Sign      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt reports whether the ticket can still be used at now
func (t SessionTicket) ValidAt(now time.Time) bool {
	return t.Token != "" && t.Sign != "" && now.Before(t.ExpiresAt)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
