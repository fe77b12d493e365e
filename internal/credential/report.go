package credential

import (
	"crypto/x509"
	"time"
)

// Report is the outcome of inspecting an account's key and certificate
type Report struct {
	// Valid is true only when no check produced an error
	Valid bool `json:"valid"`

	KeyMatches   bool             `json:"key_matches"`
	WithinWindow bool             `json:"within_validity"`
	ChainChecked bool             `json:"chain_checked"`
	ChainValid   bool             `json:"chain_valid,omitempty"`
	OCSPChecked  bool             `json:"ocsp_checked"`
	NotRevoked   bool             `json:"not_revoked,omitempty"`
	CUIT         string           `json:"cuit,omitempty"`
	Certificate  *CertificateInfo `json:"certificate,omitempty"`
	ExpiresIn    time.Duration    `json:"expires_in"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	// Failures holds every failed check with its code
	Failures []*InspectionError `json:"-"`
}

// CertificateInfo contains certificate subject information
type CertificateInfo struct {
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	SubjectSN    string    `json:"subject_serial_number,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

func newReport() *Report {
	return &Report{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// AddWarning adds a non-fatal finding
func (r *Report) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError records a failed check and marks the report invalid
func (r *Report) AddError(err *InspectionError) {
	r.Errors = append(r.Errors, err.Error())
	r.Failures = append(r.Failures, err)
	r.Valid = false
}

// HasCode reports whether any failed check carries code
func (r *Report) HasCode(code string) bool {
	for _, f := range r.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}

func (r *Report) setCertificate(cert *x509.Certificate) {
	info := &CertificateInfo{
		Name:         cert.Subject.CommonName,
		SubjectSN:    cert.Subject.SerialNumber,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		info.Organization = cert.Subject.Organization[0]
	}
	if cert.Issuer.CommonName != "" {
		info.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		info.Issuer = cert.Issuer.Organization[0]
	}
	r.Certificate = info
}

func (r *Report) computeValidity() {
	r.Valid = r.KeyMatches &&
		r.WithinWindow &&
		(!r.ChainChecked || r.ChainValid) &&
		len(r.Errors) == 0
}
