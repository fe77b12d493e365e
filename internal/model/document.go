package model

import (
	"strings"
)

// DocumentType is the receiver's identification kind (DocTipo)
type DocumentType int

const (
	DocumentCUIT      DocumentType = 80
	DocumentCUIL      DocumentType = 86
	DocumentDNI       DocumentType = 96
	DocumentAnonymous DocumentType = 99
)

func (d DocumentType) String() string {
	switch d {
	case DocumentCUIT:
		return "CUIT"
	case DocumentCUIL:
		return "CUIL"
	case DocumentDNI:
		return "DNI"
	case DocumentAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// AnonymousNumber is the document number sent for an anonymous receiver
const AnonymousNumber = "0"

var placeholders = map[string]bool{
	"consumidor final": true,
	"cf":               true,
	"s/n":              true,
	"sin documento":    true,
	"anonimo":          true,
	"anónimo":          true,
}

// InferDocument classifies a free-form receiver id. It is a best-effort
// classifier, not a validator: 11 digits is a CUIT, 7 or 8 digits a DNI,
// and everything else, including placeholders, is an anonymous receiver.
func InferDocument(raw string) (DocumentType, string) {
	if placeholders[strings.ToLower(strings.TrimSpace(raw))] {
		return DocumentAnonymous, AnonymousNumber
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if isRepeated(digits) {
		return DocumentAnonymous, AnonymousNumber
	}

	switch len(digits) {
	case 11:
		return DocumentCUIT, digits
	case 7, 8:
		return DocumentDNI, digits
	}
	return DocumentAnonymous, AnonymousNumber
}

// isRepeated catches filler ids such as 00000000 or 99999999999
func isRepeated(s string) bool {
	if s == "" {
		return false
	}
	return strings.Count(s, s[:1]) == len(s)
}
