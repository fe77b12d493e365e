package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VoucherType is the authority's numeric voucher class code (CbteTipo)
type VoucherType int

const (
	VoucherA   VoucherType = 1
	VoucherNDA VoucherType = 2
	VoucherNCA VoucherType = 3
	VoucherB   VoucherType = 6
	VoucherNDB VoucherType = 7
	VoucherNCB VoucherType = 8
	VoucherC   VoucherType = 11
	VoucherNDC VoucherType = 12
	VoucherNCC VoucherType = 13
	VoucherM   VoucherType = 51
	VoucherNDM VoucherType = 52
	VoucherNCM VoucherType = 53
)

// VoucherClass distinguishes invoices from debit and credit notes
type VoucherClass int

const (
	ClassInvoice VoucherClass = iota
	ClassDebitNote
	ClassCreditNote
)

func (c VoucherClass) String() string {
	switch c {
	case ClassInvoice:
		return "invoice"
	case ClassDebitNote:
		return "debit_note"
	case ClassCreditNote:
		return "credit_note"
	}
	return "unknown"
}

// AllVoucherTypes lists the supported voucher types in code order
var AllVoucherTypes = []VoucherType{
	VoucherA, VoucherNDA, VoucherNCA,
	VoucherB, VoucherNDB, VoucherNCB,
	VoucherC, VoucherNDC, VoucherNCC,
	VoucherM, VoucherNDM, VoucherNCM,
}

// Code returns the short letter code ("A", "NCB", ...)
func (v VoucherType) Code() string {
	switch v {
	case VoucherA:
		return "A"
	case VoucherNDA:
		return "NDA"
	case VoucherNCA:
		return "NCA"
	case VoucherB:
		return "B"
	case VoucherNDB:
		return "NDB"
	case VoucherNCB:
		return "NCB"
	case VoucherC:
		return "C"
	case VoucherNDC:
		return "NDC"
	case VoucherNCC:
		return "NCC"
	case VoucherM:
		return "M"
	case VoucherNDM:
		return "NDM"
	case VoucherNCM:
		return "NCM"
	}
	return ""
}

// Letter returns the fiscal letter (A, B, C or M)
func (v VoucherType) Letter() string {
	code := v.Code()
	if code == "" {
		return ""
	}
	return code[len(code)-1:]
}

// Class returns whether the voucher is an invoice, debit note or credit note
func (v VoucherType) Class() VoucherClass {
	switch v {
	case VoucherNDA, VoucherNDB, VoucherNDC, VoucherNDM:
		return ClassDebitNote
	case VoucherNCA, VoucherNCB, VoucherNCC, VoucherNCM:
		return ClassCreditNote
	}
	return ClassInvoice
}

// IsNote reports whether linked vouchers are required
func (v VoucherType) IsNote() bool {
	return v.Class() != ClassInvoice
}

// DiscriminatesVAT is false for class C vouchers, which carry no VAT breakdown
func (v VoucherType) DiscriminatesVAT() bool {
	return v.Letter() != "C"
}

// Valid reports whether v is a supported voucher type
func (v VoucherType) Valid() bool {
	return v.Code() != ""
}

func (v VoucherType) String() string {
	if code := v.Code(); code != "" {
		return code
	}
	return fmt.Sprintf("VoucherType(%d)", int(v))
}

// ParseVoucherType accepts a letter code ("A", "nca") or a numeric code ("3")
func ParseVoucherType(s string) (VoucherType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return VoucherTypeFromCode(n)
	}
	for _, v := range AllVoucherTypes {
		if v.Code() == s {
			return v, nil
		}
	}
	return 0, NewValidationError("voucher_type", s, "enum", "unknown voucher type")
}

// VoucherTypeFromCode maps the authority's numeric code back to a VoucherType
func VoucherTypeFromCode(code int) (VoucherType, error) {
	v := VoucherType(code)
	if !v.Valid() {
		return 0, NewValidationError("voucher_type", code, "enum", "unknown voucher type code")
	}
	return v, nil
}

// MarshalJSON renders the letter code
func (v VoucherType) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Code())
}

// UnmarshalJSON accepts a letter code or a numeric code
func (v *VoucherType) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var (
		parsed VoucherType
		err    error
	)
	switch t := raw.(type) {
	case string:
		parsed, err = ParseVoucherType(t)
	case float64:
		parsed, err = VoucherTypeFromCode(int(t))
	default:
		err = NewValidationError("voucher_type", raw, "type", "must be a string or number")
	}
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Concept classifies a voucher as goods, services or both
type Concept int

const (
	ConceptGoods    Concept = 1
	ConceptServices Concept = 2
	ConceptMixed    Concept = 3
)

// RequiresServicePeriod is true for services and mixed vouchers
func (c Concept) RequiresServicePeriod() bool {
	return c == ConceptServices || c == ConceptMixed
}

// Valid reports whether c is a known concept
func (c Concept) Valid() bool {
	return c >= ConceptGoods && c <= ConceptMixed
}

func (c Concept) String() string {
	switch c {
	case ConceptGoods:
		return "goods"
	case ConceptServices:
		return "services"
	case ConceptMixed:
		return "mixed"
	}
	return fmt.Sprintf("Concept(%d)", int(c))
}

// ParseConcept accepts goods/services/mixed or 1/2/3
func ParseConcept(s string) (Concept, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "goods", "productos":
		return ConceptGoods, nil
	case "2", "services", "servicios":
		return ConceptServices, nil
	case "3", "mixed", "productos_y_servicios":
		return ConceptMixed, nil
	}
	return 0, NewValidationError("concept", s, "enum", "must be goods, services or mixed")
}

// MarshalJSON renders the concept name
func (c Concept) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a concept name or number
func (c *Concept) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseConcept(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
