// Package proof derives the printable QR payload and barcode of an authorized voucher.
package proof

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	dec "github.com/rezonia/wsfe-client/internal/decimal"
	"github.com/rezonia/wsfe-client/internal/model"
)

// QR payload constants as published by the authority
const (
	QRVersion         = 1
	QRBaseURL         = "https://www.afip.gob.ar/fe/qr/?p="
	AuthorizationKind = "E"
)

// Barcode field widths
const (
	cuitWidth   = 11
	typeWidth   = 2
	posWidth    = 4
	caeWidth    = 14
	dateWidth   = 8
	BarcodeBody = cuitWidth + typeWidth + posWidth + caeWidth + dateWidth
)

// Build derives the proof artifacts of an approved authorization. It does no I/O.
func Build(issuerCUIT string, req model.AuthorizationRequest, result model.AuthorizationResult) (model.ProofArtifacts, error) {
	if !result.Approved || result.CAE == "" {
		return model.ProofArtifacts{}, model.NewValidationError("result", result.Approved, "approved", "proof artifacts require an approved authorization")
	}
	if result.CAEExpiresAt.IsZero() {
		return model.ProofArtifacts{}, model.NewValidationError("cae_expires_at", nil, "required", "approved result has no CAE expiry")
	}

	payload, err := qrPayload(issuerCUIT, req, result)
	if err != nil {
		return model.ProofArtifacts{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.ProofArtifacts{}, fmt.Errorf("failed to encode QR payload: %w", err)
	}

	barcode, err := Barcode(issuerCUIT, req.VoucherType, req.PointOfSale, result.CAE, result.CAEExpiresAt)
	if err != nil {
		return model.ProofArtifacts{}, err
	}

	return model.ProofArtifacts{
		QR:      payload,
		QRJSON:  string(raw),
		QRURL:   QRBaseURL + base64.StdEncoding.EncodeToString(raw),
		Barcode: barcode,
	}, nil
}

func qrPayload(issuerCUIT string, req model.AuthorizationRequest, result model.AuthorizationResult) (model.QRPayload, error) {
	if err := requireDigits("issuer_cuit", issuerCUIT, cuitWidth); err != nil {
		return model.QRPayload{}, err
	}
	if err := requireDigits("cae", result.CAE, caeWidth); err != nil {
		return model.QRPayload{}, err
	}
	if err := requireDigits("document_number", req.DocumentNumber, 0); err != nil {
		return model.QRPayload{}, err
	}

	number := result.VoucherNumber
	if number == 0 {
		number = req.VoucherNumber
	}
	rate := req.ExchangeRate
	if rate.IsZero() {
		rate = dec.FromInt(1)
	}
	currency := req.Currency
	if currency == "" {
		currency = "PES"
	}

	return model.QRPayload{
		Version:           QRVersion,
		Date:              req.VoucherDate.ISO(),
		IssuerCUIT:        json.Number(issuerCUIT),
		PointOfSale:       req.PointOfSale,
		VoucherType:       int(req.VoucherType),
		VoucherNumber:     number,
		Total:             json.Number(dec.Format(req.Totals.Total)),
		Currency:          currency,
		ExchangeRate:      json.Number(dec.FormatRate(rate)),
		ReceiverDocType:   int(req.DocumentType),
		ReceiverDocNum:    json.Number(req.DocumentNumber),
		AuthorizationKind: AuthorizationKind,
		CAE:               json.Number(result.CAE),
	}, nil
}

// Barcode returns the 39 digit body followed by its check digit
func Barcode(issuerCUIT string, voucherType model.VoucherType, pointOfSale int, cae string, expiry model.Date) (string, error) {
	if err := requireDigits("issuer_cuit", issuerCUIT, cuitWidth); err != nil {
		return "", err
	}
	if err := requireDigits("cae", cae, caeWidth); err != nil {
		return "", err
	}
	if int(voucherType) < 1 || int(voucherType) > 99 {
		return "", model.NewValidationError("voucher_type", int(voucherType), "width", "voucher type must fit in 2 digits")
	}
	if pointOfSale < 1 || pointOfSale > model.MaxPointOfSale {
		return "", model.NewValidationError("point_of_sale", pointOfSale, "width", "point of sale must fit in 4 digits")
	}
	if expiry.IsZero() {
		return "", model.NewValidationError("cae_expires_at", nil, "required", "CAE expiry is required")
	}

	body := fmt.Sprintf("%s%02d%04d%s%s", issuerCUIT, int(voucherType), pointOfSale, cae, expiry.Compact())
	if len(body) != BarcodeBody {
		return "", model.NewValidationError("barcode", body, "width", fmt.Sprintf("barcode body must be %d digits", BarcodeBody))
	}

	check, err := CheckDigit(body)
	if err != nil {
		return "", err
	}
	return body + strconv.Itoa(check), nil
}

// CheckDigit computes the weighted mod-10 digit: the sum of digits at even
// 0-based positions times three, plus the sum at odd positions.
func CheckDigit(digits string) (int, error) {
	if digits == "" {
		return 0, model.NewValidationError("digits", digits, "required", "no digits to check")
	}
	even, odd := 0, 0
	for i, r := range digits {
		if r < '0' || r > '9' {
			return 0, model.NewValidationError("digits", digits, "numeric", fmt.Sprintf("non-digit %q at position %d", r, i))
		}
		if i%2 == 0 {
			even += int(r - '0')
		} else {
			odd += int(r - '0')
		}
	}
	total := even*3 + odd
	return (10 - total%10) % 10, nil
}

// requireDigits checks s is all digits, and exactly width long when width > 0
func requireDigits(field, s string, width int) error {
	if s == "" {
		return model.NewValidationError(field, s, "required", "value is required")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return model.NewValidationError(field, s, "numeric", "must contain digits only")
		}
	}
	if width > 0 && len(s) != width {
		return model.NewValidationError(field, s, "width", fmt.Sprintf("must be %d digits", width))
	}
	return nil
}
