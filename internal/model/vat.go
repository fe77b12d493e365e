package model

import (
	"sort"

	"github.com/shopspring/decimal"

	dec "github.com/rezonia/wsfe-client/internal/decimal"
)

// VATRate is the authority's VAT rate identifier (AlicIva Id)
type VATRate int

const (
	VATNonTaxed VATRate = 1
	VATExempt   VATRate = 2
	VAT0        VATRate = 3
	VAT10_5     VATRate = 4
	VAT21       VATRate = 5
	VAT27       VATRate = 6
	VAT5        VATRate = 8
	VAT2_5      VATRate = 9
)

var vatPercents = map[VATRate]decimal.Decimal{
	VATNonTaxed: decimal.Zero,
	VATExempt:   decimal.Zero,
	VAT0:        decimal.Zero,
	VAT10_5:     decimal.RequireFromString("10.5"),
	VAT21:       decimal.NewFromInt(21),
	VAT27:       decimal.NewFromInt(27),
	VAT5:        decimal.NewFromInt(5),
	VAT2_5:      decimal.RequireFromString("2.5"),
}

// Percent returns the rate as a percentage
func (r VATRate) Percent() decimal.Decimal {
	return vatPercents[r]
}

// Valid reports whether r is a known rate id
func (r VATRate) Valid() bool {
	_, ok := vatPercents[r]
	return ok
}

// Excluded reports whether lines at this rate are left out of the Iva array
func (r VATRate) Excluded() bool {
	return r == VATNonTaxed || r == VATExempt || r == VAT0
}

// VATRateFromPercent maps a taxed percentage to its rate id. Zero maps to VAT0.
func VATRateFromPercent(p decimal.Decimal) (VATRate, error) {
	for _, r := range []VATRate{VAT0, VAT2_5, VAT5, VAT10_5, VAT21, VAT27} {
		if r.Percent().Equal(p) {
			return r, nil
		}
	}
	return 0, NewValidationError("vat_rate", p.String(), "enum", "unsupported VAT percentage")
}

// TaxRateLine is one entry of the VAT breakdown
type TaxRateLine struct {
	RateID    VATRate         `json:"rate_id"`
	NetBase   decimal.Decimal `json:"net_base"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
}

// LineItem is an invoice line reduced to what the breakdown needs
type LineItem struct {
	Net  decimal.Decimal `json:"net"`
	Rate VATRate         `json:"rate"`
}

// TaxBreakdown groups line items by rate into the amounts a request carries
type TaxBreakdown struct {
	Lines    []TaxRateLine
	Net      decimal.Decimal
	Exempt   decimal.Decimal
	NonTaxed decimal.Decimal
	Tax      decimal.Decimal
}

// BuildTaxBreakdown groups items per rate. VAT is computed per group and
// rounded to cents; 0% lines feed the net total but not the Iva array.
// Class C vouchers put every amount in the net total with no VAT at all.
func BuildTaxBreakdown(voucher VoucherType, items []LineItem) (TaxBreakdown, error) {
	b := TaxBreakdown{
		Net:      decimal.Zero,
		Exempt:   decimal.Zero,
		NonTaxed: decimal.Zero,
		Tax:      decimal.Zero,
	}

	if !voucher.DiscriminatesVAT() {
		for _, it := range items {
			b.Net = b.Net.Add(it.Net)
		}
		b.Net = dec.Round2(b.Net)
		return b, nil
	}

	groups := make(map[VATRate]decimal.Decimal)
	for i, it := range items {
		if !it.Rate.Valid() {
			return TaxBreakdown{}, NewValidationError("items", i, "vat_rate", "unknown VAT rate id")
		}
		switch it.Rate {
		case VATExempt:
			b.Exempt = b.Exempt.Add(it.Net)
		case VATNonTaxed:
			b.NonTaxed = b.NonTaxed.Add(it.Net)
		default:
			b.Net = b.Net.Add(it.Net)
			groups[it.Rate] = groups[it.Rate].Add(it.Net)
		}
	}

	rates := make([]VATRate, 0, len(groups))
	for r := range groups {
		if !r.Excluded() {
			rates = append(rates, r)
		}
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })

	for _, r := range rates {
		base := dec.Round2(groups[r])
		tax := dec.CalculateVAT(base, r.Percent())
		b.Lines = append(b.Lines, TaxRateLine{RateID: r, NetBase: base, TaxAmount: tax})
		b.Tax = b.Tax.Add(tax)
	}

	b.Net = dec.Round2(b.Net)
	b.Exempt = dec.Round2(b.Exempt)
	b.NonTaxed = dec.Round2(b.NonTaxed)
	return b, nil
}

// Totals builds request totals from the breakdown plus other tributes
func (b TaxBreakdown) Totals(tributes decimal.Decimal) Totals {
	t := Totals{
		Net:      b.Net,
		Exempt:   b.Exempt,
		NonTaxed: b.NonTaxed,
		Tax:      b.Tax,
		Tributes: tributes,
	}
	t.Total = dec.Sum([]decimal.Decimal{t.Net, t.Exempt, t.NonTaxed, t.Tax, t.Tributes})
	return t
}
