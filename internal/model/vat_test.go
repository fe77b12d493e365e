package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/wsfe-client/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestVATRateFromPercent(t *testing.T) {
	tests := []struct {
		percent string
		want    model.VATRate
	}{
		{"0", model.VAT0},
		{"2.5", model.VAT2_5},
		{"5", model.VAT5},
		{"10.5", model.VAT10_5},
		{"21", model.VAT21},
		{"27", model.VAT27},
	}
	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			r, err := model.VATRateFromPercent(d(tt.percent))
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
			assert.True(t, r.Percent().Equal(d(tt.percent)))
		})
	}

	_, err := model.VATRateFromPercent(d("19"))
	assert.Error(t, err)
}

func TestBuildTaxBreakdown_SumMatchesTax(t *testing.T) {
	rates := []model.VATRate{model.VAT2_5, model.VAT5, model.VAT10_5, model.VAT21, model.VAT27}
	for _, rate := range rates {
		t.Run(rate.Percent().String(), func(t *testing.T) {
			items := []model.LineItem{
				{Net: d("100.00"), Rate: rate},
				{Net: d("33.33"), Rate: rate},
				{Net: d("0.99"), Rate: rate},
				{Net: d("50.00"), Rate: model.VAT0},
			}
			b, err := model.BuildTaxBreakdown(model.VoucherA, items)
			require.NoError(t, err)

			expected := d("134.32").Mul(rate.Percent()).Div(d("100")).Round(2)
			sum := decimal.Zero
			for _, l := range b.Lines {
				sum = sum.Add(l.TaxAmount)
			}
			assert.True(t, sum.Equal(b.Tax), "lines %s vs tax %s", sum, b.Tax)
			assert.True(t, expected.Equal(b.Tax), "expected %s got %s", expected, b.Tax)
		})
	}
}

func TestBuildTaxBreakdown_MixedRates(t *testing.T) {
	items := []model.LineItem{
		{Net: d("1000"), Rate: model.VAT21},
		{Net: d("500"), Rate: model.VAT10_5},
		{Net: d("200"), Rate: model.VAT21},
		{Net: d("300"), Rate: model.VAT0},
		{Net: d("80"), Rate: model.VATExempt},
		{Net: d("20"), Rate: model.VATNonTaxed},
	}

	b, err := model.BuildTaxBreakdown(model.VoucherB, items)
	require.NoError(t, err)

	require.Len(t, b.Lines, 2)
	assert.Equal(t, model.VAT10_5, b.Lines[0].RateID)
	assert.True(t, b.Lines[0].NetBase.Equal(d("500")))
	assert.True(t, b.Lines[0].TaxAmount.Equal(d("52.5")))
	assert.Equal(t, model.VAT21, b.Lines[1].RateID)
	assert.True(t, b.Lines[1].NetBase.Equal(d("1200")))
	assert.True(t, b.Lines[1].TaxAmount.Equal(d("252")))

	// 0% base counts toward net but is not in the breakdown
	assert.True(t, b.Net.Equal(d("2000")))
	assert.True(t, b.Exempt.Equal(d("80")))
	assert.True(t, b.NonTaxed.Equal(d("20")))
	assert.True(t, b.Tax.Equal(d("304.5")))

	totals := b.Totals(decimal.Zero)
	assert.True(t, totals.Total.Equal(d("2404.5")))
}

func TestBuildTaxBreakdown_ClassC(t *testing.T) {
	items := []model.LineItem{
		{Net: d("1000"), Rate: model.VAT21},
		{Net: d("250.50"), Rate: model.VAT10_5},
	}

	for _, v := range []model.VoucherType{model.VoucherC, model.VoucherNDC, model.VoucherNCC} {
		b, err := model.BuildTaxBreakdown(v, items)
		require.NoError(t, err)
		assert.Empty(t, b.Lines)
		assert.True(t, b.Tax.IsZero())
		assert.True(t, b.Net.Equal(d("1250.50")))
	}
}

func TestBuildTaxBreakdown_UnknownRate(t *testing.T) {
	_, err := model.BuildTaxBreakdown(model.VoucherA, []model.LineItem{{Net: d("1"), Rate: model.VATRate(7)}})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
}
