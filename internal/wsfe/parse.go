package wsfe

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/soap"
)

// collect reads every Code/Msg pair under path
func collect(el *etree.Element, path string) []model.Observation {
	if el == nil {
		return nil
	}
	var out []model.Observation
	for _, item := range el.FindElements(path) {
		code, _ := strconv.Atoi(soap.Text(item, "Code"))
		out = append(out, model.Observation{
			Code:    code,
			Message: soap.Text(item, "Msg"),
		})
	}
	return out
}

func parseVoucherRecord(get *etree.Element) (model.VoucherRecord, error) {
	p := fieldParser{el: get}

	rec := model.VoucherRecord{
		PointOfSale:    p.int("PtoVta"),
		VoucherType:    model.VoucherType(p.int("CbteTipo")),
		VoucherNumber:  p.int64("CbteDesde"),
		Concept:        model.Concept(p.int("Concepto")),
		DocumentType:   model.DocumentType(p.int("DocTipo")),
		DocumentNumber: soap.Text(get, "DocNro"),
		VoucherDate:    p.date("CbteFch"),
		Totals: model.Totals{
			Net:      p.decimal("ImpNeto"),
			Exempt:   p.decimal("ImpOpEx"),
			NonTaxed: p.decimal("ImpTotConc"),
			Tax:      p.decimal("ImpIVA"),
			Tributes: p.decimal("ImpTrib"),
			Total:    p.decimal("ImpTotal"),
		},
		Currency:     soap.Text(get, "MonId"),
		ExchangeRate: p.decimal("MonCotiz"),
		Result:       soap.Text(get, "Resultado"),
		EmissionType: soap.Text(get, "EmisionTipo"),
		CAE:          soap.Text(get, "CodAutorizacion"),
		CAEExpiresAt: p.date("FchVto"),
		ProcessedAt:  soap.Text(get, "FchProceso"),
		Observations: collect(get, "Observaciones/Obs"),
	}

	if p.err != nil {
		return model.VoucherRecord{}, model.NewAuthTransportError(OpGetVoucher, "malformed voucher record", p.err)
	}
	return rec, nil
}

// fieldParser reads typed child values and keeps the first error
type fieldParser struct {
	el  *etree.Element
	err error
}

func (p *fieldParser) text(name string) string {
	return soap.Text(p.el, name)
}

func (p *fieldParser) int(name string) int {
	return int(p.int64(name))
}

func (p *fieldParser) int64(name string) int64 {
	raw := p.text(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return n
}

func (p *fieldParser) decimal(name string) decimal.Decimal {
	raw := p.text(name)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func (p *fieldParser) date(name string) model.Date {
	raw := p.text(name)
	if raw == "" {
		return model.Date{}
	}
	d, err := model.ParseCompactDate(raw)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}
