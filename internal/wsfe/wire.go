package wsfe

import (
	"encoding/xml"

	dec "github.com/rezonia/wsfe-client/internal/decimal"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/soap"
)

// Namespace is the WSFEv1 service namespace
const Namespace = "http://ar.gov.afip.dif.FEV1/"

// Operation names, also used to build SOAPAction headers
const (
	OpLastVoucher = "FECompUltimoAutorizado"
	OpAuthorize   = "FECAESolicitar"
	OpGetVoucher  = "FECompConsultar"
	OpDummy       = "FEDummy"
)

var arNamespace = soap.Namespace{Prefix: "ar", URI: Namespace}

func action(op string) string {
	return Namespace + op
}

type authHeader struct {
	Token string `xml:"ar:Token"`
	Sign  string `xml:"ar:Sign"`
	Cuit  string `xml:"ar:Cuit"`
}

type lastVoucherRequest struct {
	XMLName  xml.Name   `xml:"ar:FECompUltimoAutorizado"`
	Auth     authHeader `xml:"ar:Auth"`
	PtoVta   int        `xml:"ar:PtoVta"`
	CbteTipo int        `xml:"ar:CbteTipo"`
}

type getVoucherRequest struct {
	XMLName xml.Name   `xml:"ar:FECompConsultar"`
	Auth    authHeader `xml:"ar:Auth"`
	Query   compQuery  `xml:"ar:FeCompConsReq"`
}

type compQuery struct {
	CbteTipo int   `xml:"ar:CbteTipo"`
	CbteNro  int64 `xml:"ar:CbteNro"`
	PtoVta   int   `xml:"ar:PtoVta"`
}

type dummyRequest struct {
	XMLName xml.Name `xml:"ar:FEDummy"`
}

type authorizeRequest struct {
	XMLName xml.Name   `xml:"ar:FECAESolicitar"`
	Auth    authHeader `xml:"ar:Auth"`
	Req     caeRequest `xml:"ar:FeCAEReq"`
}

type caeRequest struct {
	Header caeHeader `xml:"ar:FeCabReq"`
	Detail caeDetail `xml:"ar:FeDetReq>ar:FECAEDetRequest"`
}

type caeHeader struct {
	CantReg  int `xml:"ar:CantReg"`
	PtoVta   int `xml:"ar:PtoVta"`
	CbteTipo int `xml:"ar:CbteTipo"`
}

// caeDetail follows the field order of the service's schema
type caeDetail struct {
	Concepto               int           `xml:"ar:Concepto"`
	DocTipo                int           `xml:"ar:DocTipo"`
	DocNro                 string        `xml:"ar:DocNro"`
	CbteDesde              int64         `xml:"ar:CbteDesde"`
	CbteHasta              int64         `xml:"ar:CbteHasta"`
	CbteFch                string        `xml:"ar:CbteFch"`
	ImpTotal               string        `xml:"ar:ImpTotal"`
	ImpTotConc             string        `xml:"ar:ImpTotConc"`
	ImpNeto                string        `xml:"ar:ImpNeto"`
	ImpOpEx                string        `xml:"ar:ImpOpEx"`
	ImpTrib                string        `xml:"ar:ImpTrib"`
	ImpIVA                 string        `xml:"ar:ImpIVA"`
	FchServDesde           string        `xml:"ar:FchServDesde,omitempty"`
	FchServHasta           string        `xml:"ar:FchServHasta,omitempty"`
	FchVtoPago             string        `xml:"ar:FchVtoPago,omitempty"`
	MonID                  string        `xml:"ar:MonId"`
	MonCotiz               string        `xml:"ar:MonCotiz"`
	CondicionIVAReceptorID int           `xml:"ar:CondicionIVAReceptorId,omitempty"`
	CbtesAsoc              []linkedEntry `xml:"ar:CbtesAsoc>ar:CbteAsoc,omitempty"`
	Iva                    []vatEntry    `xml:"ar:Iva>ar:AlicIva,omitempty"`
}

type linkedEntry struct {
	Tipo   int   `xml:"ar:Tipo"`
	PtoVta int   `xml:"ar:PtoVta"`
	Nro    int64 `xml:"ar:Nro"`
}

type vatEntry struct {
	ID      int    `xml:"ar:Id"`
	BaseImp string `xml:"ar:BaseImp"`
	Importe string `xml:"ar:Importe"`
}

func newAuthHeader(ticket model.SessionTicket, cuit string) authHeader {
	return authHeader{Token: ticket.Token, Sign: ticket.Sign, Cuit: cuit}
}

// buildAuthorizeRequest maps a validated request onto the wire shape.
// Amounts are always rendered with two decimals.
func buildAuthorizeRequest(auth authHeader, req model.AuthorizationRequest) authorizeRequest {
	t := req.Totals
	det := caeDetail{
		Concepto:               int(req.Concept),
		DocTipo:                int(req.DocumentType),
		DocNro:                 req.DocumentNumber,
		CbteDesde:              req.VoucherNumber,
		CbteHasta:              req.VoucherNumber,
		CbteFch:                req.VoucherDate.Compact(),
		ImpTotal:               dec.Format(t.Total),
		ImpTotConc:             dec.Format(t.NonTaxed),
		ImpNeto:                dec.Format(t.Net),
		ImpOpEx:                dec.Format(t.Exempt),
		ImpTrib:                dec.Format(t.Tributes),
		ImpIVA:                 dec.Format(t.Tax),
		MonID:                  req.Currency,
		MonCotiz:               dec.FormatRate(req.ExchangeRate),
		CondicionIVAReceptorID: req.ReceiverTaxCondition,
	}

	if p := req.ServicePeriod; p != nil && req.Concept.RequiresServicePeriod() {
		det.FchServDesde = p.From.Compact()
		det.FchServHasta = p.To.Compact()
		det.FchVtoPago = p.PaymentDue.Compact()
	}

	if req.VoucherType.IsNote() {
		for _, lv := range req.LinkedVouchers {
			det.CbtesAsoc = append(det.CbtesAsoc, linkedEntry{Tipo: int(lv.Type), PtoVta: lv.PointOfSale, Nro: lv.Number})
		}
	}

	if req.VoucherType.DiscriminatesVAT() {
		for _, l := range req.TaxRateLines {
			if l.RateID.Excluded() {
				continue
			}
			det.Iva = append(det.Iva, vatEntry{ID: int(l.RateID), BaseImp: dec.Format(l.NetBase), Importe: dec.Format(l.TaxAmount)})
		}
	}

	return authorizeRequest{
		Auth: auth,
		Req: caeRequest{
			Header: caeHeader{CantReg: 1, PtoVta: req.PointOfSale, CbteTipo: int(req.VoucherType)},
			Detail: det,
		},
	}
}
