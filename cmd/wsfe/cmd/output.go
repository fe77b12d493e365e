package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
)

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// output prints v as JSON, or through table for the table format
func output(v interface{}, table func(w io.Writer)) error {
	switch outputFormat {
	case "json":
		return printJSON(os.Stdout, v)
	case "table", "":
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func printEmission(w io.Writer, e *emitter.Emission) {
	fmt.Fprintf(w, "Voucher:\t%s %04d-%08d\n", e.Request.VoucherType.Code(), e.Request.PointOfSale, e.Request.VoucherNumber)
	fmt.Fprintf(w, "CAE:\t%s\n", e.Result.CAE)
	fmt.Fprintf(w, "CAE expires:\t%s\n", e.Result.CAEExpiresAt.ISO())
	printObservations(w, e.Result.Observations)
	printProof(w, e.Proof)
}

func printProof(w io.Writer, p model.ProofArtifacts) {
	fmt.Fprintf(w, "Barcode:\t%s\n", p.Barcode)
	fmt.Fprintf(w, "QR:\t%s\n", p.QRURL)
}

func printObservations(w io.Writer, obs []model.Observation) {
	for _, o := range obs {
		fmt.Fprintf(w, "  ⚠\t%s\n", o)
	}
}
