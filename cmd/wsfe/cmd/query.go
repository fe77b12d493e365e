package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/model"
)

var voucherNumber int64

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read back an authorized voucher",
	Long: `Fetch a previously authorized voucher from the authority.

Examples:
  wsfe query -a acme --pos 1 --type A --number 43
  wsfe query -a acme --pos 1 --type B --number 7 -f json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addTupleFlags(queryCmd)
	queryCmd.Flags().Int64Var(&voucherNumber, "number", 0, "Voucher number")
	_ = queryCmd.MarkFlagRequired("number")
}

func runQuery(cmd *cobra.Command, args []string) error {
	vt, err := model.ParseVoucherType(voucherType)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
	defer cancel()

	account, err := a.account(ctx)
	if err != nil {
		return err
	}
	record, err := a.wsfe.GetVoucher(ctx, account, pointOfSale, vt, voucherNumber)
	if err != nil {
		return err
	}

	return output(record, func(w io.Writer) {
		fmt.Fprintf(w, "Voucher:\t%s %04d-%08d\n", record.VoucherType.Code(), record.PointOfSale, record.VoucherNumber)
		fmt.Fprintf(w, "Date:\t%s\n", record.VoucherDate.ISO())
		fmt.Fprintf(w, "Receiver:\t%s %s\n", record.DocumentType, record.DocumentNumber)
		fmt.Fprintf(w, "Total:\t%s %s\n", record.Totals.Total.StringFixed(2), record.Currency)
		fmt.Fprintf(w, "Result:\t%s\n", record.Result)
		if record.CAE != "" {
			fmt.Fprintf(w, "CAE:\t%s (expires %s)\n", record.CAE, record.CAEExpiresAt.ISO())
		}
		printObservations(w, record.Observations)
	})
}
