package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/model"
)

var (
	pointOfSale int
	voucherType string
)

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the last authorized voucher number",
	Long: `Query the highest voucher number the authority has authorized for a
point of sale and voucher type. After an ambiguous timeout this is the way to
learn whether the voucher went through.

Examples:
  wsfe last -a acme --pos 1 --type A
  wsfe last -a acme --pos 2 --type 11`,
	Args: cobra.NoArgs,
	RunE: runLast,
}

func init() {
	rootCmd.AddCommand(lastCmd)
	addTupleFlags(lastCmd)
}

func addTupleFlags(c *cobra.Command) {
	c.Flags().IntVar(&pointOfSale, "pos", 0, "Point of sale")
	c.Flags().StringVar(&voucherType, "type", "", "Voucher type (A, B, C, NCA, ... or numeric code)")
	_ = c.MarkFlagRequired("pos")
	_ = c.MarkFlagRequired("type")
}

func runLast(cmd *cobra.Command, args []string) error {
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
	last, err := a.wsfe.LastVoucher(ctx, account, pointOfSale, vt)
	if err != nil {
		return err
	}

	result := map[string]interface{}{
		"point_of_sale": pointOfSale,
		"voucher_type":  vt,
		"last":          last,
		"next":          last + 1,
	}
	return output(result, func(w io.Writer) {
		fmt.Fprintf(w, "Voucher:\t%s %04d\n", vt.Code(), pointOfSale)
		fmt.Fprintf(w, "Last:\t%d\n", last)
		fmt.Fprintf(w, "Next:\t%d\n", last+1)
	})
}
