package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
)

var invoiceID string

var authorizeCmd = &cobra.Command{
	Use:   "authorize [files...]",
	Short: "Authorize vouchers from JSON drafts",
	Long: `Authorize one or more vouchers. Each file holds a draft object or an
array of drafts; "-" reads standard input. The voucher number is assigned
right before submission from the last authorized number.

A single draft is authorized as one invoice. Several drafts are authorized as
a batch, strictly one after another; a failure does not stop the batch.

Examples:
  wsfe authorize -a acme draft.json
  wsfe authorize -a acme --invoice INV-0042 draft.json
  wsfe authorize -a acme drafts/*.json -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAuthorize,
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
	authorizeCmd.Flags().StringVar(&invoiceID, "invoice", "", "Invoice id for a single draft (default: file name)")
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	drafts, names, err := readDrafts(args)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return fmt.Errorf("no drafts found")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	if len(drafts) == 1 {
		id := invoiceID
		if id == "" {
			id = names[0]
		}
		return authorizeOne(cmd.Context(), a, id, drafts[0])
	}
	return authorizeBatch(cmd.Context(), a, drafts)
}

func authorizeOne(ctx context.Context, a *app, id string, draft model.Draft) error {
	if err := requireAccount(); err != nil {
		return err
	}
	if err := a.ledger.Put(id, accountID, draft); err != nil {
		return err
	}
	printVerbose("Authorizing invoice %s\n", id)

	emission, emitErr := a.emitter.EmitInvoice(ctx, accountID, id)
	if emission == nil {
		return emitErr
	}
	if err := output(emission, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s authorized\n", id)
		printEmission(w, emission)
	}); err != nil {
		return err
	}
	return emitErr
}

func authorizeBatch(ctx context.Context, a *app, drafts []model.Draft) error {
	account, err := a.account(ctx)
	if err != nil {
		return err
	}

	result := a.emitter.EmitBatch(ctx, account, drafts)
	if err := output(result, func(w io.Writer) {
		fmt.Fprintf(w, "Batch:\t%s\n", result.ID)
		for _, item := range result.Items {
			switch item.Status {
			case emitter.StatusAuthorized:
				fmt.Fprintf(w, "✓ #%d\t%s %04d-%08d\tCAE %s\n", item.Index,
					item.Emission.Request.VoucherType.Code(), item.Emission.Request.PointOfSale,
					item.Emission.Request.VoucherNumber, item.Emission.Result.CAE)
				if item.Error != "" {
					fmt.Fprintf(w, "  ⚠\t%s\n", item.Error)
				}
			default:
				fmt.Fprintf(w, "✗ #%d\t%s\t%s\n", item.Index, item.Status, item.Error)
			}
		}
	}); err != nil {
		return err
	}

	if failed := len(result.Items) - result.Count(emitter.StatusAuthorized); failed > 0 {
		return fmt.Errorf("%d of %d drafts were not authorized", failed, len(result.Items))
	}
	return nil
}

// readDrafts loads drafts from files; names holds one id per draft
func readDrafts(args []string) ([]model.Draft, []string, error) {
	var (
		drafts []model.Draft
		names  []string
	)
	for _, arg := range args {
		var (
			data []byte
			err  error
		)
		name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		if arg == "-" {
			name = "stdin"
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(arg)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}

		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '[' {
			var batch []model.Draft
			if err := json.Unmarshal(data, &batch); err != nil {
				return nil, nil, fmt.Errorf("failed to parse %s: %w", arg, err)
			}
			for i, d := range batch {
				drafts = append(drafts, d)
				names = append(names, fmt.Sprintf("%s-%d", name, i+1))
			}
			continue
		}

		var draft model.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", arg, err)
		}
		drafts = append(drafts, draft)
		names = append(names, name)
	}
	return drafts, names, nil
}
