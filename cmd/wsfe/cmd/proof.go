package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/proof"
)

var proofCmd = &cobra.Command{
	Use:   "proof [file]",
	Short: "Build the QR payload and barcode for an authorized voucher",
	Long: `Rebuild the printable proofs from a stored authorization. The file holds
{"issuer_cuit": ..., "request": {...}, "result": {...}} as written by
"wsfe authorize -f json" plus the issuer CUIT. No network access is needed.

Examples:
  wsfe proof authorized.json
  cat authorized.json | wsfe proof -`,
	Args: cobra.ExactArgs(1),
	RunE: runProof,
}

type proofInput struct {
	IssuerCUIT string                     `json:"issuer_cuit"`
	Request    model.AuthorizationRequest `json:"request"`
	Result     model.AuthorizationResult  `json:"result"`
}

func init() {
	rootCmd.AddCommand(proofCmd)
}

func runProof(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	var in proofInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}

	artifacts, err := proof.Build(in.IssuerCUIT, in.Request, in.Result)
	if err != nil {
		return err
	}
	return output(artifacts, func(w io.Writer) {
		fmt.Fprintf(w, "QR payload:\t%s\n", artifacts.QRJSON)
		printProof(w, artifacts)
	})
}
