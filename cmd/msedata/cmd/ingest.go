package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/trogers1052/mse-market-data/internal/ingest"
)

var (
	ingestKind string
	ingestFile string
	ingestKey  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one batch of records from a JSON array file",
	Example: `  msedata ingest --kind issuer --file issuers.json
  msedata ingest --kind historical_data --file - --key history-2024-01-02 < history.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := ingest.ParseKind(ingestKind)
		if err != nil {
			return err
		}

		records, err := readRecords(ingestFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		idem, closeIdem, err := newIdempotency(ctx)
		if err != nil {
			return err
		}
		defer closeIdem()

		res := ingest.NewService(db, idem).Ingest(ctx, kind, ingestKey, records)
		fmt.Fprintln(cmd.OutOrStdout(), res.Message())
		if !res.OK() {
			return res.Err
		}
		if res.Replayed {
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %q was already ingested; nothing written\n", ingestKey)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "", "record kind: issuer, historical_data or signal")
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "JSON array file, or - for stdin")
	ingestCmd.Flags().StringVar(&ingestKey, "key", "", "idempotency key for the batch")
	_ = ingestCmd.MarkFlagRequired("kind")
	_ = ingestCmd.MarkFlagRequired("file")
}

func readRecords(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}
