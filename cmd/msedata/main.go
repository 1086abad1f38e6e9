// Command msedata serves and ingests Macedonian Stock Exchange market data.
//
//	msedata serve
//	msedata migrate
//	msedata ingest --kind historical_data --file history.json
package main

import (
	"os"

	"github.com/trogers1052/mse-market-data/cmd/msedata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
