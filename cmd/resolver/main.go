// Command resolver runs one resolution pass: ingest raw extraction records,
// reconcile near-duplicate aggregates, and export the canonical report.
// Business logic lives in the internal resolution packages; this binary only
// wires them together.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resolver",
	Short: "Entity resolution for due-diligence fact extraction",
	Long: `resolver deduplicates extracted business objects (applications,
infrastructure, people) into canonical aggregates, partitioned between the
target and buyer entities of one deal.

Backends are configured through the environment:
  DEALROOM_ADDR                  ops HTTP listen address (default :8080)
  DEALROOM_REDIS_URL             shared extraction-claim store (optional)
  DEALROOM_POSTGRES_URL          snapshot export sink (optional)
  DEALROOM_KAFKA_BROKERS         audit event brokers, comma separated (optional)
  DEALROOM_RECONCILE_MAX_ITEMS   reconciliation batch cap (default 500)
  DEALROOM_SIMILARITY_THRESHOLD  near-duplicate threshold (default 0.85)`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
