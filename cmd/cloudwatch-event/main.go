// cloudwatch-event watches streaming access logs for 5xx responses,
// correlates each error with surrounding application log context, and files
// exactly one ticket / chat message / pub-sub notification per incident.
//
// Usage:
//
//	cloudwatch-event serve --config config.yaml
//	cloudwatch-event parse '<access log line>'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "cloudwatch-event",
		Short:   "Correlate 5xx access log events and dispatch alerts",
		Version: version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
