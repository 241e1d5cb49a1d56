// Command pipeline is the media-pipeline CLI: prepare-job turns a raw
// request into a prepared job directory, run-pipeline executes a prepared
// job's stage sequence, and the hidden run-stage subcommand is how the
// orchestrator dispatches a single stage as its own OS process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Media transcription/translation/subtitling pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPrepareJobCmd())
	root.AddCommand(newRunPipelineCmd())
	root.AddCommand(newRunStageCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}
