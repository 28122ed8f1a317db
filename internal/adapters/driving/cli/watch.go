package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/adapters/driving/watch"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

var (
	watchCategory string
	watchTags     []string
	watchExisting bool
	watchReplace  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Ingest files as they change",
	Long: `Watches a directory tree and ingests supported files when they are created
or modified. Hidden files and directories are ignored. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchCategory, "category", "c", "", "category label for ingested files")
	watchCmd.Flags().StringSliceVarP(&watchTags, "tags", "t", nil, "comma-separated tags")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "ingest files already in the directory first")
	watchCmd.Flags().BoolVar(&watchReplace, "replace", false, "delete earlier versions of a file before ingesting it")
	watchCmd.Flags().String("metrics-addr", "", "Metrics listen address (default from settings)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}
	if fileReader == nil {
		return errNotConfigured("file reader")
	}

	w, err := watch.New(args[0], fileReader, ingestService)
	if err != nil {
		return err
	}
	w.SetMetadata(domain.DocumentMetadata{Category: watchCategory, Tags: watchTags})
	if watchReplace {
		if documentService == nil {
			return errNotConfigured("document")
		}
		w.SetReplace(documentService)
	}

	w.SetResultHandler(func(path string, summary *domain.IngestSummary, err error) {
		switch {
		case err != nil:
			cmd.PrintErrf("  ! %s: %v\n", path, err)
		case summary != nil && summary.Document != nil:
			cmd.Printf("  %s: %s (%d/%d fragments embedded, id %s)\n", path, summary.Outcome,
				summary.Stats.EmbeddingCount, summary.Stats.FragmentCount, summary.Document.ID)
		case summary != nil:
			cmd.Printf("  %s: %s\n", path, summary.Outcome)
		}
	})

	stopMetrics, err := startMetrics(cmd)
	if err != nil {
		return err
	}
	defer stopMetrics()

	ctx := cmd.Context()
	if watchExisting {
		if err := w.IngestExisting(ctx); err != nil && ctx.Err() == nil {
			return err
		}
	}

	cmd.PrintErrf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(ctx)
}
