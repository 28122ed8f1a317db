package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

var (
	ingestCategory    string
	ingestTags        []string
	ingestDescription string
	ingestJSON        bool
	ingestPlain       bool
	ingestChunkSize   int
	ingestOverlap     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents into the knowledge store",
	Long: `Reads each file, splits it into fragments, embeds them and stores the result.

Plain text, Markdown, HTML, Word (.docx) and email (.eml) files are supported.
Files are ingested one at a time in the order given; a file that cannot be read
or ingested is reported as failed and does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "category label for filtering searches")
	ingestCmd.Flags().StringSliceVarP(&ingestTags, "tags", "t", nil, "comma-separated tags")
	ingestCmd.Flags().StringVarP(&ingestDescription, "description", "d", "", "short description")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output summaries as JSON")
	ingestCmd.Flags().BoolVar(&ingestPlain, "plain", false, "print progress lines instead of the progress view")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "target fragment size in characters (default from settings)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "fragment overlap in characters (default from settings)")
	rootCmd.AddCommand(ingestCmd)
}

// ingestResultOutput is the JSON form of one ingestion summary.
type ingestResultOutput struct {
	Name           string   `json:"name"`
	DocumentID     string   `json:"document_id,omitempty"`
	Outcome        string   `json:"outcome"`
	FragmentCount  int      `json:"fragment_count"`
	EmbeddingCount int      `json:"embedding_count"`
	TokenUsage     int      `json:"token_usage"`
	SuccessRatio   float64  `json:"success_ratio"`
	ElapsedMillis  int64    `json:"elapsed_ms"`
	Errors         []string `json:"errors,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}
	if fileReader == nil {
		return errNotConfigured("file reader")
	}

	ctx := cmd.Context()
	meta := domain.DocumentMetadata{
		Category:    ingestCategory,
		Tags:        ingestTags,
		Description: ingestDescription,
	}

	opts, err := ingestOptions(cmd)
	if err != nil {
		return err
	}

	// Files that cannot be read get a failed summary in their position.
	names := make([]string, len(args))
	results := make([]domain.IngestSummary, len(args))
	reqs := make([]domain.IngestRequest, 0, len(args))
	positions := make([]int, 0, len(args))
	var errs []error
	for i, path := range args {
		names[i] = filepath.Base(path)
		req, err := readIngestRequest(cmd, path, meta)
		if err != nil {
			results[i] = domain.IngestSummary{Outcome: domain.OutcomeFailed, Errors: []string{err.Error()}}
			errs = append(errs, err)
			continue
		}
		reqs = append(reqs, *req)
		positions = append(positions, i)
	}

	if len(reqs) > 0 {
		var (
			summaries []domain.IngestSummary
			ingestErr error
		)
		if !ingestJSON && !ingestPlain && isTerminal(cmd.OutOrStdout()) {
			summaries, ingestErr = tui.Run(ctx, &tui.Ports{Ingest: ingestService}, reqs, opts)
		} else {
			progress := lineProgress(cmd.ErrOrStderr())
			if ingestJSON {
				progress = nil
			}
			summaries, ingestErr = ingestService.IngestMany(ctx, reqs, opts, progress)
		}
		if ingestErr != nil {
			errs = append(errs, ingestErr)
		}

		for j, pos := range positions {
			if j < len(summaries) {
				results[pos] = summaries[j]
			} else {
				results[pos] = domain.IngestSummary{Outcome: domain.OutcomeCancelled}
			}
		}
	}

	if ingestJSON {
		if err := outputIngestJSON(cmd, names, results); err != nil {
			return err
		}
	} else {
		outputIngestTable(cmd, names, results)
	}

	if len(errs) > 0 {
		return fmt.Errorf("ingest failed: %w", errors.Join(errs...))
	}
	return nil
}

// readIngestRequest decodes path into a request carrying the shared metadata.
func readIngestRequest(cmd *cobra.Command, path string, meta domain.DocumentMetadata) (*domain.IngestRequest, error) {
	if !fileReader.SupportsFile(path) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedType)
	}

	extracted, err := fileReader.ReadFile(cmd.Context(), path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	meta.Name = filepath.Base(path)
	meta.MIMEType = extracted.MIMEType
	meta.SizeBytes = extracted.SizeBytes
	if meta.Description == "" && extracted.Title != "" {
		meta.Description = extracted.Title
	}

	return &domain.IngestRequest{Text: extracted.Text, Metadata: meta}, nil
}

// ingestOptions applies the chunking flags on top of the configured chunking settings.
func ingestOptions(cmd *cobra.Command) (domain.IngestOptions, error) {
	if !cmd.Flags().Changed("chunk-size") && !cmd.Flags().Changed("overlap") {
		return domain.IngestOptions{}, nil
	}

	chunking := domain.DefaultSettings().Chunking
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return domain.IngestOptions{}, fmt.Errorf("failed to get settings: %w", err)
		}
		chunking = settings.Chunking
	}

	if cmd.Flags().Changed("chunk-size") {
		chunking.Size = ingestChunkSize
		if chunking.MaxSize != 0 && chunking.MaxSize < chunking.Size {
			chunking.MaxSize = chunking.Size
		}
		if chunking.MinSize > chunking.Size {
			chunking.MinSize = chunking.Size
		}
	}
	if cmd.Flags().Changed("overlap") {
		chunking.Overlap = ingestOverlap
	}
	if err := chunking.Validate(); err != nil {
		return domain.IngestOptions{}, err
	}

	return domain.IngestOptions{Chunking: &chunking}, nil
}

func outputIngestJSON(cmd *cobra.Command, names []string, summaries []domain.IngestSummary) error {
	out := make([]ingestResultOutput, len(summaries))
	for i := range summaries {
		s := summaries[i]
		out[i] = ingestResultOutput{
			Name:           names[i],
			Outcome:        string(s.Outcome),
			FragmentCount:  s.Stats.FragmentCount,
			EmbeddingCount: s.Stats.EmbeddingCount,
			TokenUsage:     s.Stats.TokenUsage,
			SuccessRatio:   s.Stats.SuccessRatio,
			ElapsedMillis:  s.Stats.Elapsed.Milliseconds(),
			Errors:         s.Errors,
		}
		if s.Document != nil {
			out[i].DocumentID = s.Document.ID
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputIngestTable(cmd *cobra.Command, names []string, summaries []domain.IngestSummary) {
	if len(summaries) == 0 {
		cmd.Println("Nothing was ingested.")
		return
	}

	cmd.Println()
	for i := range summaries {
		s := summaries[i]
		cmd.Printf("  %s: %s\n", names[i], s.Outcome)
		if s.Document != nil {
			cmd.Printf("    ID:        %s\n", s.Document.ID)
		}
		if s.Outcome == domain.OutcomeCompleted {
			cmd.Printf("    Fragments: %d/%d embedded (%.0f%%)\n",
				s.Stats.EmbeddingCount, s.Stats.FragmentCount, s.Stats.SuccessRatio*100)
			cmd.Printf("    Tokens:    %d\n", s.Stats.TokenUsage)
		}
		if s.Stats.Elapsed > 0 {
			cmd.Printf("    Elapsed:   %s\n", s.Stats.Elapsed.Round(time.Millisecond))
		}
		for _, e := range s.Errors {
			cmd.Printf("    ! %s\n", e)
		}
	}

	completed := 0
	for i := range summaries {
		if summaries[i].Outcome == domain.OutcomeCompleted {
			completed++
		}
	}
	cmd.Printf("\n%d of %d documents ingested.\n", completed, len(names))
}
