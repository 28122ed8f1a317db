package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// snippetLength is how many characters of a fragment the table output shows.
const snippetLength = 160

var (
	searchLimit     int
	searchThreshold float64
	searchCategory  string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Embeds the query and returns the stored fragments most similar to it.
Results are ranked by cosine similarity, highest first.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from settings)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity (default from settings)")
	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "only search documents in this category")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

// searchResultOutput is the JSON form of one search result.
type searchResultOutput struct {
	Rank          int      `json:"rank"`
	DocumentID    string   `json:"document_id"`
	DocumentName  string   `json:"document_name"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	FragmentIndex int      `json:"fragment_index"`
	Similarity    float64  `json:"similarity"`
	Content       string   `json:"content"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errNotConfigured("search")
	}

	opts := domain.SearchOptions{
		Limit:     searchLimit,
		Threshold: searchThreshold,
		Category:  searchCategory,
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultOutput, len(results))
	for i := range results {
		out[i] = searchResultOutput{
			Rank:          results[i].Rank,
			DocumentID:    results[i].DocumentID,
			DocumentName:  results[i].Document.Name,
			Category:      results[i].Document.Category,
			Tags:          results[i].Document.Tags,
			FragmentIndex: results[i].FragmentIndex,
			Similarity:    results[i].Similarity,
			Content:       results[i].Content,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Name #fragment (similarity)
		name := results[i].Document.Name
		if name == "" {
			name = results[i].DocumentID
		}

		cmd.Printf("  [%d] %s #%d (%.2f)\n", results[i].Rank, name, results[i].FragmentIndex, results[i].Similarity)
		if results[i].Document.Category != "" {
			cmd.Printf("      Category: %s\n", results[i].Document.Category)
		}
		cmd.Printf("      %s\n", snippet(results[i].Content, snippetLength))
		cmd.Println()
	}

	return nil
}

// snippet flattens whitespace and shortens s to at most n characters.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
