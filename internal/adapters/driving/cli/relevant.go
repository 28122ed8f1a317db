package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

var (
	contextTopic    string
	contextLimit    int
	contextCategory string
	contextJSON     bool
)

var contextCmd = &cobra.Command{
	Use:   "context [file]",
	Short: "Assemble stored passages relevant to a piece of text",
	Long: `Reads the source text (use "-" for stdin), builds a query from the topic,
the configured keywords and the text's most frequent significant terms,
and prints the matching passages with where they came from.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringVar(&contextTopic, "topic", "", "topic hint placed first in the query")
	contextCmd.Flags().IntVarP(&contextLimit, "limit", "n", 0, "maximum number of passages (default from settings)")
	contextCmd.Flags().StringVarP(&contextCategory, "category", "c", "", "only use documents in this category")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output the context as JSON")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextService == nil {
		return errNotConfigured("context")
	}

	source, err := readSourceText(cmd, args[0])
	if err != nil {
		return err
	}

	opts := domain.ContextOptions{
		Search: domain.SearchOptions{
			Limit:    contextLimit,
			Category: contextCategory,
		},
	}
	result, err := contextService.RelevantContext(cmd.Context(), source, contextTopic, opts)
	if err != nil {
		return fmt.Errorf("context failed: %w", err)
	}

	if contextJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Printf("Query: %s\n\n", result.Query)
	if len(result.Sources) == 0 {
		cmd.Println("No relevant passages found.")
		return nil
	}

	cmd.Println(result.Context)
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range result.Sources {
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, src.DocumentName, src.FragmentIndex, src.Similarity)
	}
	return nil
}

// readSourceText reads a file through the extractors, or stdin for "-".
func readSourceText(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	if fileReader == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}

	extracted, err := fileReader.ReadFile(cmd.Context(), path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return extracted.Text, nil
}
