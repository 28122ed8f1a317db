package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var documentCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"document", "docs"},
	Short:   "Manage ingested documents",
	Long:    `List, view, or delete ingested documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its fragments",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	documentListJSON bool
	showFragments    bool
	showContent      bool
)

func init() {
	documentListCmd.Flags().BoolVar(&documentListJSON, "json", false, "output documents as JSON")
	documentShowCmd.Flags().BoolVar(&showFragments, "fragments", false, "print the stored fragments")
	documentShowCmd.Flags().BoolVar(&showContent, "content", false, "print the decoded document text")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// documentOutput is the JSON form of a listed document.
type documentOutput struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	MIMEType       string   `json:"mime_type"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Description    string   `json:"description,omitempty"`
	SizeBytes      int64    `json:"size_bytes"`
	FragmentCount  int      `json:"fragment_count"`
	EmbeddingCount int      `json:"embedding_count"`
	CreatedAt      string   `json:"created_at"`
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentListJSON {
		out := make([]documentOutput, len(docs))
		for i := range docs {
			out[i] = documentOutput{
				ID:             docs[i].ID,
				Name:           docs[i].Name,
				MIMEType:       docs[i].MIMEType,
				Category:       docs[i].Category,
				Tags:           docs[i].Tags,
				Description:    docs[i].Description,
				SizeBytes:      docs[i].SizeBytes,
				FragmentCount:  docs[i].FragmentCount,
				EmbeddingCount: docs[i].EmbeddingCount,
				CreatedAt:      docs[i].CreatedAt.Format(timeLayout),
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Name: %s\n", docs[i].Name)
		if docs[i].Category != "" {
			cmd.Printf("    Category: %s\n", docs[i].Category)
		}
		cmd.Printf("    Fragments: %d/%d embedded\n", docs[i].EmbeddingCount, docs[i].FragmentCount)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID := args[0]
	ctx := cmd.Context()

	doc, err := documentService.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:        %s\n", doc.Name)
	cmd.Printf("  Type:        %s\n", doc.MIMEType)
	cmd.Printf("  Size:        %d bytes\n", doc.SizeBytes)
	if doc.Category != "" {
		cmd.Printf("  Category:    %s\n", doc.Category)
	}
	if len(doc.Tags) > 0 {
		cmd.Printf("  Tags:        %s\n", strings.Join(doc.Tags, ", "))
	}
	if doc.Description != "" {
		cmd.Printf("  Description: %s\n", doc.Description)
	}
	cmd.Printf("  Fragments:   %d\n", doc.FragmentCount)
	cmd.Printf("  Embedded:    %d\n", doc.EmbeddingCount)
	cmd.Printf("  Created:     %s\n", doc.CreatedAt.Format(timeLayout))
	if doc.LastEmbeddedAt != nil {
		cmd.Printf("  Embedded at: %s\n", doc.LastEmbeddedAt.Format(timeLayout))
	}

	if showContent {
		cmd.Println()
		cmd.Println(doc.Content)
	}

	if showFragments {
		fragments, err := documentService.Fragments(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to get fragments: %w", err)
		}
		printFragments(cmd, fragments)
	}

	return nil
}

func printFragments(cmd *cobra.Command, fragments []domain.Fragment) {
	cmd.Println()
	if len(fragments) == 0 {
		cmd.Println("  No stored fragments.")
		return
	}
	for i := range fragments {
		f := fragments[i]
		cmd.Printf("  #%d [%d-%d] %d words, %d dims\n", f.Index, f.Start, f.End, f.Metadata.WordCount, len(f.Embedding))
		cmd.Printf("    %s\n", snippet(f.Content, snippetLength))
	}
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID := args[0]
	if err := documentService.Delete(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", docID)
	return nil
}
