package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

var errMock = errors.New("mock failure")

type mockIngestService struct {
	reqs []domain.IngestRequest
	opts domain.IngestOptions
	err  error
}

func (m *mockIngestService) Ingest(
	ctx context.Context, req domain.IngestRequest, opts domain.IngestOptions, onProgress driving.ProgressFunc,
) (*domain.IngestSummary, error) {
	summaries, err := m.IngestMany(ctx, []domain.IngestRequest{req}, opts, onProgress)
	return &summaries[0], err
}

func (m *mockIngestService) IngestMany(
	_ context.Context, reqs []domain.IngestRequest, opts domain.IngestOptions, onProgress driving.ProgressFunc,
) ([]domain.IngestSummary, error) {
	m.reqs = append(m.reqs, reqs...)
	m.opts = opts

	summaries := make([]domain.IngestSummary, len(reqs))
	for i := range reqs {
		if onProgress != nil {
			onProgress(domain.IngestProgress{
				Stage:   domain.StageComplete,
				Percent: domain.PercentComplete,
				Message: "stored " + reqs[i].Metadata.Name,
			})
		}
		if m.err != nil {
			summaries[i] = domain.IngestSummary{Outcome: domain.OutcomeFailed, Errors: []string{m.err.Error()}}
			continue
		}
		summaries[i] = domain.IngestSummary{
			Outcome:  domain.OutcomeCompleted,
			Document: &domain.Document{ID: "doc-" + reqs[i].Metadata.Name, Name: reqs[i].Metadata.Name},
			Stats: domain.IngestStats{
				FragmentCount:  4,
				EmbeddingCount: 4,
				TokenUsage:     120,
				SuccessRatio:   1,
				Elapsed:        1500 * time.Millisecond,
			},
		}
	}
	return summaries, m.err
}

type mockSearchService struct {
	results []domain.SearchResult
	err     error
	query   string
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.query = query
	m.opts = opts
	return m.results, m.err
}

type mockContextService struct {
	result *domain.ContextResult
	err    error
	source string
	topic  string
	opts   domain.ContextOptions
}

func (m *mockContextService) RelevantContext(
	_ context.Context, sourceText, topicHint string, opts domain.ContextOptions,
) (*domain.ContextResult, error) {
	m.source = sourceText
	m.topic = topicHint
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockDocumentService struct {
	docs      []domain.Document
	fragments []domain.Fragment
	deleted   []string
	err       error
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) Fragments(context.Context, string) ([]domain.Fragment, error) {
	return m.fragments, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSettingsService struct {
	settings domain.Settings
	set      map[string]any
	err      error
}

func (m *mockSettingsService) Get() (*domain.Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key string, value any) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = make(map[string]any)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// mockFileReader reads files from disk and supports .txt and .md only.
type mockFileReader struct{}

func (mockFileReader) SupportsFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func (mockFileReader) ReadFile(_ context.Context, path string) (*domain.ExtractedText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &domain.ExtractedText{
		Title:     "Title of " + filepath.Base(path),
		Text:      string(data),
		MIMEType:  "text/plain",
		SizeBytes: int64(len(data)),
	}, nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ingest   *mockIngestService
	search   *mockSearchService
	context  *mockContextService
	document *mockDocumentService
	settings *mockSettingsService
}

// setupTestServices installs mock services and returns them with a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingest: &mockIngestService{},
		search: &mockSearchService{},
		context: &mockContextService{
			result: &domain.ContextResult{Query: "q", Sources: []domain.Provenance{}},
		},
		document: &mockDocumentService{},
		settings: &mockSettingsService{settings: domain.DefaultSettings()},
	}

	SetServices(&Services{
		Ingest:   ts.ingest,
		Search:   ts.search,
		Context:  ts.context,
		Document: ts.document,
		Settings: ts.settings,
		Files:    mockFileReader{},
	})
	prevBootstrap := bootstrap
	bootstrap = nil

	return ts, func() {
		SetServices(nil)
		bootstrap = prevBootstrap
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag in the tree to its default so tests don't leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeWithInput is execute with stdin content.
func executeWithInput(input string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
