package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/brief-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/brief-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/brief-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 80
)

// App shows the progress of a queue of ingestions following the Elm architecture.
// Documents are ingested one at a time on a worker goroutine; events reach the
// model through a channel drained by a command.
type App struct {
	ports  *Ports
	reqs   []domain.IngestRequest
	opts   domain.IngestOptions
	styles *styles.Styles
	keys   *keymap.KeyMap
	bar    progress.Model

	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	events   chan tea.Msg
	stopped  chan struct{}
	finished chan struct{}

	// current is the index of the document being ingested.
	current int
	// stage and percent describe the current document.
	stage   domain.IngestStage
	percent int

	// summaries and errs are written by the worker.
	mu        sync.Mutex
	summaries []domain.IngestSummary
	errs      []error

	cancelling bool
	done       bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a progress view that will ingest reqs in order.
func NewApp(ports *Ports, reqs []domain.IngestRequest, opts domain.IngestOptions) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	if len(reqs) == 0 {
		return nil, ErrNoDocuments
	}

	s := styles.DefaultStyles()
	theme := s.Theme()
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		ports:     ports,
		reqs:      reqs,
		opts:      opts,
		styles:    s,
		keys:      keymap.DefaultKeyMap(),
		bar:       progress.New(progress.WithGradient(string(theme.Primary), string(theme.Secondary)), progress.WithWidth(defaultBarWidth)),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan tea.Msg, 16),
		stopped:   make(chan struct{}),
		finished:  make(chan struct{}),
		summaries: make([]domain.IngestSummary, len(reqs)),
		errs:      make([]error, len(reqs)),
	}, nil
}

// WithContext sets the parent context for the ingestion run.
// It must be called before the program starts.
func (a *App) WithContext(ctx context.Context) *App {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("brief - ingesting"),
		a.start,
	)
}

// start launches the worker and waits for its first event.
func (a *App) start() tea.Msg {
	a.launch()
	return a.next()
}

// launch starts the worker goroutine once.
func (a *App) launch() {
	a.once.Do(func() {
		go a.run(a.ctx)
	})
}

// next blocks until the worker emits another event.
func (a *App) next() tea.Msg {
	msg, ok := <-a.events
	if !ok {
		return messages.AllDone{}
	}
	return msg
}

// emit delivers msg to the model unless the program has already exited.
func (a *App) emit(msg tea.Msg) {
	select {
	case a.events <- msg:
	case <-a.stopped:
	}
}

// run ingests every request in order, recording each result.
func (a *App) run(ctx context.Context) {
	defer close(a.finished)
	defer close(a.events)

	for i, req := range a.reqs {
		var (
			summary *domain.IngestSummary
			err     error
		)
		if err = ctx.Err(); err != nil {
			summary = &domain.IngestSummary{Outcome: domain.OutcomeCancelled}
		} else {
			summary, err = a.ports.Ingest.Ingest(ctx, req, a.opts, func(p domain.IngestProgress) {
				a.emit(messages.IngestProgress{Index: i, Progress: p})
			})
		}

		a.mu.Lock()
		if summary != nil {
			a.summaries[i] = *summary
		}
		a.errs[i] = err
		a.mu.Unlock()

		a.emit(messages.DocumentDone{Index: i, Summary: summary, Err: err})
	}
}

// wait stops event delivery and blocks until the worker has finished.
// A worker that never started is run against a cancelled context.
func (a *App) wait() {
	close(a.stopped)
	a.cancel()
	a.launch()
	<-a.finished
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.bar.Width = min(max(msg.Width-20, 10), maxBarWidth)
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		if a.done {
			if keymap.Matches(key, a.keys.Quit) || keymap.Matches(key, a.keys.Cancel) {
				return a, tea.Quit
			}
			return a, nil
		}
		if keymap.Matches(key, a.keys.Cancel) && !a.cancelling {
			a.cancelling = true
			a.cancel()
		}
		return a, nil

	case messages.IngestProgress:
		a.current = msg.Index
		a.stage = msg.Progress.Stage
		a.percent = msg.Progress.Percent
		return a, a.next

	case messages.DocumentDone:
		a.current = msg.Index + 1
		a.stage = ""
		a.percent = 0
		return a, a.next

	case messages.AllDone:
		a.done = true
		a.cancel()
		return a, tea.Quit
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render(fmt.Sprintf("Ingesting %d document(s)", len(a.reqs))))
	b.WriteString("\n\n")

	for i, req := range a.reqs {
		name := req.Metadata.Name
		switch {
		case i < a.current || a.done:
			b.WriteString(a.doneLine(i, name))
		case i == a.current:
			stage := string(a.stage)
			if stage == "" {
				stage = "starting"
			}
			b.WriteString(a.styles.Normal.Render(fmt.Sprintf("  > %s", name)))
			b.WriteString(a.styles.Muted.Render(fmt.Sprintf("  %s", stage)))
		default:
			b.WriteString(a.styles.Muted.Render(fmt.Sprintf("    %s", name)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(a.bar.ViewAs(a.overall()))
	b.WriteString("\n\n")

	switch {
	case a.done:
		b.WriteString(a.styles.Help.Render("  done"))
	case a.cancelling:
		b.WriteString(a.styles.Warning.Render("  cancelling..."))
	default:
		help := a.keys.ShortHelp()[0].Help()
		b.WriteString(a.styles.Help.Render(fmt.Sprintf("  %s: %s", help.Key, help.Desc)))
	}
	b.WriteString("\n")

	return b.String()
}

// doneLine renders the result of a finished document.
func (a *App) doneLine(i int, name string) string {
	a.mu.Lock()
	summary, ingestErr := a.summaries[i], a.errs[i]
	a.mu.Unlock()

	if ingestErr != nil && summary.Outcome == "" {
		summary.Outcome = domain.OutcomeFailed
	}

	partial := summary.Stats.EmbeddingCount < summary.Stats.FragmentCount
	style := a.styles.Outcome(summary.Outcome, partial)

	detail := string(summary.Outcome)
	if summary.Outcome == domain.OutcomeCompleted {
		detail = fmt.Sprintf("%d/%d fragments embedded", summary.Stats.EmbeddingCount, summary.Stats.FragmentCount)
	} else if ingestErr != nil {
		detail = fmt.Sprintf("%s: %v", summary.Outcome, ingestErr)
	}

	mark := "!"
	if summary.Outcome == domain.OutcomeCompleted {
		mark = "✓"
	}
	return style.Render(fmt.Sprintf("  %s %s  %s", mark, name, detail))
}

// overall returns queue-wide completion in [0, 1].
func (a *App) overall() float64 {
	if a.done {
		return 1
	}
	total := float64(len(a.reqs))
	finished := float64(min(a.current, len(a.reqs)))
	return min((finished+float64(a.percent)/100)/total, 1)
}

// Summaries returns one summary per queued document, in queue order.
func (a *App) Summaries() []domain.IngestSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.IngestSummary(nil), a.summaries...)
}

// Err joins the errors of every failed document, or returns nil.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for i, err := range a.errs {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.reqs[i].Metadata.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run ingests reqs with the progress view attached to the terminal.
func Run(ctx context.Context, ports *Ports, reqs []domain.IngestRequest, opts domain.IngestOptions) ([]domain.IngestSummary, error) {
	app, err := NewApp(ports, reqs, opts)
	if err != nil {
		return nil, err
	}
	app.WithContext(ctx)

	p := tea.NewProgram(app, tea.WithContext(ctx))
	_, runErr := p.Run()
	app.wait()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return app.Summaries(), fmt.Errorf("TUI error: %w", runErr)
	}
	return app.Summaries(), app.Err()
}
