package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// lineProgress prints one line per progress event that carries a message.
func lineProgress(w io.Writer) driving.ProgressFunc {
	return func(p domain.IngestProgress) {
		if p.Message == "" {
			return
		}
		fmt.Fprintf(w, "  %3d%%  %-17s %s\n", p.Percent, p.Stage, p.Message)
	}
}
