package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/sagalens/internal/presentation/tui"
	"github.com/aretw0/sagalens/pkg/domain"
	"golang.org/x/term"
)

// Output formats.
const (
	formatAuto     = "auto"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

const defaultWidth = 100

type printFunc func(domain.Message) error

// newPrinter writes messages to w. JSON is one message per line. Markdown is
// styled with glamour when w is a terminal. Auto picks markdown on a
// terminal and JSON otherwise.
func newPrinter(w io.Writer, format string) (printFunc, error) {
	tty, width := terminal(w)

	if format == formatAuto {
		format = formatJSON
		if tty {
			format = formatMarkdown
		}
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		return func(msg domain.Message) error {
			return enc.Encode(msg)
		}, nil

	case formatMarkdown:
		render := tui.Renderer(tui.Plain)
		if tty {
			r, err := tui.NewRenderer("", width)
			if err != nil {
				return nil, fmt.Errorf("failed to create renderer: %w", err)
			}
			render = r
		}
		return func(msg domain.Message) error {
			out, err := render(tui.MessageMarkdown(msg))
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, out)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatAuto, formatJSON, formatMarkdown)
}

func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = defaultWidth
	}
	return true, width
}
