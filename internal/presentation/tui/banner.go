package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the sagalens banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Teal to blue, one shade per line.
	lines := []struct {
		text  string
		color string
	}{
		{`  ___  __ _  __ _  __ _| | ___ _ __  ___ `, "#2dd4bf"},
		{` / __|/ _' |/ _' |/ _' | |/ _ \ '_ \/ __|`, "#22d3ee"},
		{` \__ \ (_| | (_| | (_| | |  __/ | | \__ \`, "#38bdf8"},
		{` |___/\__,_|\__, |\__,_|_|\___|_| |_|___/`, "#60a5fa"},
		{`            |___/                        `, "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  saga effect monitor "+version).Faint())
	fmt.Fprintln(w)
}
