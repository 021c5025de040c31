// Package report renders human-facing tables of the results.
package report

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Style picks rounded box drawing for terminals and plain ASCII for
// anything else (files, pipes).
func Style(w io.Writer) table.Style {
	if IsTerminal(w) {
		return table.StyleRounded
	}
	return table.StyleDefault
}
