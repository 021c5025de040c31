package consensus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrNoUsableCorrelation is returned for a curve without a single
// defined coefficient.
var ErrNoUsableCorrelation = errors.New("no usable correlation coefficient")

// SearchRangeExhaustedError means that the best offset of a track is
// next to the edge of the tested range, so the true optimum is likely
// outside of it.
type SearchRangeExhaustedError struct {
	TrackOffset
	Tolerance int
}

func (e *SearchRangeExhaustedError) Error() string {
	return fmt.Sprintf(
		"track %s: the best offset %d is within %d samples of the edge of the searched range [%d, %d]; widen the range",
		e.Track, e.Offset, e.Tolerance, e.MinOffset, e.MaxOffset,
	)
}

// DisagreementError means that the tracks' best offsets are spread wider
// than the tolerance.
type DisagreementError struct {
	Tracks    []TrackOffset
	Spread    int
	Tolerance int
}

func (e *DisagreementError) Error() string {
	var parts []string
	for _, t := range e.Tracks {
		parts = append(parts, fmt.Sprintf("%s=%d (%.4f)", t.Track, t.Offset, t.Coefficient))
	}
	return fmt.Sprintf(
		"the tracks disagree by %d samples, which is more than the tolerance of %d samples: %s",
		e.Spread, e.Tolerance, strings.Join(parts, ", "),
	)
}

// Render formats the per-track offsets for manual inspection.
func (e *DisagreementError) Render(style table.Style, sampleRate float64) string {
	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{"Track", "Offset (samples)", "Offset (s)", "Coefficient"})
	for _, t := range e.Tracks {
		seconds := ""
		if sampleRate > 0 {
			seconds = fmt.Sprintf("%.3f", float64(t.Offset)/sampleRate)
		}
		tw.AppendRow(table.Row{t.Track, t.Offset, seconds, fmt.Sprintf("%.6f", t.Coefficient)})
	}
	tw.AppendFooter(table.Row{"spread", e.Spread, "", fmt.Sprintf("tolerance %d", e.Tolerance)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
