package report

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xaionaro-go/audioalign/pkg/audio/loader"
)

type FileDuration struct {
	Path string
	Info *loader.Info
	Err  error
}

// Durations renders the length of every file and their sum. Files that
// could not be probed, or whose length is unknown, are not summed.
func Durations(files []FileDuration, style table.Style) string {
	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{"File", "Rate", "Channels", "Frames", "Duration"})

	var total time.Duration
	for _, f := range files {
		switch {
		case f.Err != nil:
			tw.AppendRow(table.Row{f.Path, "", "", "", f.Err.Error()})
		case f.Info.Frames < 0:
			tw.AppendRow(table.Row{f.Path, f.Info.SampleRate, f.Info.Channels, "?", "?"})
		default:
			d := f.Info.Duration()
			total += d
			tw.AppendRow(table.Row{f.Path, f.Info.SampleRate, f.Info.Channels, f.Info.Frames, FormatDuration(d)})
		}
	}
	tw.AppendFooter(table.Row{"total", "", "", "", FormatDuration(total)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// FormatDuration prints d as minutes and seconds, e.g. "61:02.500".
func FormatDuration(d time.Duration) string {
	minutes := int64(d / time.Minute)
	rest := d - time.Duration(minutes)*time.Minute
	return fmt.Sprintf("%d:%06.3f", minutes, rest.Seconds())
}
