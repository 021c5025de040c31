package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xaionaro-go/audioalign/pkg/aligner"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
)

// Sessions renders a table per session: the best offset of every track
// and the agreed offset.
func Sessions(
	results []*aligner.SessionResult,
	policy consensus.TieBreakPolicy,
	rate audio.SampleRate,
	style table.Style,
) string {
	var out []string
	for _, result := range results {
		out = append(out, session(result, policy, rate, style))
	}
	return strings.Join(out, "\n")
}

func session(
	result *aligner.SessionResult,
	policy consensus.TieBreakPolicy,
	rate audio.SampleRate,
	style table.Style,
) string {
	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.SetTitle(result.Dir)
	tw.AppendHeader(table.Row{"Track", "Offset (samples)", "Offset (s)", "Coefficient", "Cached", "GCC-PHAT"})
	for _, track := range result.Tracks {
		row := table.Row{track.Name, "", "", "", track.Cached, ""}
		if best, err := consensus.Best(track.Curve, policy); err == nil {
			row[1] = best.Offset
			row[2] = seconds(best.Offset, rate)
			row[3] = fmt.Sprintf("%.6f", best.Coefficient)
		} else {
			row[3] = "n/a"
		}
		if track.CrossCheck != nil {
			row[5] = fmt.Sprintf("%.0f (%.2f)", track.CrossCheck.Shift, track.CrossCheck.Confidence)
		}
		tw.AppendRow(row)
	}
	if result.Consensus != nil {
		footer := table.Row{"agreed", result.Consensus.Offset, seconds(result.Consensus.Offset, rate), "", "", ""}
		if result.Annotation != nil {
			footer[3] = fmt.Sprintf("shifted %d timestamps", result.Annotation.Timestamps)
		}
		tw.AppendFooter(footer)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func seconds(samples int, rate audio.SampleRate) string {
	if rate == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", float64(samples)/float64(rate))
}
