// Package annotation shifts the timestamps of a time-aligned annotation
// document. A timestamp is a quoted integer amount of milliseconds right
// after a fixed marker, e.g. TIME_VALUE="1234"; all the other bytes of
// the document are kept as is.
package annotation

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/xaionaro-go/audioalign/pkg/audio"
)

const (
	DefaultMarker = "TIME_VALUE="
)

// Timestamp is a located timestamp: Content[Start:End] are its digits.
type Timestamp struct {
	Start int
	End   int
	Line  int
	Value int64
}

type Document struct {
	Content    []byte
	Marker     string
	Timestamps []Timestamp
}

// MalformedTimestampError means that the marker is not followed by a
// quoted integer.
type MalformedTimestampError struct {
	Line   int
	Marker string
	Reason string
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("line %d: malformed value after '%s': %s", e.Line, e.Marker, e.Reason)
}

// Parse locates every timestamp of content.
func Parse(content []byte, marker string) (*Document, error) {
	if marker == "" {
		return nil, fmt.Errorf("the marker must not be empty")
	}
	doc := &Document{
		Content: content,
		Marker:  marker,
	}
	markerBytes := []byte(marker)
	pos := 0
	for {
		idx := bytes.Index(content[pos:], markerBytes)
		if idx < 0 {
			break
		}
		valueStart := pos + idx + len(markerBytes)
		line := 1 + bytes.Count(content[:valueStart], []byte{'\n'})
		ts, err := parseQuotedInt(content, valueStart)
		if err != nil {
			return nil, &MalformedTimestampError{Line: line, Marker: marker, Reason: err.Error()}
		}
		ts.Line = line
		doc.Timestamps = append(doc.Timestamps, ts)
		pos = ts.End + 1
	}
	return doc, nil
}

func parseQuotedInt(content []byte, at int) (Timestamp, error) {
	if at >= len(content) || content[at] != '"' {
		return Timestamp{}, fmt.Errorf("expected an opening quote")
	}
	start := at + 1
	end := start
	for end < len(content) && content[end] != '"' && content[end] != '\n' {
		end++
	}
	if end >= len(content) || content[end] != '"' {
		return Timestamp{}, fmt.Errorf("expected a closing quote")
	}
	value, err := strconv.ParseInt(string(content[start:end]), 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("'%s' is not an integer", content[start:end])
	}
	return Timestamp{
		Start: start,
		End:   end,
		Value: value,
	}, nil
}

// ReadFile reads and parses the document at path.
func ReadFile(path string, marker string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	doc, err := Parse(content, marker)
	if err != nil {
		return nil, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return doc, nil
}

// OffsetMilliseconds converts an offset in samples into milliseconds.
func OffsetMilliseconds(offsetSamples int, sampleRate audio.SampleRate) int64 {
	return int64(math.RoundToEven(float64(offsetSamples) * 1000 / float64(sampleRate)))
}

// Shift returns a new document with every timestamp t replaced by
// max(0, t+offsetMS), and the amount of timestamps that were clamped to
// zero. Clamped timestamps do not come back when shifting back.
func (d *Document) Shift(offsetMS int64) (*Document, int) {
	result := &Document{
		Marker:     d.Marker,
		Content:    make([]byte, 0, len(d.Content)+len(d.Timestamps)*4),
		Timestamps: make([]Timestamp, 0, len(d.Timestamps)),
	}
	clamped := 0
	prev := 0
	for _, ts := range d.Timestamps {
		value := ts.Value + offsetMS
		if value < 0 {
			value = 0
			clamped++
		}
		result.Content = append(result.Content, d.Content[prev:ts.Start]...)
		start := len(result.Content)
		if value == ts.Value {
			result.Content = append(result.Content, d.Content[ts.Start:ts.End]...)
		} else {
			result.Content = strconv.AppendInt(result.Content, value, 10)
		}
		result.Timestamps = append(result.Timestamps, Timestamp{
			Start: start,
			End:   len(result.Content),
			Line:  ts.Line,
			Value: value,
		})
		prev = ts.End
	}
	result.Content = append(result.Content, d.Content[prev:]...)
	return result, clamped
}

// ShiftSamples is Shift with the offset given in samples.
func (d *Document) ShiftSamples(offsetSamples int, sampleRate audio.SampleRate) (*Document, int) {
	return d.Shift(OffsetMilliseconds(offsetSamples, sampleRate))
}
