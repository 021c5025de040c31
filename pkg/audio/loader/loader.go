package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/audio"
)

const (
	// DefaultChunkSamples is the amount of mono samples decoded at once.
	DefaultChunkSamples = 1 << 16
)

type Loader struct {
	SampleRate   audio.SampleRate
	ChunkSamples int

	// Decoders take precedence over the registered ones for the file
	// extensions they handle.
	Decoders []Decoder
}

func New(sampleRate audio.SampleRate) *Loader {
	return &Loader{
		SampleRate:   sampleRate,
		ChunkSamples: DefaultChunkSamples,
	}
}

func withPath(err error, path string) error {
	var formatErr *audio.FormatError
	if errors.As(err, &formatErr) && formatErr.Path == "" {
		formatErr.Path = path
	}
	return err
}

func (l *Loader) decoderFor(path string) Decoder {
	if decoder := decoderForExtension(l.Decoders, path); decoder != nil {
		return decoder
	}
	return DecoderForPath(path)
}

// Supports reports whether the file extension of path has a decoder.
func (l *Loader) Supports(path string) bool {
	return l.decoderFor(path) != nil
}

func (l *Loader) openDecoder(path string) (Decoder, *os.File, error) {
	decoder := l.decoderFor(path)
	if decoder == nil {
		return nil, nil, audio.NewFormatError(path, "no decoder registered for this file extension")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	return decoder, f, nil
}

// Probe reads the header of the recording at path.
func (l *Loader) Probe(
	ctx context.Context,
	path string,
) (_ret *Info, _err error) {
	logger.Tracef(ctx, "Probe(%s)", path)
	defer func() { logger.Tracef(ctx, "/Probe(%s): %v %v", path, _ret, _err) }()

	decoder, f, err := l.openDecoder(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := decoder.Probe(f)
	if err != nil {
		return nil, withPath(err, path)
	}
	return info, nil
}

// Stream decodes the recording at path chunk by chunk and passes every
// chunk to callback. The chunk is reused between calls. It returns the
// total amount of samples decoded.
func (l *Loader) Stream(
	ctx context.Context,
	path string,
	callback func(chunk []float64) error,
) (_ret int, _err error) {
	logger.Tracef(ctx, "Stream(%s)", path)
	defer func() { logger.Tracef(ctx, "/Stream(%s): %d %v", path, _ret, _err) }()

	decoder, f, err := l.openDecoder(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	source, err := decoder.NewSource(f)
	if err != nil {
		return 0, withPath(err, path)
	}
	if source.SampleRate() != l.SampleRate {
		return 0, audio.NewFormatError(path, "expected the sample rate %dHz, got %dHz", l.SampleRate, source.SampleRate())
	}

	chunkSize := l.ChunkSamples
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSamples
	}
	chunk := make([]float64, chunkSize)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := source.ReadSamples(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("unable to decode '%s' after %d samples: %w", path, total, withPath(err, path))
		}
		if err := callback(chunk[:n]); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Load decodes the whole recording at path.
func (l *Loader) Load(
	ctx context.Context,
	track string,
	path string,
) (*audio.Waveform, error) {
	w := &audio.Waveform{
		Track:      track,
		SampleRate: l.SampleRate,
	}
	if info, err := l.Probe(ctx, path); err == nil && info.Frames > 0 {
		w.Samples = make([]float64, 0, info.Frames)
	}
	_, err := l.Stream(ctx, path, func(chunk []float64) error {
		w.Samples = append(w.Samples, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "loaded %s", w)
	return w, nil
}
