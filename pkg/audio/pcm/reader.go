// Package pcm turns interleaved PCM data into mono float64 samples.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/audioalign/pkg/audio"
)

type Format struct {
	Channels  audio.Channel
	PCMFormat audio.PCMFormat
}

func (f Format) FrameSize() uint {
	return uint(f.Channels) * f.PCMFormat.Size()
}

// Reader reads interleaved PCM frames from an io.Reader and returns them
// downmixed to mono by averaging the channels.
type Reader struct {
	inReader   io.Reader
	format     Format
	sampleSize uint
	frameSize  uint
	locker     sync.Mutex
	buffer     []byte
	pending    int
}

func NewReader(
	format Format,
	inReader io.Reader,
) (*Reader, error) {
	if format.Channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive")
	}
	if format.PCMFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format %v", format.PCMFormat)
	}
	return &Reader{
		inReader:   inReader,
		format:     format,
		sampleSize: format.PCMFormat.Size(),
		frameSize:  format.FrameSize(),
	}, nil
}

// ReadSamples fills dst with up to len(dst) mono samples. It returns
// io.EOF once the underlying reader is drained; a trailing incomplete
// frame yields io.ErrUnexpectedEOF.
func (r *Reader) ReadSamples(dst []float64) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	if len(dst) == 0 {
		return 0, nil
	}

	bufSize := len(dst) * int(r.frameSize)
	if cap(r.buffer) < bufSize {
		buf := make([]byte, bufSize)
		copy(buf, r.buffer[:r.pending])
		r.buffer = buf
	}
	r.buffer = r.buffer[:bufSize]

	n, err := io.ReadAtLeast(r.inReader, r.buffer[r.pending:], int(r.frameSize)-r.pending)
	available := r.pending + n
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if available == 0 {
			return 0, io.EOF
		}
		r.pending = available
		return 0, fmt.Errorf("%d trailing bytes do not form a complete frame of %d bytes: %w", available, r.frameSize, io.ErrUnexpectedEOF)
	default:
		return 0, fmt.Errorf("unable to read PCM data: %w", err)
	}

	frames := available / int(r.frameSize)
	for frameIdx := 0; frameIdx < frames; frameIdx++ {
		idx := frameIdx * int(r.frameSize)
		var sum float64
		for channelIdx := 0; channelIdx < int(r.format.Channels); channelIdx++ {
			sum += Sample(r.format.PCMFormat, r.buffer[idx+channelIdx*int(r.sampleSize):])
		}
		dst[frameIdx] = sum / float64(r.format.Channels)
	}

	consumed := frames * int(r.frameSize)
	r.pending = copy(r.buffer, r.buffer[consumed:available])
	return frames, nil
}
