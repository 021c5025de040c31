package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/pcm"
)

// DecoderRaw reads headerless interleaved PCM. Everything about the
// layout has to be known in advance.
type DecoderRaw struct {
	Format      pcm.Format
	SampleRate  audio.SampleRate
	HeaderBytes int64
}

var _ Decoder = (*DecoderRaw)(nil)

func init() {
	RegisterDecoder(10, &DecoderRaw{
		Format: pcm.Format{
			Channels:  1,
			PCMFormat: audio.PCMFormatS16LE,
		},
		SampleRate: audio.DefaultSampleRate,
	})
}

func (*DecoderRaw) Extensions() []string {
	return []string{".pcm", ".raw"}
}

func (d *DecoderRaw) Probe(r io.ReadSeeker) (*Info, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("unable to determine the size: %w", err)
	}
	frameSize := int64(d.Format.FrameSize())
	if frameSize == 0 {
		return nil, audio.NewFormatError("", "unsupported raw layout %v x %d", d.Format.PCMFormat, d.Format.Channels)
	}
	size -= d.HeaderBytes
	if size < 0 {
		size = 0
	}
	return &Info{
		SampleRate: d.SampleRate,
		Channels:   d.Format.Channels,
		BitDepth:   int(d.Format.PCMFormat.Size() * 8),
		Frames:     size / frameSize,
	}, nil
}

func (d *DecoderRaw) NewSource(r io.ReadSeeker) (Source, error) {
	if _, err := r.Seek(d.HeaderBytes, io.SeekStart); err != nil {
		return nil, fmt.Errorf("unable to skip %d header bytes: %w", d.HeaderBytes, err)
	}
	reader, err := pcm.NewReader(d.Format, r)
	if err != nil {
		return nil, audio.NewFormatError("", "%v", err)
	}
	return &rawSource{
		Reader:     reader,
		sampleRate: d.SampleRate,
	}, nil
}

type rawSource struct {
	*pcm.Reader
	sampleRate audio.SampleRate
}

func (s *rawSource) SampleRate() audio.SampleRate {
	return s.sampleRate
}

func (s *rawSource) ReadSamples(dst []float64) (int, error) {
	n, err := s.Reader.ReadSamples(dst)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return n, audio.NewFormatError("", "non-integral sample count: %v", err)
	}
	return n, err
}
