package loader

import (
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/audioalign/pkg/audio"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecoderWAV reads 16-bit integer PCM WAV files with one or two channels.
type DecoderWAV struct{}

var _ Decoder = (*DecoderWAV)(nil)

func init() {
	RegisterDecoder(100, &DecoderWAV{})
}

func (DecoderWAV) Extensions() []string {
	return []string{".wav", ".wave"}
}

func (DecoderWAV) readInfo(r io.ReadSeeker) (*wav.Decoder, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, audio.NewFormatError("", "unable to parse the WAV header: %v", err)
	}
	if d.NumChans == 0 {
		return nil, audio.NewFormatError("", "no 'fmt ' chunk found")
	}
	return d, nil
}

func (w DecoderWAV) Probe(r io.ReadSeeker) (*Info, error) {
	d, err := w.readInfo(r)
	if err != nil {
		return nil, err
	}
	info := &Info{
		SampleRate: audio.SampleRate(d.SampleRate),
		Channels:   audio.Channel(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Frames:     -1,
	}
	if err := d.FwdToPCM(); err == nil && d.BitDepth >= 8 {
		info.Frames = d.PCMLen() / int64(d.BitDepth/8) / int64(d.NumChans)
	}
	return info, nil
}

func (w DecoderWAV) NewSource(r io.ReadSeeker) (Source, error) {
	d, err := w.readInfo(r)
	if err != nil {
		return nil, err
	}
	switch d.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
	default:
		return nil, audio.NewFormatError("", "WAV audio format %d is not integer PCM", d.WavAudioFormat)
	}
	if d.BitDepth != 16 {
		return nil, audio.NewFormatError("", "expected 16-bit samples, got %d-bit", d.BitDepth)
	}
	if d.NumChans > 2 {
		return nil, audio.NewFormatError("", "expected a mono or stereo recording, got %d channels", d.NumChans)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(d.NumChans),
			SampleRate:  int(d.SampleRate),
		},
		SourceBitDepth: int(d.BitDepth),
	}
	return &interleavedSource[int]{
		sampleRate: audio.SampleRate(d.SampleRate),
		channels:   int(d.NumChans),
		fullScale:  audio.MaxAmplitudeS16,
		read: func(p []int) (int, error) {
			buf.Data = p
			return d.PCMBuffer(buf)
		},
	}, nil
}
