package loader

import (
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/audioalign/pkg/audio"
)

// DecoderOgg reads Ogg Vorbis files with one or two channels.
type DecoderOgg struct{}

var _ Decoder = (*DecoderOgg)(nil)

func init() {
	RegisterDecoder(50, &DecoderOgg{})
}

func (DecoderOgg) Extensions() []string {
	return []string{".ogg", ".oga"}
}

func (DecoderOgg) Probe(r io.ReadSeeker) (*Info, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, audio.NewFormatError("", "unable to open the Ogg Vorbis stream: %v", err)
	}
	info := &Info{
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
		Channels:   audio.Channel(oggReader.Channels()),
		Frames:     -1,
	}
	if length := oggReader.Length(); length > 0 {
		info.Frames = length
	}
	return info, nil
}

func (DecoderOgg) NewSource(r io.ReadSeeker) (Source, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, audio.NewFormatError("", "unable to open the Ogg Vorbis stream: %v", err)
	}
	channels := oggReader.Channels()
	if channels < 1 || channels > 2 {
		return nil, audio.NewFormatError("", "expected a mono or stereo recording, got %d channels", channels)
	}
	return &interleavedSource[float32]{
		sampleRate: audio.SampleRate(oggReader.SampleRate()),
		channels:   channels,
		fullScale:  1,
		read:       oggReader.Read,
	}, nil
}
