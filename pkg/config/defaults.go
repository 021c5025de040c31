package config

import (
	"github.com/xaionaro-go/audioalign/pkg/annotation"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
	"github.com/xaionaro-go/audioalign/pkg/envelope"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

const (
	MethodBruteforce = "bruteforce"
	MethodFFT        = "fft"

	defaultMethod   = MethodBruteforce
	defaultWorkers  = 1
	defaultLogLevel = "info"

	defaultRawChannels = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Analysis: Analysis{
			SampleRate:         uint32(audio.DefaultSampleRate),
			RMSWindowSeconds:   envelope.DefaultWindowSeconds,
			OffsetStartSeconds: syncer.DefaultOffsetStartSeconds,
			OffsetEndSeconds:   syncer.DefaultOffsetEndSeconds,
			OffsetStepSeconds:  syncer.DefaultOffsetStepSeconds,
			ToleranceFraction:  consensus.DefaultToleranceFraction,
			TieBreak:           consensus.TieBreakEarliestOffset.String(),
			Method:             defaultMethod,
			Workers:            defaultWorkers,
		},
		Input: Input{
			RawFormat:   audio.PCMFormatS16LE.String(),
			RawChannels: defaultRawChannels,
		},
		Annotation: Annotation{
			Marker: annotation.DefaultMarker,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
