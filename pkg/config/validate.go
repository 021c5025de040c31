package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/pcm"
	"github.com/xaionaro-go/audioalign/pkg/audio/types"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
	"github.com/xaionaro-go/audioalign/pkg/envelope"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if _, err := c.RawPCMFormat(); err != nil {
		return err
	}
	if c.Input.RawHeaderBytes < 0 {
		return errors.New("input.raw_header_bytes must not be negative")
	}
	if strings.TrimSpace(c.Annotation.Marker) == "" {
		return errors.New("annotation.marker must not be empty")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSessions() error {
	if len(c.Sessions) == 0 {
		return errors.New("at least one [[sessions]] entry is required")
	}
	for i := range c.Sessions {
		if err := c.Sessions[i].Validate(); err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single session.
func (s *Session) Validate() error {
	if s.Dir == "" {
		return errors.New("dir must be set")
	}
	if s.Reference == "" {
		return errors.New("reference must be set")
	}
	if len(s.Tracks) == 0 && strings.TrimSpace(s.TrackPrefix) == "" {
		return errors.New("either tracks or track_prefix must be set")
	}
	seen := map[string]struct{}{}
	for idx, track := range s.Tracks {
		if track.Name == "" {
			return fmt.Errorf("tracks[%d].name must be set", idx)
		}
		if track.File == "" {
			return fmt.Errorf("tracks[%d].file must be set", idx)
		}
		if _, ok := seen[track.Name]; ok {
			return fmt.Errorf("track '%s' is listed twice", track.Name)
		}
		seen[track.Name] = struct{}{}
	}
	if (s.AnnotationSource == "") != (s.AnnotationDestination == "") {
		return errors.New("annotation_source and annotation_destination must be set together")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.SampleRate == 0 {
		return errors.New("analysis.sample_rate must be positive")
	}
	if a.RMSWindowSeconds <= 0 {
		return errors.New("analysis.rms_window_seconds must be positive")
	}
	if _, err := c.Grid(); err != nil {
		return fmt.Errorf("analysis offsets: %w", err)
	}
	if a.ToleranceFraction <= 0 || a.ToleranceFraction > 1 {
		return errors.New("analysis.tolerance_fraction must be in (0, 1]")
	}
	if _, err := c.TieBreakPolicy(); err != nil {
		return err
	}
	switch a.Method {
	case MethodBruteforce, MethodFFT:
	default:
		return fmt.Errorf("analysis.method must be '%s' or '%s', got '%s'", MethodBruteforce, MethodFFT, a.Method)
	}
	if a.Workers < 1 {
		return errors.New("analysis.workers must be at least 1")
	}
	return nil
}

// Rate returns the expected sample rate of every recording.
func (c *Config) Rate() audio.SampleRate {
	return audio.SampleRate(c.Analysis.SampleRate)
}

// Grid returns the offsets to test, in samples.
func (c *Config) Grid() (syncer.Grid, error) {
	return syncer.GridFromSeconds(
		c.Analysis.OffsetStartSeconds,
		c.Analysis.OffsetEndSeconds,
		c.Analysis.OffsetStepSeconds,
		c.Rate(),
	)
}

// WindowSamples returns the RMS window length in samples.
func (c *Config) WindowSamples() int {
	return envelope.WindowSamples(c.Analysis.RMSWindowSeconds, c.Rate())
}

// TieBreakPolicy returns the parsed analysis.tie_break.
func (c *Config) TieBreakPolicy() (consensus.TieBreakPolicy, error) {
	p, err := consensus.ParseTieBreakPolicy(c.Analysis.TieBreak)
	if err != nil {
		return p, fmt.Errorf("analysis.tie_break: %w", err)
	}
	return p, nil
}

// RawPCMFormat returns the layout of headerless recordings.
func (c *Config) RawPCMFormat() (pcm.Format, error) {
	format, err := types.ParsePCMFormat(c.Input.RawFormat)
	if err != nil {
		return pcm.Format{}, fmt.Errorf("input.raw_format: %w", err)
	}
	if c.Input.RawChannels == 0 {
		return pcm.Format{}, errors.New("input.raw_channels must be positive")
	}
	return pcm.Format{
		Channels:  audio.Channel(c.Input.RawChannels),
		PCMFormat: format,
	}, nil
}

// LogLevel returns the parsed logging.level.
func (c *Config) LogLevel() (logger.Level, error) {
	var level logger.Level
	if err := level.Set(c.Logging.Level); err != nil {
		return level, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
