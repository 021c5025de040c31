// Package config describes what to align and how.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Track assigns an explicit track name to a recording.
type Track struct {
	Name string `toml:"name"`
	File string `toml:"file"`
}

// Session is a directory with one reference recording and the tracks to
// align against it.
type Session struct {
	Dir       string `toml:"dir"`
	Reference string `toml:"reference"`

	// TrackPrefix selects "<prefix>_<track>.wav" files of Dir when no
	// Tracks are listed.
	TrackPrefix string  `toml:"track_prefix"`
	Tracks      []Track `toml:"tracks"`

	// AnnotationSource is shifted into AnnotationDestination; both empty
	// means only the offset is reported.
	AnnotationSource      string `toml:"annotation_source"`
	AnnotationDestination string `toml:"annotation_destination"`
}

// Analysis contains the parameters of the offset search.
type Analysis struct {
	SampleRate         uint32  `toml:"sample_rate"`
	RMSWindowSeconds   float64 `toml:"rms_window_seconds"`
	OffsetStartSeconds float64 `toml:"offset_start_seconds"`
	OffsetEndSeconds   float64 `toml:"offset_end_seconds"`
	OffsetStepSeconds  float64 `toml:"offset_step_seconds"`
	ToleranceFraction  float64 `toml:"tolerance_fraction"`
	TieBreak           string  `toml:"tie_break"`
	Method             string  `toml:"method"`
	CrossCheck         bool    `toml:"cross_check"`
	Workers            int     `toml:"workers"`
}

// Input describes headerless recordings (".pcm", ".raw"); their sample
// rate is analysis.sample_rate.
type Input struct {
	RawFormat      string `toml:"raw_format"`
	RawChannels    uint32 `toml:"raw_channels"`
	RawHeaderBytes int64  `toml:"raw_header_bytes"`
}

// Annotation contains the settings of the timestamp shifting.
type Annotation struct {
	Marker    string `toml:"marker"`
	Overwrite bool   `toml:"overwrite"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the whole configuration of an alignment run.
//
// Configuration sections:
//   - Sessions: the recordings to align, one entry per directory
//   - Analysis: envelope, offset grid and consensus parameters
//   - Input: layout of headerless recordings
//   - Annotation: how timestamps are located and written
//   - Logging: log level
type Config struct {
	Sessions   []Session  `toml:"sessions"`
	Analysis   Analysis   `toml:"analysis"`
	Input      Input      `toml:"input"`
	Annotation Annotation `toml:"annotation"`
	Logging    Logging    `toml:"logging"`
}

// SampleConfig returns a commented configuration file.
func SampleConfig() string {
	return sampleConfig
}

// Load parses, normalizes and validates the configuration file at path.
func Load(path string) (*Config, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path '%s': %w", path, err)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f, filepath.Dir(resolved))
	if err != nil {
		return nil, fmt.Errorf("config '%s': %w", resolved, err)
	}
	return cfg, nil
}

// Parse reads a configuration; relative session directories are
// resolved against baseDir.
func Parse(r io.Reader, baseDir string) (*Config, error) {
	cfg := Default()
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(baseDir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
