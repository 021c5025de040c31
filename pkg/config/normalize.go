package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize(baseDir string) error {
	for i := range c.Sessions {
		if err := c.Sessions[i].Normalize(baseDir); err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
	}
	c.Analysis.TieBreak = strings.ToLower(strings.TrimSpace(c.Analysis.TieBreak))
	c.Analysis.Method = strings.ToLower(strings.TrimSpace(c.Analysis.Method))
	if c.Analysis.Method == "" {
		c.Analysis.Method = defaultMethod
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = defaultWorkers
	}
	c.Input.RawFormat = strings.ToLower(strings.TrimSpace(c.Input.RawFormat))
	if c.Input.RawChannels == 0 {
		c.Input.RawChannels = defaultRawChannels
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Normalize makes every path of the session absolute. A Dir starting
// with "~/" is taken from the home directory, another relative Dir is
// resolved against baseDir (or the working directory) and the files
// against Dir.
func (s *Session) Normalize(baseDir string) error {
	dir := strings.TrimSpace(s.Dir)
	if dir == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(dir, "~"); ok && (rest == "" || os.IsPathSeparator(rest[0])) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("dir '%s': %w", dir, err)
		}
		dir = home + rest
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("dir '%s': %w", dir, err)
	}
	s.Dir = abs
	s.Reference = s.resolve(s.Reference)
	for i := range s.Tracks {
		s.Tracks[i].Name = strings.TrimSpace(s.Tracks[i].Name)
		s.Tracks[i].File = s.resolve(s.Tracks[i].File)
	}
	s.AnnotationSource = s.resolve(s.AnnotationSource)
	s.AnnotationDestination = s.resolve(s.AnnotationDestination)
	return nil
}

// resolve makes a file name of the session absolute.
func (s *Session) resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}
