package aligner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xaionaro-go/audioalign/pkg/config"
)

// MonoSuffix marks a downmixed copy of another track.
const MonoSuffix = "-Mono"

// TrackFile is a recording to be aligned against the reference.
type TrackFile struct {
	Name string
	Path string
}

// AssignTracks returns the explicitly listed tracks of the session, or
// the discovered ones if none are listed.
func AssignTracks(session config.Session) ([]TrackFile, error) {
	if len(session.Tracks) > 0 {
		tracks := make([]TrackFile, 0, len(session.Tracks))
		for _, t := range session.Tracks {
			tracks = append(tracks, TrackFile{Name: t.Name, Path: t.File})
		}
		return tracks, nil
	}
	tracks, err := DiscoverTracks(session.Dir, session.TrackPrefix, session.Reference)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no '%s_<track>.wav' files in '%s'", session.TrackPrefix, session.Dir)
	}
	return tracks, nil
}

// DiscoverTracks lists "<prefix>_<track>.wav" files of dir, sorted by
// the track name. A "<track>-Mono" file is skipped when "<track>" is
// present too. The reference itself is never a track.
func DiscoverTracks(dir, prefix, reference string) ([]TrackFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list '%s': %w", dir, err)
	}

	byName := map[string]TrackFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		ext := filepath.Ext(fileName)
		if !strings.EqualFold(ext, ".wav") {
			continue
		}
		stem := strings.TrimSuffix(fileName, ext)
		name, ok := strings.CutPrefix(stem, prefix+"_")
		if !ok || name == "" {
			continue
		}
		path := filepath.Join(dir, fileName)
		if reference != "" && path == reference {
			continue
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("track %s is present in '%s' more than once", name, dir)
		}
		byName[name] = TrackFile{Name: name, Path: path}
	}

	tracks := make([]TrackFile, 0, len(byName))
	for name, track := range byName {
		if source, ok := strings.CutSuffix(name, MonoSuffix); ok {
			if _, hasSource := byName[source]; hasSource {
				continue
			}
		}
		tracks = append(tracks, track)
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].Name < tracks[j].Name
	})
	return tracks, nil
}
