// Package midi turns standard MIDI files into timelines and connects the
// trainer to live MIDI ports.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	ErrNoNotes               = errors.New("midi file has no notes")
	ErrNoInputPort           = errors.New("no midi input port")
	ErrNoOutputPort          = errors.New("no midi output port")
	ErrUnsupportedTimeFormat = errors.New("only metric time formats are supported")
)

func ReadMidiFile(path string) (s *smf.SMF, e error) {
	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			s, e = nil, errors.New(r)
		}
	}()

	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, fmt.Errorf("error parsing midi file %s: %w", path, err)
	}
	return res, nil
}

// Title derives a song title from a file name.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
