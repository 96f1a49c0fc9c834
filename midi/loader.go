package midi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/util"
	"gitlab.com/gomidi/midi/v2/smf"
)

// HandSplit decides which hand a note from a file belongs to.
type HandSplit uint8

const (
	SplitNone HandSplit = iota
	// the second note-bearing track is the left hand (and the fourth, ...)
	SplitTrack
	// notes below middle C are the left hand
	SplitPitch
	// odd channels are the left hand
	SplitChannel
)

var splitNames = []string{"none", "track", "pitch", "channel"}

func (h HandSplit) String() string {
	if int(h) < len(splitNames) {
		return splitNames[h]
	}
	return fmt.Sprintf("split(%d)", h)
}

func ParseHandSplit(s string) (HandSplit, error) {
	for i, name := range splitNames {
		if strings.EqualFold(s, name) {
			return HandSplit(i), nil
		}
	}
	return SplitNone, fmt.Errorf("unknown hand split %q (want one of %s)", s, strings.Join(splitNames, ", "))
}

func (h HandSplit) hand(track int, channel, pitch uint8) model.Hand {
	switch h {
	case SplitTrack:
		return leftIf(track%2 == 1)
	case SplitPitch:
		return leftIf(pitch < constants.MiddleC)
	case SplitChannel:
		return leftIf(channel%2 == 1)
	}
	return model.HandBoth
}

func leftIf(left bool) model.Hand {
	if left {
		return model.HandLeft
	}
	return model.HandRight
}

type meter struct {
	tick     int64
	bar      int
	num      uint8
	denom    uint8
	barTicks int64
}

type tempoEvent struct {
	tick int64
	bpm  float64
}

type openNote struct {
	tick     int64
	channel  uint8
	key      uint8
	velocity uint8
}

// LoadFile reads a standard MIDI file into a timeline titled after the file.
func LoadFile(path string, split HandSplit) (*model.Timeline, error) {
	s, err := ReadMidiFile(path)
	if err != nil {
		return nil, err
	}
	return LoadTimeline(s, Title(path), split)
}

// LoadTimeline converts a parsed SMF into a timeline. Overlapping note-ons
// of the same key on the same channel close the earlier note. Notes still
// open at the end of their track end there.
func LoadTimeline(s *smf.SMF, title string, split HandSplit) (*model.Timeline, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTimeFormat
	}
	seconds := func(tick int64) float64 {
		return float64(s.TimeAt(tick)) / 1e6
	}

	var notes []model.NoteEvent
	var tempos []tempoEvent
	var sigs []meter
	noteTrack := 0
	for trackIndex, track := range s.Tracks {
		var absTicks int64
		open := map[uint16]openNote{}
		count := 0
		closeNote := func(k uint16, end int64) {
			n, ok := open[k]
			if !ok {
				return
			}
			delete(open, k)
			start := seconds(n.tick)
			notes = append(notes, model.NoteEvent{
				Pitch:     n.key,
				StartTime: start,
				Duration:  util.Max(seconds(end)-start, constants.MinNoteDuration),
				Velocity:  n.velocity,
				Hand:      split.hand(noteTrack, n.channel, n.key),
				Track:     trackIndex,
			})
			count++
		}

		for _, ev := range track {
			absTicks += int64(ev.Delta)
			var channel, key, velocity uint8
			var bpm float64
			var num, denom, cpt, dsqpq uint8
			switch {
			case ev.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				k := uint16(channel)<<8 | uint16(key)
				closeNote(k, absTicks)
				open[k] = openNote{tick: absTicks, channel: channel, key: key, velocity: velocity}
			case ev.Message.GetNoteOff(&channel, &key, &velocity),
				ev.Message.GetNoteOn(&channel, &key, &velocity):
				closeNote(uint16(channel)<<8|uint16(key), absTicks)
			case ev.Message.GetMetaTempo(&bpm):
				tempos = append(tempos, tempoEvent{tick: absTicks, bpm: bpm})
			case ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq):
				sigs = append(sigs, meter{tick: absTicks, num: num, denom: denom})
			}
		}
		for _, k := range util.SortedKeys(open) {
			closeNote(k, absTicks)
		}
		if count > 0 {
			noteTrack++
		}
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("%s: %w", title, ErrNoNotes)
	}

	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })
	meters := buildMeters(sigs, int64(ticks))

	var tempoChanges []model.TempoChange
	for _, te := range tempos {
		if te.bpm <= 0 {
			continue
		}
		tc := model.TempoChange{
			Bar:            barAt(meters, te.tick),
			Time:           seconds(te.tick),
			SecondsPerBeat: 60 / te.bpm,
		}
		// the last change within a bar wins
		if n := len(tempoChanges); n > 0 && tempoChanges[n-1].Bar == tc.Bar {
			tempoChanges[n-1] = tc
			continue
		}
		tempoChanges = append(tempoChanges, tc)
	}

	var signatures []model.TimeSignature
	for _, m := range meters[1:] {
		signatures = append(signatures, model.TimeSignature{
			Bar:            m.bar,
			Time:           seconds(m.tick),
			Numerator:      int(m.num),
			Denominator:    int(m.denom),
			BeatsPerBar:    float64(m.num) * 4 / float64(m.denom),
			SecondsPerBeat: 60 / bpmAt(tempos, m.tick),
		})
	}

	t := model.NewTimeline(title, notes, tempoChanges, signatures)
	t.TicksPerBeat = int(ticks)
	return t, nil
}

// buildMeters returns the implicit 4/4 meter at tick 0 followed by one entry
// per time signature, each knowing the bar it starts. A signature that does
// not fall on a bar line starts a new bar.
func buildMeters(sigs []meter, ticksPerQuarter int64) []meter {
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].tick < sigs[j].tick })
	meters := []meter{{bar: 1, num: 4, denom: 4, barTicks: 4 * ticksPerQuarter}}
	for _, sig := range sigs {
		if sig.num == 0 || sig.denom == 0 {
			continue
		}
		sig.barTicks = ticksPerQuarter * 4 * int64(sig.num) / int64(sig.denom)
		if sig.barTicks <= 0 {
			continue
		}
		last := meters[len(meters)-1]
		if sig.tick == last.tick {
			sig.bar = last.bar
			if len(meters) == 1 {
				// keep the implicit meter at index 0
				meters = append(meters, sig)
			} else {
				meters[len(meters)-1] = sig
			}
			continue
		}
		elapsed := sig.tick - last.tick
		sig.bar = last.bar + int((elapsed+last.barTicks-1)/last.barTicks)
		meters = append(meters, sig)
	}
	return meters
}

func barAt(meters []meter, tick int64) int {
	m := meters[0]
	for _, next := range meters[1:] {
		if next.tick > tick {
			break
		}
		m = next
	}
	return m.bar + int((tick-m.tick)/m.barTicks)
}

func bpmAt(tempos []tempoEvent, tick int64) float64 {
	bpm := 60 / constants.DefaultSecondsPerBeat
	for _, te := range tempos {
		if te.tick > tick {
			break
		}
		if te.bpm > 0 {
			bpm = te.bpm
		}
	}
	return bpm
}
