package chord

import (
	"fmt"
	"math"
	"sort"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/util"
)

// OnNotes is the set of currently held pitches.
type OnNotes = map[uint8]bool

// CreateChordKey renders pitches as "60-64-67". The input is not modified.
func CreateChordKey(notes []uint8) string {
	sorted := append([]uint8(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	var res string
	for i, note := range sorted {
		res += fmt.Sprintf("%v", note)
		if i < len(sorted)-1 {
			res += "-"
		}
	}
	return res
}

// HeldKey is the chord key of everything currently held.
func HeldKey(held OnNotes) string {
	return CreateChordKey(Held(held))
}

// Held lists the held pitches in ascending order.
func Held(held OnNotes) model.Notes {
	var res model.Notes
	for _, p := range util.SortedKeys(held) {
		if held[p] {
			res = append(res, p)
		}
	}
	return res
}

// GroupEnd returns the index just past the onset group starting at index.
// The group is every following note whose start is within tolerance seconds
// of the note at index. Notes with identical start times are always grouped.
func GroupEnd(notes []model.NoteEvent, index int, tolerance float64) int {
	if index < 0 || index >= len(notes) {
		return index
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	first := notes[index].StartTime
	i := index + 1
	for i < len(notes) && notes[i].StartTime-first <= tolerance {
		i++
	}
	return i
}

// Group returns the onset group starting at index (nil past the end).
func Group(notes []model.NoteEvent, index int, tolerance float64) []model.NoteEvent {
	end := GroupEnd(notes, index, tolerance)
	if index < 0 || index >= end {
		return nil
	}
	return notes[index:end]
}

func Pitches(group []model.NoteEvent) model.Notes {
	res := make(model.Notes, 0, len(group))
	for _, n := range group {
		res = append(res, n.Pitch)
	}
	return res
}

// Satisfied reports whether every required pitch is held. An empty
// requirement is always satisfied.
func Satisfied(required []uint8, held OnNotes) bool {
	for _, p := range required {
		if !held[p] {
			return false
		}
	}
	return true
}
