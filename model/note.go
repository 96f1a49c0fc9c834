package model

import "time"

type Notes = []uint8

type Hand uint8

const (
	// HandBoth also marks notes with no hand assigned.
	HandBoth Hand = iota
	HandLeft
	HandRight
)

func (h Hand) String() string {
	switch h {
	case HandLeft:
		return "left"
	case HandRight:
		return "right"
	default:
		return "both"
	}
}

// ParseHand accepts "left", "right", "both" (and l/r/b).
func ParseHand(s string) (Hand, bool) {
	switch s {
	case "left", "l", "LEFT":
		return HandLeft, true
	case "right", "r", "RIGHT":
		return HandRight, true
	case "both", "b", "BOTH", "":
		return HandBoth, true
	}
	return HandBoth, false
}

// Matches reports whether a note tagged h is the player's job under the
// given hand filter.
func (h Hand) Matches(filter Hand) bool {
	return filter == HandBoth || h == filter
}

// NoteEvent is a scheduled note. Times are seconds from the timeline origin.
type NoteEvent struct {
	Pitch     uint8   `json:"pitch"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	Velocity  uint8   `json:"velocity"`
	Hand      Hand    `json:"hand"`
	Track     int     `json:"track"`
}

func (n NoteEvent) EndTime() float64 {
	return n.StartTime + n.Duration
}

// Shifted returns a copy of n moved by offset seconds.
func (n NoteEvent) Shifted(offset float64) NoteEvent {
	n.StartTime += offset
	if n.StartTime < 0 {
		n.StartTime = 0
	}
	return n
}

// InputEvent is a discrete press or release coming from an input device.
type InputEvent struct {
	Pitch    uint8
	Velocity uint8
	Press    bool
	At       time.Time
}
