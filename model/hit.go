package model

type HitGrade uint8

// Grades are ordered best to worst so the worst of a set is its maximum.
const (
	Perfect HitGrade = iota
	Good
	OK
	Miss
)

func (g HitGrade) String() string {
	switch g {
	case Perfect:
		return "PERFECT"
	case Good:
		return "GOOD"
	case OK:
		return "OK"
	default:
		return "MISS"
	}
}

func (g HitGrade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// HitResult is produced once per evaluation. Expected is nil for a press that
// matched nothing; PlayedPitch is -1 when the note timed out unplayed.
type HitResult struct {
	Grade       HitGrade   `json:"grade"`
	OffsetMs    float64    `json:"offset_ms"`
	Expected    *NoteEvent `json:"expected,omitempty"`
	PlayedPitch int        `json:"played_pitch"`
	Group       int        `json:"group"`
}

// PitchMatched is false when the offset carries no timing meaning.
func (r HitResult) PitchMatched() bool {
	return r.Expected != nil && r.PlayedPitch == int(r.Expected.Pitch)
}

type SessionStats struct {
	SongTitle  string `json:"song_title"`
	TotalNotes int    `json:"total_notes"`
	Perfect    int    `json:"perfect"`
	Good       int    `json:"good"`
	OK         int    `json:"ok"`
	Missed     int    `json:"missed"`
	Extra      int    `json:"extra"`
	Streak     int    `json:"streak"`
	MaxStreak  int    `json:"max_streak"`
}

// Record folds one result into the counters. A penalized extra press counts
// as a missed note.
func (s *SessionStats) Record(r HitResult) {
	s.TotalNotes++
	switch r.Grade {
	case Perfect:
		s.Perfect++
	case Good:
		s.Good++
	case OK:
		s.OK++
	default:
		s.Missed++
		if r.Expected == nil {
			s.Extra++
		}
		s.Streak = 0
		return
	}
	s.Streak++
	if s.Streak > s.MaxStreak {
		s.MaxStreak = s.Streak
	}
}

func (s SessionStats) Hits() int {
	return s.Perfect + s.Good + s.OK
}

// Accuracy is the percentage of graded notes that were hit.
func (s SessionStats) Accuracy() float64 {
	if s.TotalNotes == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(s.TotalNotes) * 100
}
