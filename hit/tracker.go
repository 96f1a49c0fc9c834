package hit

import (
	"math"

	"github.com/jsphweid/keyfall/model"
)

type Options struct {
	Thresholds Thresholds
	// fold presses that never match a note into the stats as misses; in wait
	// mode the host reports wrong keys through Stray
	PenalizeExtra bool
	// seconds; notes starting this close together share a group id
	GroupTolerance float64
}

type pendingNote struct {
	note  model.NoteEvent
	group int
	// seconds subtracted from note.StartTime after a Rebase
	shift float64
}

func (p pendingNote) start() float64 {
	return p.note.StartTime - p.shift
}

type press struct {
	pitch uint8
	at    float64
}

// Tracker holds the notes that are due but not yet resolved, plus the
// running stats. It is owned by one update loop.
type Tracker struct {
	opts    Options
	pending []pendingNote
	// presses that matched nothing yet; a note reported due later may still
	// claim them (early hits)
	early []press
	stats model.SessionStats

	group      int
	groupStart float64
}

func New(title string, opts Options) (*Tracker, error) {
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if opts.GroupTolerance < 0 || math.IsNaN(opts.GroupTolerance) {
		opts.GroupTolerance = 0
	}
	t := &Tracker{opts: opts}
	t.Reset(title)
	return t, nil
}

// Reset clears everything and starts new stats for title.
func (t *Tracker) Reset(title string) {
	t.pending = nil
	t.early = nil
	t.stats = model.SessionStats{SongTitle: title}
	t.group = -1
	t.groupStart = math.Inf(-1)
}

// Add registers notes that just became due. A note that fits a buffered
// early press is resolved right away and its result returned.
func (t *Tracker) Add(notes ...model.NoteEvent) []model.HitResult {
	var res []model.HitResult
	for _, n := range notes {
		p := pendingNote{note: n, group: t.groupFor(n.StartTime)}
		if i := t.earlyPress(n); i >= 0 {
			pr := t.early[i]
			t.early = append(t.early[:i], t.early[i+1:]...)
			res = append(res, t.resolve(p, pr.pitch, pr.at))
			continue
		}
		t.pending = append(t.pending, p)
	}
	return res
}

func (t *Tracker) groupFor(start float64) int {
	if start < t.groupStart || start-t.groupStart > t.opts.GroupTolerance {
		t.group++
		t.groupStart = start
	}
	return t.group
}

func (t *Tracker) earlyPress(n model.NoteEvent) int {
	best := -1
	bestDist := math.Inf(1)
	for i, pr := range t.early {
		if pr.pitch != n.Pitch {
			continue
		}
		d := math.Abs(n.StartTime - pr.at)
		if d <= t.opts.Thresholds.window() && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Feed matches a press against the nearest pending note of the same pitch.
// Equal distances go to the earlier note. A press that matches nothing is
// buffered for the OK window and reported as not found.
func (t *Tracker) Feed(pitch uint8, at float64) (model.HitResult, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range t.pending {
		if p.note.Pitch != pitch {
			continue
		}
		d := math.Abs(p.start() - at)
		if d < bestDist || (best >= 0 && d == bestDist && p.start() < t.pending[best].start()) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		t.early = append(t.early, press{pitch: pitch, at: at})
		return model.HitResult{}, false
	}
	p := t.pending[best]
	t.pending = append(t.pending[:best], t.pending[best+1:]...)
	return t.resolve(p, pitch, at), true
}

func (t *Tracker) resolve(p pendingNote, pitch uint8, at float64) model.HitResult {
	n := p.note
	n.StartTime = p.start()
	r := Evaluate(n, pitch, at, t.opts.Thresholds)
	note := p.note
	r.Expected = &note
	r.Group = p.group
	t.stats.Record(r)
	return r
}

// FlushMisses resolves as MISS every pending note whose OK window closed
// before now. It also expires buffered presses.
func (t *Tracker) FlushMisses(now float64) []model.HitResult {
	window := t.opts.Thresholds.window()
	var res []model.HitResult
	kept := t.pending[:0]
	for _, p := range t.pending {
		if p.start()+window < now {
			res = append(res, t.timeout(p))
			continue
		}
		kept = append(kept, p)
	}
	t.pending = kept

	early := t.early[:0]
	for _, pr := range t.early {
		if pr.at+window < now {
			if r, ok := t.extra(pr); ok {
				res = append(res, r)
			}
			continue
		}
		early = append(early, pr)
	}
	t.early = early
	return res
}

// Rebase moves the tracker's clock back by offset seconds. Pending notes and
// buffered presses keep their distance to the current time, so a loop can
// rewind the song position while the last notes of the previous pass are
// still inside their window.
func (t *Tracker) Rebase(offset float64) {
	if offset == 0 || math.IsNaN(offset) {
		return
	}
	for i := range t.pending {
		t.pending[i].shift += offset
	}
	for i := range t.early {
		t.early[i].at -= offset
	}
	// a new pass never joins a group of the previous one
	t.groupStart = math.Inf(-1)
}

// Stray records a press that cannot belong to any note, such as a wrong key
// while playback waits on a group. It only counts with PenalizeExtra.
func (t *Tracker) Stray(pitch uint8) (model.HitResult, bool) {
	return t.extra(press{pitch: pitch})
}

// FlushAll resolves everything still pending as MISS.
func (t *Tracker) FlushAll() []model.HitResult {
	var res []model.HitResult
	for _, p := range t.pending {
		res = append(res, t.timeout(p))
	}
	for _, pr := range t.early {
		if r, ok := t.extra(pr); ok {
			res = append(res, r)
		}
	}
	t.pending = nil
	t.early = nil
	return res
}

// Clear drops pending notes and buffered presses without grading them.
// Used when the position jumps.
func (t *Tracker) Clear() {
	t.pending = nil
	t.early = nil
	t.groupStart = math.Inf(-1)
}

func (t *Tracker) timeout(p pendingNote) model.HitResult {
	note := p.note
	r := model.HitResult{Grade: model.Miss, Expected: &note, PlayedPitch: -1, Group: p.group}
	t.stats.Record(r)
	return r
}

func (t *Tracker) extra(pr press) (model.HitResult, bool) {
	if !t.opts.PenalizeExtra {
		return model.HitResult{}, false
	}
	r := model.HitResult{Grade: model.Miss, PlayedPitch: int(pr.pitch), Group: -1}
	t.stats.Record(r)
	return r, true
}

func (t *Tracker) Stats() model.SessionStats {
	return t.stats
}

// Pending returns the unresolved notes in the order they became due.
func (t *Tracker) Pending() []model.NoteEvent {
	res := make([]model.NoteEvent, 0, len(t.pending))
	for _, p := range t.pending {
		res = append(res, p.note)
	}
	return res
}

func (t *Tracker) Thresholds() Thresholds {
	return t.opts.Thresholds
}
