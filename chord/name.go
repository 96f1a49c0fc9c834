package chord

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

type template struct {
	intervals []int
	suffix    string
}

// Earlier templates win ties.
var templates = []template{
	{[]int{0, 4, 7}, ""},
	{[]int{0, 3, 7}, "m"},
	{[]int{0, 3, 6}, "dim"},
	{[]int{0, 4, 8}, "aug"},
	{[]int{0, 4, 7, 10}, "7"},
	{[]int{0, 4, 7, 11}, "maj7"},
	{[]int{0, 3, 7, 10}, "m7"},
	{[]int{0, 3, 6, 10}, "m7b5"},
	{[]int{0, 3, 6, 9}, "dim7"},
	{[]int{0, 5, 7}, "sus4"},
	{[]int{0, 2, 7}, "sus2"},
}

// NoteName renders a pitch class, e.g. 61 is "C#".
func NoteName(pitch uint8) string {
	return noteNames[pitch%12]
}

// Name returns a chord symbol such as "Am7" for a set of pitches. Octaves
// and doublings are ignored. A template only counts when all of its
// intervals are present; extra pitch classes lower its score. Fewer than two
// distinct pitch classes, or nothing matching, gives false.
func Name(pitches []uint8) (string, bool) {
	var classes [12]bool
	distinct := 0
	for _, p := range pitches {
		if !classes[p%12] {
			classes[p%12] = true
			distinct++
		}
	}
	if distinct < 2 {
		return "", false
	}

	best, bestScore := "", 0
	for root := 0; root < 12; root++ {
		var rel [12]bool
		for pc, on := range classes {
			if on {
				rel[(pc-root+12)%12] = true
			}
		}
		for _, tpl := range templates {
			matched := 0
			for _, iv := range tpl.intervals {
				if rel[iv] {
					matched++
				}
			}
			if matched < len(tpl.intervals) {
				continue
			}
			if score := matched - (distinct - matched); score > bestScore {
				best, bestScore = noteNames[root]+tpl.suffix, score
			}
		}
	}
	return best, best != ""
}

// HeldName names the chord currently held.
func HeldName(held OnNotes) (string, bool) {
	return Name(Held(held))
}
