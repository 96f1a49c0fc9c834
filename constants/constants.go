package constants

// Grading windows in milliseconds of song time, per difficulty.
const (
	EasyPerfectMs = 80
	EasyGoodMs    = 150
	EasyOKMs      = 300

	NormalPerfectMs = 50
	NormalGoodMs    = 100
	NormalOKMs      = 200

	HardPerfectMs = 30
	HardGoodMs    = 60
	HardOKMs      = 120
)

const (
	// notes starting within this many ms of each other form one onset group
	ChordToleranceMs = 50

	TempoMin  = 0.25
	TempoMax  = 2.0
	TempoStep = 0.05

	DefaultBeatsPerBar = 4.0
	// 120 BPM
	DefaultSecondsPerBeat = 0.5

	// loop tempo nudging is off unless configured
	LoopTempoStep = 0.0
	LoopTempoMax  = 1.0

	// notes shorter than this on load are stretched
	MinNoteDuration = 0.01

	// MIDI pitch split used by the by-pitch hand assignment
	MiddleC = 60

	// wait-mode auto-played notes are sounded at this fraction of their velocity
	AutoPlaySalience = 0.5

	DefaultFPS = 60
)
