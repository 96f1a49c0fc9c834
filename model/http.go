package model

// StateResponse is what a renderer polling over HTTP sees.
type StateResponse struct {
	SessionID  string       `json:"session_id"`
	Title      string       `json:"title"`
	Position   float64      `json:"position"`
	Duration   float64      `json:"duration"`
	NoteIndex  int          `json:"note_index"`
	Mode       string       `json:"mode"`
	TempoScale float64      `json:"tempo_scale"`
	ActiveHand string       `json:"active_hand"`
	Loop       LoopMarkers  `json:"loop"`
	// ints so JSON carries numbers rather than base64
	Held       []int        `json:"held"`
	Stats      SessionStats `json:"stats"`
}

type LoopMarkers struct {
	Enabled bool    `json:"enabled"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Count   int     `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
