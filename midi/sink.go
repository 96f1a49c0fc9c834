package midi

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/util"
	"gitlab.com/gomidi/midi/v2"
)

// Sink sounds due notes on a MIDI output and schedules their note-offs.
type Sink struct {
	send    func(msg midi.Message) error
	channel uint8

	mu         sync.Mutex
	tempoScale float64
	timers     map[*time.Timer]uint8
	closed     bool
}

// NewSink opens output port number port.
func NewSink(port int, channel uint8) (*Sink, error) {
	if len(midi.GetOutPorts()) == 0 {
		return nil, ErrNoOutputPort
	}
	out, err := midi.OutPort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrNoOutputPort, port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", out.String(), err)
	}
	return newSink(send, channel), nil
}

func newSink(send func(msg midi.Message) error, channel uint8) *Sink {
	return &Sink{
		send:       send,
		channel:    channel & 0x0f,
		tempoScale: 1,
		timers:     map[*time.Timer]uint8{},
	}
}

// SetTempoScale keeps note lengths in step with playback speed.
func (s *Sink) SetTempoScale(scale float64) {
	if scale <= 0 || math.IsNaN(scale) {
		return
	}
	s.mu.Lock()
	s.tempoScale = scale
	s.mu.Unlock()
}

func (s *Sink) Play(n model.NoteEvent, salience float64) {
	vel := uint8(util.Clamp(math.Round(float64(n.Velocity)*salience), 1, 127))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_ = s.send(midi.NoteOn(s.channel, n.Pitch, vel))

	length := time.Duration(n.Duration / s.tempoScale * float64(time.Second))
	var timer *time.Timer
	timer = time.AfterFunc(length, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.timers[timer]; !ok {
			return
		}
		delete(s.timers, timer)
		_ = s.send(midi.NoteOff(s.channel, n.Pitch))
	})
	s.timers[timer] = n.Pitch
}

// Close stops pending note-offs and silences everything still sounding.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for timer, pitch := range s.timers {
		timer.Stop()
		_ = s.send(midi.NoteOff(s.channel, pitch))
	}
	s.timers = map[*time.Timer]uint8{}
}
