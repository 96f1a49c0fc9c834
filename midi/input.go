package midi

import (
	"fmt"
	"time"

	"github.com/jsphweid/keyfall/model"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

// InPorts lists the available input port names by index.
func InPorts() []string {
	var res []string
	for _, in := range midi.GetInPorts() {
		res = append(res, in.String())
	}
	return res
}

func OutPorts() []string {
	var res []string
	for _, out := range midi.GetOutPorts() {
		res = append(res, out.String())
	}
	return res
}

// Listen forwards presses and releases from input port number port to
// events, stamped with the time they arrived. Events are dropped rather than
// blocking the driver when events is full. Call stop to close the port.
func Listen(port int, events chan<- model.InputEvent) (stop func(), err error) {
	if len(midi.GetInPorts()) == 0 {
		return nil, ErrNoInputPort
	}
	in, err := midi.InPort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrNoInputPort, port, err)
	}

	stop, err = midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		var ch, key, vel uint8
		var ev model.InputEvent
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			ev = model.InputEvent{Pitch: key, Velocity: vel, Press: true}
		case msg.GetNoteEnd(&ch, &key):
			ev = model.InputEvent{Pitch: key}
		default:
			return
		}
		ev.At = time.Now()
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", in.String(), err)
	}
	return stop, nil
}

// CloseDriver releases the MIDI driver. Call it once on shutdown.
func CloseDriver() {
	midi.CloseDriver()
}
