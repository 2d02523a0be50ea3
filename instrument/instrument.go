// Package instrument holds the players that feed the looper: drum pads
// and synth keys. They sound immediately through a MIDI Sender and, while
// the looper runs, record what was played at the quantized step.
package instrument

import (
	"github.com/JeanRibes/midi-looper/music"
)

// Looper is what an instrument needs from the transport.
// *music.Transport satisfies it.
type Looper interface {
	IsLooping() bool
	QuantizedStep() int
	AddNoteRecord(startStep, endStep int, onAction, offAction func())
}

var _ Looper = (*music.Transport)(nil)

const (
	DEFAULT_CHANNEL  = 0
	DEFAULT_VELOCITY = 100
)
