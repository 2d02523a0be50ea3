package music

import (
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	if k == NoteOn {
		return "note on"
	}
	return "note off"
}

// Voice is what an instrument plays for one note. It is captured by value
// when a note is recorded so later knob changes do not leak into the loop.
type Voice struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
}

func (v Voice) String() string {
	return midi.Note(v.Key).String()
}

func (v Voice) On() Action  { return Action{Kind: NoteOn, Voice: v} }
func (v Voice) Off() Action { return Action{Kind: NoteOff, Voice: v} }

// Action is a note-on or note-off for a voice.
type Action struct {
	Kind  Kind
	Voice Voice
}

func (a Action) Message() midi.Message {
	if a.Kind == NoteOn {
		return midi.NoteOn(a.Voice.Channel, a.Voice.Key, a.Voice.Velocity)
	}
	return midi.NoteOff(a.Voice.Channel, a.Voice.Key)
}

// Sender delivers a MIDI message to the sound engine, usually the function
// returned by midi.SendTo.
type Sender func(midi.Message) error

// Bind turns the action into a callback for a NoteRecord. Send errors are
// logged, never returned: the loop keeps going.
func (a Action) Bind(send Sender, logger *charmlog.Logger) func() {
	return func() {
		if err := send(a.Message()); err != nil && logger != nil {
			logger.Error("send failed", "action", a.Kind, "key", a.Voice, "err", err)
		}
	}
}

// Bind returns the onset and release callbacks of v.
func (v Voice) Bind(send Sender, logger *charmlog.Logger) (on, off func()) {
	return v.On().Bind(send, logger), v.Off().Bind(send, logger)
}

// Voices is a chord.
type Voices []Voice

func (vs Voices) String() string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

// Bind returns callbacks that start and stop every voice of the chord.
func (vs Voices) Bind(send Sender, logger *charmlog.Logger) (on, off func()) {
	frozen := append(Voices(nil), vs...)
	ons := make([]func(), len(frozen))
	offs := make([]func(), len(frozen))
	for i, v := range frozen {
		ons[i], offs[i] = v.Bind(send, logger)
	}
	return all(ons), all(offs)
}

func all(fns []func()) func() {
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}
