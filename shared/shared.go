// Package shared holds the messages exchanged between the control loop and
// the UI.
package shared

import "fmt"

type Event int

const (
	Quit Event = iota
	PlayPause
	Record
	ClearEvents
	Tempo         // Number: BPM
	ChordSize     // Number: chord size
	Pad           // String: pad name
	StepNotify    // Number: current step, -1 when idle
	LoopNotify    // Boolean: looping
	RecordNotify  // Boolean: recording
	TempoNotify   // Number: BPM
	PatternNotify // Number: recorded notes
	Error         // String: message
)

func (e Event) String() string {
	switch e {
	case Quit:
		return "quit"
	case PlayPause:
		return "play/pause"
	case Record:
		return "record"
	case ClearEvents:
		return "clear"
	case Tempo:
		return "tempo"
	case ChordSize:
		return "chord size"
	case Pad:
		return "pad"
	case StepNotify:
		return "step"
	case LoopNotify:
		return "loop"
	case RecordNotify:
		return "recording"
	case TempoNotify:
		return "tempo changed"
	case PatternNotify:
		return "pattern"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type Message struct {
	Type    Event
	Number  int
	Boolean bool
	String  string
	Number2 int
}

const SINK_SIZE = 64

// Post sends msg without blocking. It reports false when the sink is full
// and the message was dropped.
func Post(sink chan<- Message, msg Message) bool {
	select {
	case sink <- msg:
		return true
	default:
		return false
	}
}

func Errorf(format string, args ...any) Message {
	return Message{Type: Error, String: fmt.Sprintf(format, args...)}
}
