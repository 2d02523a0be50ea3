package main

import (
	"context"
	"math"

	"github.com/JeanRibes/midi-looper/config"
	"github.com/JeanRibes/midi-looper/instrument"
	"github.com/JeanRibes/midi-looper/music"
	. "github.com/JeanRibes/midi-looper/shared"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

// GM percussion channel, 10 counted from 1
const DRUM_CHANNEL = 9

type app struct {
	cfg       *config.Config
	transport *music.Transport
	drums     *instrument.DrumKit
	keys      *instrument.Keys
	logger    *charmlog.Logger

	SinkUI   chan Message
	SinkLoop chan Message

	padByKey map[uint8]string
}

func newApp(cfg *config.Config, transport *music.Transport, drums *instrument.DrumKit, keys *instrument.Keys,
	SinkUI, SinkLoop chan Message, logger *charmlog.Logger) *app {
	a := &app{
		cfg:       cfg,
		transport: transport,
		drums:     drums,
		keys:      keys,
		logger:    logger,
		SinkUI:    SinkUI,
		SinkLoop:  SinkLoop,
		padByKey:  map[uint8]string{},
	}
	for name, key := range cfg.Pads {
		a.padByKey[key] = name
	}
	return a
}

// Run handles SinkLoop messages until Quit or ctx is done. The transport
// is stopped on the way out so no note is left sounding.
func (a *app) Run(ctx context.Context, cancel context.CancelFunc) {
	a.logger.Info("start")
	defer a.transport.Stop()
	a.notify(Message{Type: TempoNotify, Number: a.bpm()})
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("chan Done, quitting")
			return
		case msg := <-a.SinkLoop:
			if a.handle(msg) {
				a.logger.Info("quit")
				cancel()
				return
			}
		}
	}
}

// handle applies one bus message. It reports true on Quit.
func (a *app) handle(msg Message) bool {
	a.logger.Debug("message", "type", msg.Type, "number", msg.Number, "bool", msg.Boolean, "string", msg.String)
	switch msg.Type {
	case Quit:
		return true
	case PlayPause:
		if a.transport.IsLooping() {
			a.transport.Stop()
			a.keys.Cancel()
			if a.cfg.ClearOnStop {
				a.transport.ClearAllEvents()
			}
			a.notify(Message{Type: LoopNotify, Boolean: false})
			a.notify(Message{Type: RecordNotify, Boolean: false})
		} else {
			a.transport.Start()
			a.notify(Message{Type: LoopNotify, Boolean: true})
		}
		a.notifyPattern()
	case Record:
		a.transport.SetRecording(msg.Boolean)
		a.notify(Message{Type: RecordNotify, Boolean: a.transport.IsRecording()})
	case ClearEvents:
		a.transport.ClearAllEvents()
		a.notifyPattern()
	case Tempo:
		bpm := min(max(float64(msg.Number), config.MIN_BPM), config.MAX_BPM)
		a.transport.SetBPM(bpm)
		a.notify(Message{Type: TempoNotify, Number: a.bpm()})
	case ChordSize:
		a.keys.SetChordSize(msg.Number)
		a.notify(Message{Type: ChordSize, Number: a.keys.ChordSize()})
	case Pad:
		if err := a.drums.Hit(msg.String); err != nil {
			a.logger.Error("pad", "err", err)
			a.notify(Errorf("%v", err))
			return false
		}
		a.notifyPattern()
	default:
		a.logger.Warn("unhandled message", "type", msg.Type)
	}
	return false
}

// onMIDI handles the input controller. Drum channel notes matching a pad
// hit it, other notes play the keys. The configured control changes drive
// the transport.
func (a *app) onMIDI(msg midi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if pad, ok := a.padByKey[key]; ok && ch == DRUM_CHANNEL {
			Post(a.SinkLoop, Message{Type: Pad, String: pad})
			return
		}
		a.keys.Press(key)
	case msg.GetNoteEnd(&ch, &key):
		if _, ok := a.padByKey[key]; ok && ch == DRUM_CHANNEL {
			return
		}
		a.keys.Release(key)
		a.notifyPattern()
	case msg.GetControlChange(&ch, &key, &vel):
		if vel == 0 {
			return
		}
		switch key {
		case a.cfg.Controls.Play:
			Post(a.SinkLoop, Message{Type: PlayPause})
		case a.cfg.Controls.Record:
			Post(a.SinkLoop, Message{Type: Record, Boolean: !a.transport.IsRecording()})
		case a.cfg.Controls.Clear:
			Post(a.SinkLoop, Message{Type: ClearEvents})
		}
	}
}

func (a *app) bpm() int {
	return int(math.Round(a.transport.Grid().BPM()))
}

func (a *app) notifyPattern() {
	a.notify(Message{Type: PatternNotify, Number: a.transport.Len()})
}

func (a *app) notify(msg Message) {
	if !Post(a.SinkUI, msg) {
		a.logger.Debug("UI sink full, dropped", "type", msg.Type)
	}
}
