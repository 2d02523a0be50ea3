package instrument

import (
	"fmt"
	"io"
	"sort"

	"github.com/JeanRibes/midi-looper/music"

	charmlog "github.com/charmbracelet/log"
)

// General MIDI percussion keys.
const (
	GM_KICK  = 36
	GM_SNARE = 38
	GM_CLAP  = 39
	GM_HIHAT = 42
)

func DefaultPads() map[string]uint8 {
	return map[string]uint8{
		"kick":  GM_KICK,
		"snare": GM_SNARE,
		"hihat": GM_HIHAT,
		"clap":  GM_CLAP,
	}
}

// DrumKit plays named pads. A hit is a one-shot: on and off at the same
// step.
type DrumKit struct {
	looper   Looper
	send     music.Sender
	logger   *charmlog.Logger
	pads     map[string]music.Voice
	channel  uint8
	velocity uint8
}

type DrumOption func(*DrumKit)

func WithPads(pads map[string]uint8) DrumOption {
	return func(d *DrumKit) {
		d.pads = make(map[string]music.Voice, len(pads))
		for name, key := range pads {
			d.pads[name] = music.Voice{Key: key}
		}
	}
}

func WithDrumChannel(ch uint8) DrumOption {
	return func(d *DrumKit) {
		d.channel = ch
	}
}

func WithDrumVelocity(vel uint8) DrumOption {
	return func(d *DrumKit) {
		d.velocity = vel
	}
}

func WithDrumLogger(l *charmlog.Logger) DrumOption {
	return func(d *DrumKit) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDrumKit(looper Looper, send music.Sender, opts ...DrumOption) *DrumKit {
	d := &DrumKit{
		looper:   looper,
		send:     send,
		logger:   charmlog.New(io.Discard),
		channel:  DEFAULT_CHANNEL,
		velocity: DEFAULT_VELOCITY,
	}
	WithPads(DefaultPads())(d)
	for _, opt := range opts {
		opt(d)
	}
	for name, v := range d.pads {
		v.Channel = d.channel
		v.Velocity = d.velocity
		d.pads[name] = v
	}
	return d
}

// Pads lists the pad names, sorted.
func (d *DrumKit) Pads() []string {
	names := make([]string, 0, len(d.pads))
	for name := range d.pads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hit plays the pad now and records it at the nearest step if the looper
// is running.
func (d *DrumKit) Hit(pad string) error {
	v, ok := d.pads[pad]
	if !ok {
		return fmt.Errorf("unknown pad %q", pad)
	}
	on, off := v.Bind(d.send, d.logger)
	on()
	off()

	if d.looper.IsLooping() {
		step := d.looper.QuantizedStep()
		if step != music.NoStep {
			d.looper.AddNoteRecord(step, step, on, off)
		}
		d.logger.Debug("hit", "pad", pad, "key", v, "step", step)
	} else {
		d.logger.Debug("hit", "pad", pad, "key", v)
	}
	return nil
}
