package instrument

import (
	"io"
	"math"
	"sync"

	"github.com/JeanRibes/midi-looper/music"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

const DEFAULT_KEY_ROOT = 60 // C4

// Keys is a monophonic synth keyboard with an optional chord mode.
//
// Sliding from one key to another without releasing (legato) ends the
// previous note at the current step and starts the new one. Only the active
// key's release ends the note; releases of keys already slid away from are
// ignored.
type Keys struct {
	mu sync.Mutex

	looper   Looper
	send     music.Sender
	logger   *charmlog.Logger
	channel  uint8
	velocity uint8
	keyRoot  int
	size     int

	held      bool
	active    uint8
	chord     music.Voices
	startStep int
}

type KeysOption func(*Keys)

func WithKeyRoot(root int) KeysOption {
	return func(k *Keys) {
		k.keyRoot = root
	}
}

func WithChordSize(size int) KeysOption {
	return func(k *Keys) {
		k.size = clampChordSize(size)
	}
}

func WithKeysChannel(ch uint8) KeysOption {
	return func(k *Keys) {
		k.channel = ch
	}
}

func WithKeysVelocity(vel uint8) KeysOption {
	return func(k *Keys) {
		k.velocity = vel
	}
}

func WithKeysLogger(l *charmlog.Logger) KeysOption {
	return func(k *Keys) {
		if l != nil {
			k.logger = l
		}
	}
}

func NewKeys(looper Looper, send music.Sender, opts ...KeysOption) *Keys {
	k := &Keys{
		looper:    looper,
		send:      send,
		logger:    charmlog.New(io.Discard),
		channel:   DEFAULT_CHANNEL,
		velocity:  DEFAULT_VELOCITY,
		keyRoot:   DEFAULT_KEY_ROOT,
		size:      MIN_CHORD_SIZE,
		startStep: music.NoStep,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func clampChordSize(size int) int {
	return max(MIN_CHORD_SIZE, min(MAX_CHORD_SIZE, size))
}

// SetChordSize takes effect on the next key pressed.
func (k *Keys) SetChordSize(size int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.size = clampChordSize(size)
}

func (k *Keys) ChordSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.size
}

// Held returns the active key, if any.
func (k *Keys) Held() (midi.Note, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return midi.Note(k.active), k.held
}

// Press starts key. If another key is held, that note is recorded up to
// the current step and silenced first.
func (k *Keys) Press(key uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.held && k.active == key {
		return
	}
	looping := k.looper.IsLooping()
	if looping && k.held {
		k.record()
	}
	k.silence()

	k.held = true
	k.active = key
	k.chord = k.voices(key)
	on, _ := k.chord.Bind(k.send, k.logger)
	on()
	k.startStep = music.NoStep
	if looping {
		k.startStep = k.looper.QuantizedStep()
	}
	k.logger.Debug("playing", "notes", k.chord, "step", k.startStep)
}

// Release ends the note of key and records it if the looper is running.
func (k *Keys) Release(key uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.held || k.active != key {
		return
	}
	if k.looper.IsLooping() {
		k.record()
	}
	k.silence()
	k.reset()
}

// Cancel silences the held note without recording it.
func (k *Keys) Cancel() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.held {
		return
	}
	k.silence()
	k.reset()
}

func (k *Keys) voices(key uint8) music.Voices {
	keys := BuildChord(int(key), k.size, k.keyRoot)
	vs := make(music.Voices, len(keys))
	for i, n := range keys {
		vs[i] = music.Voice{Channel: k.channel, Key: uint8(n), Velocity: k.velocity}
	}
	return vs
}

// record adds the held note from its start step to now. A note pressed
// before the looper started has no start step and is not recorded.
func (k *Keys) record() {
	if k.startStep == music.NoStep {
		return
	}
	end := k.looper.QuantizedStep()
	if end == music.NoStep {
		return
	}
	if end < k.startStep {
		// held across the loop seam: the looper clamps this to the last step
		end = math.MaxInt
	}
	on, off := k.chord.Bind(k.send, k.logger)
	k.looper.AddNoteRecord(k.startStep, end, on, off)
	k.logger.Debug("record", "notes", k.chord, "start", k.startStep, "end", end)
}

func (k *Keys) silence() {
	if !k.held {
		return
	}
	_, off := k.chord.Bind(k.send, k.logger)
	off()
}

func (k *Keys) reset() {
	k.held = false
	k.active = 0
	k.chord = nil
	k.startStep = music.NoStep
}
