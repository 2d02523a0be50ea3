package music

import (
	"io"
	"sync"
	"time"

	"github.com/JeanRibes/midi-looper/clock"
	"github.com/JeanRibes/midi-looper/grid"

	charmlog "github.com/charmbracelet/log"
)

type State int

const (
	Stopped State = iota
	Playing
	PlayingAndRecording
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case PlayingAndRecording:
		return "recording"
	default:
		return "stopped"
	}
}

type Option func(*Transport)

func WithClock(c clock.Clock) Option {
	return func(t *Transport) {
		t.clock = c
	}
}

func WithIndicator(i Indicator) Option {
	return func(t *Transport) {
		t.indicator = i
	}
}

func WithLogger(l *charmlog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transport loops a one-measure pattern of NoteRecords.
//
// A single timer drives playback. Each time it fires, the steps whose
// offset has passed are fired in order and the timer is re-armed for the
// next step's absolute deadline, measured from the start of the cycle. Tempo
// changes are picked up at the next cycle boundary.
//
// Step callbacks run with fireMu held and mu released: they may record
// notes or read state but must not call Start, Stop or Tick.
type Transport struct {
	clock     clock.Clock
	indicator Indicator
	logger    *charmlog.Logger

	fireMu sync.Mutex
	mu     sync.Mutex

	grid  grid.Grid // configured, adopted at the next cycle
	cycle grid.Grid // in effect for the running cycle

	records  store
	sounding []*NoteRecord // onset fired, release pending

	looping     bool
	recording   bool
	currentStep int
	nextStep    int
	cycleStart  time.Time
	cycles      int

	gen   uint64 // bumped by Start and Stop; stale timers compare against it
	timer clock.Timer
}

func NewTransport(c grid.Config, opts ...Option) *Transport {
	t := &Transport{
		clock:       clock.System(),
		indicator:   nopIndicator{},
		logger:      charmlog.New(io.Discard),
		grid:        grid.New(c),
		records:     newStore(),
		currentStep: NoStep,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cycle = t.grid
	return t
}

// Start begins playback from the top of the measure. Step 0 fires on the
// first tick.
func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.looping {
		return
	}
	t.looping = true
	t.gen++
	t.cycle = t.grid
	t.cycleStart = t.clock.Now()
	t.nextStep = 0
	t.cycles = 0
	t.currentStep = NoStep
	t.arm(t.cycleStart)
	t.logger.Info("start", "bpm", t.cycle.BPM(), "steps", t.cycle.StepsPerMeasure())
}

// Stop halts playback. Every note whose onset fired gets its release before
// Stop returns, and no step callback runs after that.
func (t *Transport) Stop() {
	t.fireMu.Lock()
	defer t.fireMu.Unlock()

	t.mu.Lock()
	if !t.looping {
		t.mu.Unlock()
		return
	}
	t.looping = false
	t.recording = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	held := t.sounding
	t.sounding = nil
	t.currentStep = NoStep
	t.nextStep = 0
	t.mu.Unlock()

	for _, r := range held {
		t.invoke(NoStep, Release, r.OffAction)
	}
	t.show(NoStep)
	t.logger.Info("stop", "released", len(held))
}

// SetRecording arms or disarms recording. It has no effect on the pattern
// while stopped.
func (t *Transport) SetRecording(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording == on {
		return
	}
	t.recording = on
	t.logger.Debug("recording", "on", on, "looping", t.looping)
}

// AddNoteRecord appends a note to the pattern. It is ignored unless the
// transport is looping and recording; steps are clamped into the measure.
//
// A note recorded at the step the clock is about to reach, as quantizing
// rounds a late hit forward, was already heard live: its first onset is
// skipped so it does not sound twice in the same pass.
func (t *Transport) AddNoteRecord(startStep, endStep int, onAction, offAction func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording || !t.looping {
		return
	}
	r := t.records.add(t.grid, startStep, endStep, onAction, offAction)
	r.skipNext = t.aheadOfClock(r.StartStep)
	t.logger.Debug("record", "start", r.StartStep, "end", r.EndStep, "skip", r.skipNext, "len", t.records.len())
}

// aheadOfClock reports whether step is the nearest step to now and has not
// fired yet. mu must be held.
func (t *Transport) aheadOfClock(step int) bool {
	elapsed := t.clock.Now().Sub(t.cycleStart)
	nearest := t.cycle.NearestStep(elapsed)
	if nearest < t.nextStep || elapsed >= t.cycle.OffsetForStep(nearest) {
		return false
	}
	return nearest%t.cycle.StepsPerMeasure() == step
}

// ClearAllEvents empties the pattern and resets the indicator. Notes that
// are sounding keep sounding until Stop.
func (t *Transport) ClearAllEvents() {
	t.mu.Lock()
	n := t.records.len()
	t.records.clear()
	t.mu.Unlock()
	t.show(NoStep)
	t.logger.Debug("clear", "removed", n)
}

// SetBeatDuration changes the tempo, in milliseconds per beat. A running
// cycle finishes at the old tempo.
func (t *Transport) SetBeatDuration(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid = t.grid.WithBeatDuration(ms)
	if !t.looping {
		t.cycle = t.grid
	}
	t.logger.Debug("tempo", "beat", t.grid.BeatDuration(), "bpm", t.grid.BPM())
}

func (t *Transport) SetBPM(bpm float64) {
	t.SetBeatDuration(grid.BeatDurationFromBPM(bpm))
}

// Tick fires every step due at the clock's current time. The driving timer
// calls it; calling it directly is harmless.
func (t *Transport) Tick() {
	t.fireMu.Lock()
	defer t.fireMu.Unlock()
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	t.advance(gen)
}

func (t *Transport) IsLooping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.looping
}

func (t *Transport) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.looping && t.recording:
		return PlayingAndRecording
	case t.looping:
		return Playing
	default:
		return Stopped
	}
}

// CurrentStep is the last step fired, or NoStep.
func (t *Transport) CurrentStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentStep
}

// QuantizedStep snaps the current time to the nearest step of the running
// cycle. Instruments use it to place what the player just hit.
func (t *Transport) QuantizedStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.looping {
		return NoStep
	}
	return t.cycle.StepIndexAt(t.clock.Now().Sub(t.cycleStart))
}

// Grid is the configured grid, including a tempo change not yet in effect.
func (t *Transport) Grid() grid.Grid {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid
}

// Cycles counts completed measures since Start.
func (t *Transport) Cycles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cycles
}

func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records.len()
}

// Records returns a copy of the pattern.
func (t *Transport) Records() []NoteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records.snapshot()
}

type call struct {
	phase Phase
	fn    func()
}

type firing struct {
	step  int
	calls []call
}

// advance must be called with fireMu held.
func (t *Transport) advance(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.looping {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	var fired []firing
	for {
		elapsed := now.Sub(t.cycleStart)
		next := t.cycle.Due(t.nextStep, elapsed)
		for step := t.nextStep; step < next; step++ {
			fired = append(fired, t.fireStep(step))
		}
		t.nextStep = next

		measure := t.cycle.Measure()
		if next < t.cycle.StepsPerMeasure() || elapsed < measure {
			break
		}
		t.rollover(now)
	}
	t.arm(now)
	t.mu.Unlock()

	for _, f := range fired {
		t.show(f.step)
		for _, c := range f.calls {
			t.invoke(f.step, c.phase, c.fn)
		}
	}
}

// rollover starts the next cycle, adopting the configured tempo. Whole
// cycles missed by a stalled clock are skipped rather than replayed.
func (t *Transport) rollover(now time.Time) {
	t.cycleStart = t.cycleStart.Add(t.cycle.Measure())
	if t.cycle != t.grid {
		t.logger.Debug("tempo change", "bpm", t.grid.BPM())
	}
	t.cycle = t.grid
	t.nextStep = 0
	t.cycles++

	measure := t.cycle.Measure()
	if skipped := now.Sub(t.cycleStart) / measure; skipped > 0 {
		t.cycleStart = t.cycleStart.Add(skipped * measure)
		t.cycles += int(skipped)
		t.logger.Warn("clock stalled, skipping cycles", "skipped", int(skipped))
	}
}

// fireStep updates the position and collects the callbacks of step:
// releases of held notes first, then onsets, then the releases of
// one-shots so they never hang.
func (t *Transport) fireStep(step int) firing {
	t.currentStep = step
	f := firing{step: step}
	t.records.forEachDue(step, Release, func(r *NoteRecord) {
		if !r.OneShot() && t.release(r) {
			f.calls = append(f.calls, call{Release, r.OffAction})
		}
	})
	t.records.forEachDue(step, Onset, func(r *NoteRecord) {
		if r.skipNext {
			r.skipNext = false
			return
		}
		t.sounding = append(t.sounding, r)
		f.calls = append(f.calls, call{Onset, r.OnAction})
	})
	t.records.forEachDue(step, Release, func(r *NoteRecord) {
		if r.OneShot() && t.release(r) {
			f.calls = append(f.calls, call{Release, r.OffAction})
		}
	})
	return f
}

// release drops r from the sounding notes, reporting whether it was there.
func (t *Transport) release(r *NoteRecord) bool {
	for i, held := range t.sounding {
		if held == r {
			t.sounding = append(t.sounding[:i], t.sounding[i+1:]...)
			return true
		}
	}
	return false
}

// arm replaces the driving timer with one for the next deadline. mu must be
// held.
func (t *Transport) arm(now time.Time) {
	deadline := t.cycleStart.Add(t.cycle.Measure())
	if t.nextStep < t.cycle.StepsPerMeasure() {
		deadline = t.cycleStart.Add(t.cycle.OffsetForStep(t.nextStep))
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	gen := t.gen
	t.timer = t.clock.AfterFunc(deadline.Sub(now), func() {
		t.fireMu.Lock()
		defer t.fireMu.Unlock()
		t.advance(gen)
	})
}

func (t *Transport) show(step int) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("indicator panicked", "step", step, "panic", r)
		}
	}()
	t.indicator.UpdateStep(step)
}

// invoke runs an instrument callback, containing its panics so one bad
// callback cannot kill the loop.
func (t *Transport) invoke(step int, phase Phase, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("action panicked", "step", step, "phase", phase, "panic", r)
		}
	}()
	fn()
}
