// Package grid converts between musical time (measures, beats, steps) and
// wall-clock offsets. Everything here is a pure value computation.
package grid

import (
	"math"
	"time"
)

const (
	DEFAULT_BEATS     = 4
	DEFAULT_SUB_STEPS = 4
	DEFAULT_BPM       = 120

	// 300 BPM
	MinBeatDuration = 200.0
	// 20 BPM
	MaxBeatDuration = 3000.0
)

// Config is the meter and tempo of a loop. BeatDuration is in milliseconds.
type Config struct {
	Beats        int
	SubSteps     int
	BeatDuration float64
}

// DefaultConfig is 4/4 in sixteenth notes at 120 BPM.
func DefaultConfig() Config {
	return Config{
		Beats:        DEFAULT_BEATS,
		SubSteps:     DEFAULT_SUB_STEPS,
		BeatDuration: BeatDurationFromBPM(DEFAULT_BPM),
	}
}

// BeatDurationFromBPM returns the length of one beat in milliseconds.
func BeatDurationFromBPM(bpm float64) float64 {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return BeatDurationFromBPM(DEFAULT_BPM)
	}
	return 60000 / bpm
}

// Grid is a normalized Config with its derived quantities.
type Grid struct {
	beats        int
	subSteps     int
	beatDuration float64
}

// New clamps c into a usable grid. A zero BeatDuration means the default
// tempo.
func New(c Config) Grid {
	g := Grid{
		beats:        max(c.Beats, 1),
		subSteps:     max(c.SubSteps, 1),
		beatDuration: BeatDurationFromBPM(DEFAULT_BPM),
	}
	if c.BeatDuration == 0 {
		return g
	}
	return g.WithBeatDuration(c.BeatDuration)
}

// WithBeatDuration returns a copy of g at a new tempo. Non-finite values
// leave the tempo unchanged.
func (g Grid) WithBeatDuration(ms float64) Grid {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return g
	}
	g.beatDuration = math.Min(math.Max(ms, MinBeatDuration), MaxBeatDuration)
	return g
}

func (g Grid) Config() Config {
	return Config{Beats: g.beats, SubSteps: g.subSteps, BeatDuration: g.beatDuration}
}

func (g Grid) Beats() int            { return g.beats }
func (g Grid) SubSteps() int         { return g.subSteps }
func (g Grid) BeatDuration() float64 { return g.beatDuration }
func (g Grid) BPM() float64          { return 60000 / g.beatDuration }

func (g Grid) StepsPerMeasure() int {
	return g.beats * g.subSteps
}

// StepDuration is in milliseconds.
func (g Grid) StepDuration() float64 {
	return g.beatDuration / float64(g.subSteps)
}

// MeasureDuration is in milliseconds.
func (g Grid) MeasureDuration() float64 {
	return float64(g.beats) * g.beatDuration
}

// Measure is the length of one cycle.
func (g Grid) Measure() time.Duration {
	return g.OffsetForStep(g.StepsPerMeasure())
}

// OffsetForStep is the time of step from the start of the measure. Every
// scheduling decision compares against this value so a timer armed at an
// offset always finds its step due.
func (g Grid) OffsetForStep(step int) time.Duration {
	return msToDuration(float64(step) * g.StepDuration())
}

// NearestStep rounds an offset from the measure start to the nearest step
// without wrapping: past the last half step it returns StepsPerMeasure.
func (g Grid) NearestStep(elapsed time.Duration) int {
	ms := float64(elapsed) / float64(time.Millisecond)
	return int(math.Round(ms / g.StepDuration()))
}

// StepIndexAt quantizes an offset from the measure start to the nearest
// step, wrapping into the measure.
func (g Grid) StepIndexAt(elapsed time.Duration) int {
	n := g.StepsPerMeasure()
	step := g.NearestStep(elapsed)
	return ((step % n) + n) % n
}

// Due returns next such that the steps in [from, next) are due at elapsed.
// next never exceeds StepsPerMeasure.
func (g Grid) Due(from int, elapsed time.Duration) int {
	n := g.StepsPerMeasure()
	next := max(from, 0)
	for next < n && g.OffsetForStep(next) <= elapsed {
		next++
	}
	return next
}

// Clamp forces step into [0, StepsPerMeasure-1].
func (g Grid) Clamp(step int) int {
	return min(max(step, 0), g.StepsPerMeasure()-1)
}

// BeatOf returns the beat a step belongs to.
func (g Grid) BeatOf(step int) int {
	return g.Clamp(step) / g.subSteps
}

func (g Grid) IsBeatStart(step int) bool {
	return step >= 0 && step%g.subSteps == 0
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
