package music

import (
	"github.com/JeanRibes/midi-looper/grid"
)

const STATE_PREALLOCATION = 128

// NoteRecord is one recorded note of the pattern. Steps are measure
// relative and always satisfy 0 <= StartStep <= EndStep < StepsPerMeasure.
type NoteRecord struct {
	StartStep int
	EndStep   int
	OnAction  func()
	OffAction func()

	// set when the record was played live just ahead of its step; that
	// next onset is dropped
	skipNext bool
}

// OneShot reports whether the note starts and ends on the same step, like
// a drum hit.
func (r *NoteRecord) OneShot() bool {
	return r.StartStep == r.EndStep
}

type Phase int

const (
	Onset Phase = iota
	Release
)

func (p Phase) String() string {
	if p == Onset {
		return "onset"
	}
	return "release"
}

// store is the append-only pattern. It is guarded by the Transport's mutex.
type store struct {
	records []*NoteRecord
}

func newStore() store {
	return store{records: make([]*NoteRecord, 0, STATE_PREALLOCATION)}
}

// add clamps the steps into the measure, then appends.
func (s *store) add(g grid.Grid, start, end int, on, off func()) *NoteRecord {
	start = g.Clamp(start)
	end = g.Clamp(end)
	if end < start {
		end = start
	}
	r := &NoteRecord{StartStep: start, EndStep: end, OnAction: on, OffAction: off}
	s.records = append(s.records, r)
	return r
}

// clear drops every record. Records already handed out as sounding notes
// stay valid.
func (s *store) clear() {
	clear(s.records)
	s.records = s.records[:0]
}

func (s *store) len() int {
	return len(s.records)
}

// forEachDue calls fn, in insertion order, for the records starting
// (Onset) or ending (Release) at step.
func (s *store) forEachDue(step int, phase Phase, fn func(*NoteRecord)) {
	for _, r := range s.records {
		switch {
		case phase == Onset && r.StartStep == step:
			fn(r)
		case phase == Release && r.EndStep == step:
			fn(r)
		}
	}
}

func (s *store) snapshot() []NoteRecord {
	out := make([]NoteRecord, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}
