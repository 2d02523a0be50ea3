package instrument

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/JeanRibes/midi-looper/clock"
	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/music"

	"gitlab.com/gomidi/midi/v2"
)

type record struct {
	start, end int
	on, off    func()
}

type fakeLooper struct {
	looping bool
	step    int
	records []record
}

func (f *fakeLooper) IsLooping() bool    { return f.looping }
func (f *fakeLooper) QuantizedStep() int { return f.step }
func (f *fakeLooper) AddNoteRecord(start, end int, on, off func()) {
	f.records = append(f.records, record{start, end, on, off})
}

// wire records every message as "on 60" / "off 60".
type wire struct {
	msgs []string
}

func (w *wire) send(m midi.Message) error {
	var ch, key, vel uint8
	switch {
	case m.GetNoteOn(&ch, &key, &vel):
		w.msgs = append(w.msgs, fmt.Sprintf("on %d", key))
	case m.GetNoteEnd(&ch, &key):
		w.msgs = append(w.msgs, fmt.Sprintf("off %d", key))
	}
	return nil
}

func (w *wire) take() []string {
	out := w.msgs
	w.msgs = nil
	return out
}

func TestBuildChord(t *testing.T) {
	tests := []struct {
		root, size int
		want       []int
	}{
		{60, 1, []int{60}},
		{60, 0, []int{60}},
		{60, 2, []int{60, 64}},
		{60, 3, []int{60, 64, 67}},
		{62, 3, []int{62, 65, 69}}, // ii minor
		{71, 3, []int{71, 74, 77}}, // vii diminished
		{61, 3, []int{61, 65, 68}}, // C# borrows I
		{48, 3, []int{48, 52, 55}}, // other octave
		{60, 4, []int{60, 64, 67, 72}},
		{60, 5, []int{48, 60, 64, 67, 72}},
		{60, 6, []int{48, 52, 60, 64, 67, 72}},
		{60, 7, []int{48, 52, 60, 64, 67, 72, 76}},
		{69, 7, []int{57, 60, 69, 72, 76, 81, 84}}, // vi minor
		{5, 5, []int{5, 9, 12, 17}},                // below 0 dropped
	}
	for _, tt := range tests {
		got := BuildChord(tt.root, tt.size, DEFAULT_KEY_ROOT)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("BuildChord(%d, %d): got %v, want %v", tt.root, tt.size, got, tt.want)
		}
	}
}

func TestDrumKitHit(t *testing.T) {
	t.Run("stopped plays without recording", func(t *testing.T) {
		l := &fakeLooper{step: music.NoStep}
		w := &wire{}
		d := NewDrumKit(l, w.send)
		if err := d.Hit("snare"); err != nil {
			t.Fatal(err)
		}
		if got, want := w.take(), []string{"on 38", "off 38"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
		if len(l.records) != 0 {
			t.Errorf("recorded %d notes while stopped", len(l.records))
		}
	})

	t.Run("looping records a one-shot", func(t *testing.T) {
		l := &fakeLooper{looping: true, step: 5}
		w := &wire{}
		d := NewDrumKit(l, w.send, WithPads(map[string]uint8{"kick": 35}))
		if err := d.Hit("kick"); err != nil {
			t.Fatal(err)
		}
		w.take()
		if len(l.records) != 1 {
			t.Fatalf("records: got %d, want 1", len(l.records))
		}
		r := l.records[0]
		if r.start != 5 || r.end != 5 {
			t.Errorf("steps: got %d..%d, want 5..5", r.start, r.end)
		}
		r.on()
		r.off()
		if got, want := w.take(), []string{"on 35", "off 35"}; !reflect.DeepEqual(got, want) {
			t.Errorf("replay: got %v, want %v", got, want)
		}
	})

	t.Run("unknown pad", func(t *testing.T) {
		d := NewDrumKit(&fakeLooper{}, (&wire{}).send)
		if err := d.Hit("cowbell"); err == nil {
			t.Errorf("expected an error")
		}
	})

	t.Run("pads sorted", func(t *testing.T) {
		d := NewDrumKit(&fakeLooper{}, (&wire{}).send)
		if got, want := d.Pads(), []string{"clap", "hihat", "kick", "snare"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestKeysPressRelease(t *testing.T) {
	l := &fakeLooper{looping: true, step: 2}
	w := &wire{}
	k := NewKeys(l, w.send)

	k.Press(60)
	l.step = 6
	k.Release(60)

	if got, want := w.take(), []string{"on 60", "off 60"}; !reflect.DeepEqual(got, want) {
		t.Errorf("live: got %v, want %v", got, want)
	}
	if len(l.records) != 1 || l.records[0].start != 2 || l.records[0].end != 6 {
		t.Fatalf("records: got %+v", l.records)
	}
	if _, held := k.Held(); held {
		t.Errorf("still held after release")
	}
}

func TestKeysLegato(t *testing.T) {
	l := &fakeLooper{looping: true, step: 0}
	w := &wire{}
	k := NewKeys(l, w.send)

	k.Press(60)
	l.step = 4
	k.Press(64) // slide
	l.step = 5
	k.Release(60) // stale release of the key slid away from
	l.step = 8
	k.Release(64)

	if got, want := w.take(), []string{"on 60", "off 60", "on 64", "off 64"}; !reflect.DeepEqual(got, want) {
		t.Errorf("live: got %v, want %v", got, want)
	}
	if len(l.records) != 2 {
		t.Fatalf("records: got %d, want 2", len(l.records))
	}
	if r := l.records[0]; r.start != 0 || r.end != 4 {
		t.Errorf("first: got %d..%d, want 0..4", r.start, r.end)
	}
	if r := l.records[1]; r.start != 4 || r.end != 8 {
		t.Errorf("second: got %d..%d, want 4..8", r.start, r.end)
	}
}

func TestKeysChord(t *testing.T) {
	l := &fakeLooper{looping: true, step: 1}
	w := &wire{}
	k := NewKeys(l, w.send, WithChordSize(3))

	k.Press(62)
	k.SetChordSize(1) // applies to the next press only
	k.Release(62)

	want := []string{"on 62", "on 65", "on 69", "off 62", "off 65", "off 69"}
	if got := w.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("live: got %v, want %v", got, want)
	}
	l.records[0].on()
	if got := w.take(); !reflect.DeepEqual(got, want[:3]) {
		t.Errorf("replay: got %v, want %v", got, want[:3])
	}
	if got := NewKeys(l, w.send, WithChordSize(12)).ChordSize(); got != MAX_CHORD_SIZE {
		t.Errorf("chord size clamp: got %d, want %d", got, MAX_CHORD_SIZE)
	}
}

func TestKeysNotRecorded(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		l := &fakeLooper{step: music.NoStep}
		w := &wire{}
		k := NewKeys(l, w.send)
		k.Press(60)
		k.Release(60)
		if len(l.records) != 0 {
			t.Errorf("recorded while stopped")
		}
		if got := len(w.take()); got != 2 {
			t.Errorf("messages: got %d, want 2", got)
		}
	})

	t.Run("pressed before start", func(t *testing.T) {
		l := &fakeLooper{step: music.NoStep}
		k := NewKeys(l, (&wire{}).send)
		k.Press(60)
		l.looping, l.step = true, 3
		k.Release(60)
		if len(l.records) != 0 {
			t.Errorf("recorded a note without a start step")
		}
	})

	t.Run("cancel", func(t *testing.T) {
		l := &fakeLooper{looping: true, step: 3}
		w := &wire{}
		k := NewKeys(l, w.send)
		k.Press(60)
		k.Cancel()
		k.Release(60)
		if len(l.records) != 0 {
			t.Errorf("recorded a cancelled note")
		}
		if got, want := w.take(), []string{"on 60", "off 60"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestDrumKitWithTransport(t *testing.T) {
	tr := music.NewTransport(grid.DefaultConfig())
	tr.Start()
	defer tr.Stop()
	tr.SetRecording(true)

	d := NewDrumKit(tr, func(midi.Message) error { return nil })
	if err := d.Hit("kick"); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 1 {
		t.Errorf("transport records: got %d, want 1", tr.Len())
	}
}

// newRecordingTransport starts a transport at 120 bpm, 125ms per step,
// recording and driven by c.
func newRecordingTransport(c *clock.Manual) *music.Transport {
	tr := music.NewTransport(grid.DefaultConfig(), music.WithClock(c))
	tr.Start()
	tr.SetRecording(true)
	c.Advance(0)
	return tr
}

func TestDrumKitLateHitPlaysOnce(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	tr := newRecordingTransport(c)
	defer tr.Stop()
	w := &wire{}
	d := NewDrumKit(tr, w.send)

	c.Advance(320 * time.Millisecond) // closer to step 3 than step 2
	if err := d.Hit("kick"); err != nil {
		t.Fatal(err)
	}
	c.Advance(60 * time.Millisecond) // step 3
	if got, want := w.take(), []string{"on 36", "off 36"}; !reflect.DeepEqual(got, want) {
		t.Errorf("same pass: got %v, want %v", got, want)
	}
	c.Advance(2 * time.Second) // step 3, next cycle
	if got, want := w.take(), []string{"on 36", "off 36"}; !reflect.DeepEqual(got, want) {
		t.Errorf("next pass: got %v, want %v", got, want)
	}
}

func TestKeysHeldAcrossSeam(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	tr := newRecordingTransport(c)
	defer tr.Stop()
	k := NewKeys(tr, (&wire{}).send)

	c.Advance(14 * 125 * time.Millisecond)
	k.Press(60)
	c.Advance(4 * 125 * time.Millisecond) // step 2 of the next cycle
	k.Release(60)

	got := tr.Records()
	if len(got) != 1 || got[0].StartStep != 14 || got[0].EndStep != 15 {
		t.Errorf("records: got %+v, want one note on steps 14..15", got)
	}
}
