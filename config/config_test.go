package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/instrument"

	charmlog "github.com/charmbracelet/log"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BPM != grid.DEFAULT_BPM || cfg.Beats != grid.DEFAULT_BEATS {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := write(t, `
bpm: 90
sub_steps: 2
log_level: debug
clear_on_stop: true
midi:
  output: "FluidSynth"
pads:
  kick: 35
  snare: 38
keys:
  chord_size: 3
serial:
  port: /dev/ttyUSB0
  keymap:
    30: kick
    31: snare
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.BPM != 90 || cfg.Beats != grid.DEFAULT_BEATS || cfg.SubSteps != 2 {
		t.Errorf("meter: got bpm=%v beats=%d sub_steps=%d", cfg.BPM, cfg.Beats, cfg.SubSteps)
	}
	if !cfg.ClearOnStop {
		t.Errorf("clear_on_stop not read")
	}
	if cfg.MIDI.Output != "FluidSynth" || cfg.MIDI.Velocity != 100 {
		t.Errorf("midi: got %+v", cfg.MIDI)
	}
	if want := map[string]uint8{"kick": 35, "snare": 38}; !reflect.DeepEqual(cfg.Pads, want) {
		t.Errorf("pads: got %v, want %v", cfg.Pads, want)
	}
	if want := map[int]string{30: "kick", 31: "snare"}; !reflect.DeepEqual(cfg.Serial.Keymap, want) || cfg.Serial.Baud != 115200 {
		t.Errorf("serial: got %+v", cfg.Serial)
	}
	if cfg.Level() != charmlog.DebugLevel {
		t.Errorf("level: got %v", cfg.Level())
	}
	g := grid.New(cfg.Grid())
	if g.StepsPerMeasure() != 8 || math.Abs(g.BPM()-90) > 1e-9 {
		t.Errorf("grid: got %d steps at %v bpm", g.StepsPerMeasure(), g.BPM())
	}
}

func TestLoadKeepsDefaultPadsWhenOmitted(t *testing.T) {
	cfg, err := Load(write(t, "bpm: 100\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Pads, instrument.DefaultPads()) {
		t.Errorf("pads: got %v, want the defaults", cfg.Pads)
	}
	if cfg.Serial.Keymap == nil || len(cfg.Serial.Keymap) != 0 {
		t.Errorf("keymap: got %v, want empty", cfg.Serial.Keymap)
	}
}

func TestLoadBadYAML(t *testing.T) {
	if _, err := Load(write(t, "bpm: [")); err == nil {
		t.Errorf("expected a parse error")
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.BPM = 1000
	cfg.Beats = 0
	cfg.LogLevel = "loud"
	cfg.Keys.ChordSize = 9
	cfg.Serial.Keymap = map[int]string{7: "cowbell"}
	cfg.Controls.Clear = cfg.Controls.Play
	cfg.Pads["rimshot"] = cfg.Pads["snare"]

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"bpm", "beats", "log_level", "chord_size", "cowbell", "distinct", "rimshot and snare share key 38"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.BPM = 100
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM != 100 || got.MIDI.Output != cfg.MIDI.Output {
		t.Errorf("got %+v", got)
	}
}
