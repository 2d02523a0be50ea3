package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/instrument"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_PATH = "config.yaml"
	MIN_BPM      = 20
	MAX_BPM      = 300
	MAX_BEATS    = 16
	MAX_SUBSTEPS = 8
)

type MIDI struct {
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Channel  uint8  `yaml:"channel"`
	Velocity uint8  `yaml:"velocity"`
}

type Keys struct {
	Root      uint8 `yaml:"root"`
	ChordSize int   `yaml:"chord_size"`
}

// Serial is the pad controller on a serial port. It sends 2-byte frames,
// the first byte being the key code looked up in Keymap.
type Serial struct {
	Port   string         `yaml:"port"`
	Baud   int            `yaml:"baud"`
	Keymap map[int]string `yaml:"keymap"`
}

// Controls maps MIDI control change numbers of the input controller to
// transport commands.
type Controls struct {
	Play   uint8 `yaml:"play"`
	Record uint8 `yaml:"record"`
	Clear  uint8 `yaml:"clear"`
}

type Config struct {
	BPM         float64          `yaml:"bpm"`
	Beats       int              `yaml:"beats"`
	SubSteps    int              `yaml:"sub_steps"`
	LogLevel    string           `yaml:"log_level"`
	ClearOnStop bool             `yaml:"clear_on_stop"`
	MIDI        MIDI             `yaml:"midi"`
	Pads        map[string]uint8 `yaml:"pads"`
	Keys        Keys             `yaml:"keys"`
	Serial      Serial           `yaml:"serial"`
	Controls    Controls         `yaml:"controls"`
}

func Default() *Config {
	return &Config{
		BPM:      grid.DEFAULT_BPM,
		Beats:    grid.DEFAULT_BEATS,
		SubSteps: grid.DEFAULT_SUB_STEPS,
		LogLevel: "info",
		MIDI: MIDI{
			Input:    "LPK25 mk2 MIDI 1",
			Output:   "Synth input port",
			Channel:  instrument.DEFAULT_CHANNEL,
			Velocity: instrument.DEFAULT_VELOCITY,
		},
		Pads: instrument.DefaultPads(),
		Keys: Keys{
			Root:      instrument.DEFAULT_KEY_ROOT,
			ChordSize: instrument.MIN_CHORD_SIZE,
		},
		Serial: Serial{
			Baud:   115200,
			Keymap: map[int]string{},
		},
		Controls: Controls{Play: 20, Record: 21, Clear: 22},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the defaults are returned. The pads and the serial keymap are
// replaced as a whole, not merged with the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	// yaml.v3 merges into non-nil maps
	cfg.Pads = nil
	cfg.Serial.Keymap = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Pads) == 0 {
		cfg.Pads = instrument.DefaultPads()
	}
	if cfg.Serial.Keymap == nil {
		cfg.Serial.Keymap = map[int]string{}
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.BPM < MIN_BPM || c.BPM > MAX_BPM {
		errs = append(errs, fmt.Errorf("bpm %v out of range %d..%d", c.BPM, MIN_BPM, MAX_BPM))
	}
	if c.Beats < 1 || c.Beats > MAX_BEATS {
		errs = append(errs, fmt.Errorf("beats %d out of range 1..%d", c.Beats, MAX_BEATS))
	}
	if c.SubSteps < 1 || c.SubSteps > MAX_SUBSTEPS {
		errs = append(errs, fmt.Errorf("sub_steps %d out of range 1..%d", c.SubSteps, MAX_SUBSTEPS))
	}
	if _, err := charmlog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.MIDI.Channel > 15 {
		errs = append(errs, fmt.Errorf("midi channel %d out of range 0..15", c.MIDI.Channel))
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		errs = append(errs, fmt.Errorf("midi velocity %d out of range 1..127", c.MIDI.Velocity))
	}
	byKey := map[uint8]string{}
	for _, name := range slices.Sorted(maps.Keys(c.Pads)) {
		key := c.Pads[name]
		if key > 127 {
			errs = append(errs, fmt.Errorf("pad %s: key %d out of range", name, key))
		}
		if other, ok := byKey[key]; ok {
			errs = append(errs, fmt.Errorf("pads %s and %s share key %d", other, name, key))
			continue
		}
		byKey[key] = name
	}
	if c.Keys.Root > 127 {
		errs = append(errs, fmt.Errorf("keys root %d out of range", c.Keys.Root))
	}
	if c.Keys.ChordSize < instrument.MIN_CHORD_SIZE || c.Keys.ChordSize > instrument.MAX_CHORD_SIZE {
		errs = append(errs, fmt.Errorf("chord_size %d out of range %d..%d",
			c.Keys.ChordSize, instrument.MIN_CHORD_SIZE, instrument.MAX_CHORD_SIZE))
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial baud %d must be positive", c.Serial.Baud))
	}
	for code, pad := range c.Serial.Keymap {
		if _, ok := c.Pads[pad]; !ok {
			errs = append(errs, fmt.Errorf("serial keymap %d: unknown pad %q", code, pad))
		}
	}
	ctl := c.Controls
	if ctl.Play == ctl.Record || ctl.Play == ctl.Clear || ctl.Record == ctl.Clear {
		errs = append(errs, fmt.Errorf("controls must be distinct: play=%d record=%d clear=%d", ctl.Play, ctl.Record, ctl.Clear))
	}
	return errors.Join(errs...)
}

func (c *Config) Grid() grid.Config {
	return grid.Config{
		Beats:        c.Beats,
		SubSteps:     c.SubSteps,
		BeatDuration: grid.BeatDurationFromBPM(c.BPM),
	}
}

// Level is the parsed log level, info when invalid.
func (c *Config) Level() charmlog.Level {
	lvl, err := charmlog.ParseLevel(c.LogLevel)
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}
