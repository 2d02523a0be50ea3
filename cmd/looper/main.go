package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/JeanRibes/midi-looper/config"
	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/instrument"
	"github.com/JeanRibes/midi-looper/music"
	. "github.com/JeanRibes/midi-looper/shared"
	"github.com/JeanRibes/midi-looper/ui"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	configPath := flag.String("config", config.DEFAULT_PATH, "path of the YAML config file")
	bpm := flag.Float64("bpm", 0, "tempo, overrides the config file")
	inPort := flag.String("input", "", "MIDI input port name, overrides the config file")
	outPort := flag.String("output", "", "MIDI output port name, overrides the config file")
	logFile := flag.String("log", "looper.log", "log file, - for stderr")
	headless := flag.Bool("headless", false, "no terminal UI, drive the looper from MIDI and serial only")
	writeConfig := flag.Bool("write-config", false, "write the effective config to -config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	he(err)
	if *bpm != 0 {
		cfg.BPM = *bpm
	}
	if *inPort != "" {
		cfg.MIDI.Input = *inPort
	}
	if *outPort != "" {
		cfg.MIDI.Output = *outPort
	}
	he(cfg.Validate())
	if *writeConfig {
		he(cfg.Save(*configPath))
		return
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "-" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		he(err)
		defer f.Close()
		logOut = f
	}
	logger := charmlog.NewWithOptions(logOut, charmlog.Options{
		Level:           cfg.Level(),
		ReportCaller:    cfg.Level() == charmlog.DebugLevel,
		ReportTimestamp: true,
		Prefix:          "loop",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = charmlog.WithContext(ctx, logger)

	defer midi.CloseDriver()
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		logger.Fatal("rtmidi driver not registered")
	}
	in, err := midi.FindInPort(cfg.MIDI.Input)
	if err != nil {
		logger.Warn("can't find input, opening one", "name", cfg.MIDI.Input)
		in, err = drv.OpenVirtualIn("midi-looper")
		he(err)
	}
	out, err := midi.FindOutPort(cfg.MIDI.Output)
	if err != nil {
		logger.Warn("can't find output, opening one", "name", cfg.MIDI.Output)
		out, err = drv.OpenVirtualOut("midi-looper")
		he(err)
	}
	logger.Info("connecting to", "input", in.String(), "output", out.String())
	send, err := midi.SendTo(out)
	he(err)

	SinkUI := make(chan Message, SINK_SIZE)
	SinkLoop := make(chan Message, SINK_SIZE)

	g := grid.New(cfg.Grid())
	transport := music.NewTransport(g.Config(),
		music.WithIndicator(ui.Indicator{SinkUI: SinkUI}),
		music.WithLogger(logger.WithPrefix("transport")),
	)
	drums := instrument.NewDrumKit(transport, send,
		instrument.WithPads(cfg.Pads),
		instrument.WithDrumChannel(cfg.MIDI.Channel),
		instrument.WithDrumVelocity(cfg.MIDI.Velocity),
		instrument.WithDrumLogger(logger.WithPrefix("drums")),
	)
	keys := instrument.NewKeys(transport, send,
		instrument.WithKeyRoot(int(cfg.Keys.Root)),
		instrument.WithChordSize(cfg.Keys.ChordSize),
		instrument.WithKeysChannel(cfg.MIDI.Channel),
		instrument.WithKeysVelocity(cfg.MIDI.Velocity),
		instrument.WithKeysLogger(logger.WithPrefix("keys")),
	)
	a := newApp(cfg, transport, drums, keys, SinkUI, SinkLoop, logger)

	stop, err := midi.ListenTo(in, func(msg midi.Message, absms int32) {
		a.onMIDI(msg)
	})
	if err != nil {
		logger.Fatal("can't listen to input", "err", err)
	}
	defer stop()

	if cfg.Serial.Port != "" {
		go func() {
			if err := readSerial(ctx, cfg.Serial, SinkLoop); err != nil {
				logger.Error("serial pads stopped", "err", err)
				Post(SinkUI, Errorf("serial pads: %v", err))
			}
		}()
	}

	go func() {
		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, os.Interrupt)
		select {
		case <-signalCh:
			logger.Info("interrupt")
			cancel()
		case <-ctx.Done():
		}
	}()

	done := make(chan struct{})
	go func() {
		a.Run(ctx, cancel)
		close(done)
	}()

	if *headless {
		<-ctx.Done()
	} else if err := ui.Run(ctx, cancel, g, drums.Pads(), SinkUI, SinkLoop); err != nil {
		logger.Error("UI", "err", err)
	}
	cancel()
	<-done
}

func he(err error) {
	if err != nil {
		charmlog.Fatal(err)
	}
}
