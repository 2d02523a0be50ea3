package main

import (
	"context"

	"github.com/JeanRibes/midi-looper/config"
	. "github.com/JeanRibes/midi-looper/shared"

	"github.com/albenik/go-serial/v2"
	charmlog "github.com/charmbracelet/log"
)

// padDecoder turns the pad controller's 2-byte frames into pad hits. The
// high bit of the status byte is set on release; the second byte is the key
// code.
type padDecoder struct {
	keymap map[int]string
	held   [256]bool
	frame  []byte
}

func newPadDecoder(keymap map[int]string) *padDecoder {
	return &padDecoder{keymap: keymap, frame: make([]byte, 0, 2)}
}

// feed consumes raw bytes and returns the pads pressed. Frames may be split
// across reads.
func (d *padDecoder) feed(data []byte) []string {
	var hits []string
	for _, b := range data {
		d.frame = append(d.frame, b)
		if len(d.frame) < 2 {
			continue
		}
		status, code := d.frame[0], d.frame[1]
		d.frame = d.frame[:0]

		pressed := status>>7 == 0
		if d.held[code] == pressed {
			continue
		}
		d.held[code] = pressed
		if !pressed {
			continue
		}
		if pad, ok := d.keymap[int(code)]; ok {
			hits = append(hits, pad)
		}
	}
	return hits
}

// readSerial posts a Pad message for every hit on the serial pad controller
// until ctx is done.
func readSerial(ctx context.Context, cfg config.Serial, SinkLoop chan Message) error {
	logger := charmlog.FromContext(ctx).WithPrefix("serial")
	port, err := serial.Open(cfg.Port, serial.WithBaudrate(cfg.Baud))
	if err != nil {
		return err
	}
	// closing the port unblocks Read
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("reset input buffer", "err", err)
	}
	logger.Info("listening", "port", cfg.Port, "baud", cfg.Baud, "keys", len(cfg.Keymap))

	dec := newPadDecoder(cfg.Keymap)
	buf := make([]byte, 64)
	for {
		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, pad := range dec.feed(buf[:n]) {
			logger.Debug("hit", "pad", pad)
			Post(SinkLoop, Message{Type: Pad, String: pad})
		}
	}
}
