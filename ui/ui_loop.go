package ui

import (
	"context"
	"errors"

	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/music"
	. "github.com/JeanRibes/midi-looper/shared"

	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
)

// Indicator forwards the transport's current step to the UI. Steps are
// dropped when the UI lags behind.
type Indicator struct {
	SinkUI chan<- Message
}

var _ music.Indicator = Indicator{}

func (i Indicator) UpdateStep(step int) {
	Post(i.SinkUI, Message{Type: StepNotify, Number: step})
}

// Run shows the terminal UI until the user quits or ctx is done, then
// cancels ctx.
func Run(ctx context.Context, cancel context.CancelFunc, g grid.Grid, pads []string, SinkUI chan Message, SinkLoop chan Message) error {
	logger := charmlog.FromContext(ctx).WithPrefix("UI")
	defer cancel()

	p := tea.NewProgram(NewModel(g, pads, SinkUI, SinkLoop), tea.WithContext(ctx), tea.WithAltScreen())
	logger.Debug("starting")
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		logger.Debug("context done, quitting")
		return nil
	}
	return err
}
