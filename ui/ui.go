package ui

import (
	"fmt"
	"strings"

	"github.com/JeanRibes/midi-looper/grid"
	"github.com/JeanRibes/midi-looper/music"
	. "github.com/JeanRibes/midi-looper/shared"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	beatStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#aaa"))
	playheadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Bold(true)
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#f33")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f66"))
)

const (
	TEMPO_STEP = 5
	MAX_ERRORS = 3
)

// padKeys trigger the pads in sorted order.
var padKeys = []string{"a", "s", "d", "f", "g", "h", "j", "k", "l"}

type busMsg Message

// Model is the terminal front end. It renders what the control loop
// reports on SinkUI and turns key presses into SinkLoop messages.
type Model struct {
	sinkUI   <-chan Message
	sinkLoop chan<- Message

	grid      grid.Grid
	pads      []string
	step      int
	looping   bool
	recording bool
	bpm       int
	notes     int
	chordSize int
	lastPad   string
	errors    []string
	quitting  bool
}

func NewModel(g grid.Grid, pads []string, sinkUI <-chan Message, sinkLoop chan<- Message) Model {
	return Model{
		sinkUI:    sinkUI,
		sinkLoop:  sinkLoop,
		grid:      g,
		pads:      pads,
		step:      music.NoStep,
		bpm:       int(g.BPM() + 0.5),
		chordSize: 1,
	}
}

func listen(sinkUI <-chan Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sinkUI
		if !ok {
			return tea.Quit()
		}
		return busMsg(msg)
	}
}

func (m Model) Init() tea.Cmd {
	return listen(m.sinkUI)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg.String())
	case busMsg:
		m.apply(Message(msg))
		return m, listen(m.sinkUI)
	}
	return m, nil
}

func (m Model) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "q", "ctrl+c":
		m.quitting = true
		Post(m.sinkLoop, Message{Type: Quit})
		return m, tea.Quit
	case " ", "p":
		Post(m.sinkLoop, Message{Type: PlayPause})
	case "r":
		Post(m.sinkLoop, Message{Type: Record, Boolean: !m.recording})
	case "c":
		Post(m.sinkLoop, Message{Type: ClearEvents})
	case "+", "=":
		Post(m.sinkLoop, Message{Type: Tempo, Number: m.bpm + TEMPO_STEP})
	case "-", "_":
		Post(m.sinkLoop, Message{Type: Tempo, Number: m.bpm - TEMPO_STEP})
	case "1", "2", "3", "4", "5", "6", "7":
		Post(m.sinkLoop, Message{Type: ChordSize, Number: int(k[0] - '0')})
	case "esc":
		m.errors = nil
	default:
		for i, pk := range padKeys {
			if k == pk && i < len(m.pads) {
				Post(m.sinkLoop, Message{Type: Pad, String: m.pads[i]})
				m.lastPad = m.pads[i]
			}
		}
	}
	return m, nil
}

func (m *Model) apply(msg Message) {
	switch msg.Type {
	case StepNotify:
		m.step = msg.Number
	case LoopNotify:
		m.looping = msg.Boolean
		if !m.looping {
			m.recording = false
			m.step = music.NoStep
		}
	case RecordNotify:
		m.recording = msg.Boolean
	case TempoNotify:
		m.bpm = msg.Number
	case PatternNotify:
		m.notes = msg.Number
	case ChordSize:
		m.chordSize = msg.Number
	case Error:
		m.errors = append(m.errors, msg.String)
		if len(m.errors) > MAX_ERRORS {
			m.errors = m.errors[len(m.errors)-MAX_ERRORS:]
		}
	case Quit:
		m.quitting = true
	}
}

// Steps renders the step indicator: one dot per step, beats set apart,
// the current step highlighted.
func (m Model) Steps() string {
	var b strings.Builder
	for i := 0; i < m.grid.StepsPerMeasure(); i++ {
		if i > 0 && m.grid.IsBeatStart(i) {
			b.WriteString(" ")
		}
		switch {
		case i == m.step && m.recording:
			b.WriteString(recStyle.Render("●"))
		case i == m.step:
			b.WriteString(playheadStyle.Render("●"))
		case m.grid.IsBeatStart(i):
			b.WriteString(beatStyle.Render("○"))
		default:
			b.WriteString(dimStyle.Render("○"))
		}
	}
	return b.String()
}

func (m Model) status() string {
	state := "STOP"
	switch {
	case m.looping && m.recording:
		state = recStyle.Render("REC ")
	case m.looping:
		state = "PLAY"
	}
	return fmt.Sprintf("%s  %3dbpm  %d/%d  notes:%d  chord:%d", state, m.bpm,
		m.grid.Beats(), m.grid.SubSteps(), m.notes, m.chordSize)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString("midi-looper  " + m.status() + "\n\n")
	b.WriteString(m.Steps() + "\n\n")

	var pads []string
	for i, name := range m.pads {
		if i >= len(padKeys) {
			break
		}
		label := padKeys[i] + ":" + name
		if name == m.lastPad {
			label = beatStyle.Render(label)
		}
		pads = append(pads, label)
	}
	b.WriteString(strings.Join(pads, "  ") + "\n")
	b.WriteString(statusStyle.Render("space:play  r:record  c:clear  +/-:tempo  1-7:chord  q:quit") + "\n")
	for _, e := range m.errors {
		b.WriteString(errorStyle.Render(e) + "\n")
	}
	return b.String()
}
