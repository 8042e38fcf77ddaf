// Package tui is the terminal front end of the translation engine: a
// transcript view with live turn progress, an activity indicator and
// playback-speed controls.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/koscakluka/tolk-core/core"
)

// Speed bounds enforced by the UI; the scheduler itself tolerates any
// positive multiplier.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	speedStep = 0.1
)

// engine is the slice of the orchestrator the model drives.
type engine interface {
	Start(ctx context.Context, opts ...orchestration.StartOption) error
	Stop()
	State() orchestration.State
	SetSpeed(speed float64)
	Speed() float64
	History() []orchestration.TranscriptEntry
}

// Model is the bubbletea application state.
type Model struct {
	engine engine
	ctx    context.Context

	// send delivers engine callbacks into the bubbletea event loop; wired
	// via SetSender once the program exists.
	send func(msg tea.Msg)

	width  int
	height int

	viewport      viewport.Model
	viewportReady bool
	spinner       spinner.Model

	state         orchestration.State
	speaking      bool
	partialInput  string
	partialOutput string
	history       []orchestration.TranscriptEntry
	speed         float64
	err           error
}

func New(ctx context.Context, e engine) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &Model{
		engine:  e,
		ctx:     ctx,
		spinner: s,
		state:   orchestration.StateIdle,
		speed:   e.Speed(),
		send:    func(tea.Msg) {},
	}
}

// SetSender wires the running program's Send so engine callbacks reach
// Update. Call it right after tea.NewProgram, before the engine starts.
func (m *Model) SetSender(send func(msg tea.Msg)) {
	if send == nil {
		return
	}
	m.send = send
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateChangedMsg:
		m.state = msg.State
		if msg.State == orchestration.StateIdle || msg.State == orchestration.StateError {
			m.speaking = false
			m.partialInput = ""
			m.partialOutput = ""
		}
		if msg.State == orchestration.StateConnected {
			m.err = nil
		}
		return m, nil

	case ActivityChangedMsg:
		m.speaking = msg.IsActive
		return m, nil

	case PartialInputMsg:
		m.partialInput = msg.Text
		m.refreshViewport()
		return m, nil

	case PartialOutputMsg:
		m.partialOutput = msg.Text
		m.refreshViewport()
		return m, nil

	case TurnCommittedMsg:
		m.history = append(m.history, msg.Pair...)
		m.refreshViewport()
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.engine.Stop()
		return m, tea.Quit

	case "s":
		switch m.state {
		case orchestration.StateIdle, orchestration.StateError:
			return m, m.startSession()
		case orchestration.StateConnected, orchestration.StateConnecting:
			m.engine.Stop()
		}
		return m, nil

	case "+", "=":
		m.setSpeed(m.speed + speedStep)
		return m, nil

	case "-":
		m.setSpeed(m.speed - speedStep)
		return m, nil
	}

	if m.viewportReady {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// setSpeed clamps the multiplier to the UI's range before handing it to the
// engine.
func (m *Model) setSpeed(speed float64) {
	if speed < MinSpeed {
		speed = MinSpeed
	} else if speed > MaxSpeed {
		speed = MaxSpeed
	}
	m.speed = speed
	m.engine.SetSpeed(speed)
}

func (m *Model) startSession() tea.Cmd {
	m.state = orchestration.StateConnecting
	m.err = nil

	return func() tea.Msg {
		err := m.engine.Start(m.ctx,
			orchestration.WithStateChangedCallback(func(state orchestration.State) {
				m.send(StateChangedMsg{State: state})
			}),
			orchestration.WithActivityChangedCallback(func(isActive bool) {
				m.send(ActivityChangedMsg{IsActive: isActive})
			}),
			orchestration.WithPartialInputTextCallback(func(text string) {
				m.send(PartialInputMsg{Text: text})
			}),
			orchestration.WithPartialOutputTextCallback(func(text string) {
				m.send(PartialOutputMsg{Text: text})
			}),
			orchestration.WithTurnCommittedCallback(func(pair []orchestration.TranscriptEntry) {
				m.send(TurnCommittedMsg{Pair: pair})
			}),
			orchestration.WithErrorCallback(func(err error) {
				m.send(ErrorMsg{Err: err})
			}),
		)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}
