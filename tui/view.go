package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/tolk-core/core"
)

const (
	headerLines = 2
	footerLines = 2
	// liveLines reserves room for the in-progress turn under the history.
	liveLines = 3

	minViewportHeight = 3
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	statusStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	modelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	liveStyle    = lipgloss.NewStyle().Italic(true).Faint(true)
	activeDot    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("●")
	idleDot      = lipgloss.NewStyle().Faint(true).Render("○")
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderTranscript(),
		m.renderLive(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("tolk")

	var status string
	switch m.state {
	case orchestration.StateConnecting:
		status = m.spinner.View() + " connecting"
	case orchestration.StateConnected:
		indicator := idleDot
		if m.speaking {
			indicator = activeDot
		}
		status = fmt.Sprintf("%s translating  %.1fx", indicator, m.speed)
	case orchestration.StateError:
		status = errorStyle.Render("error")
	default:
		status = "idle"
	}

	return title + "  " + statusStyle.Render(status) + "\n"
}

func (m *Model) renderTranscript() string {
	if !m.viewportReady {
		return "initializing..."
	}
	return m.viewport.View()
}

func (m *Model) renderLive() string {
	width := m.contentWidth()

	var lines []string
	if m.partialInput != "" {
		lines = append(lines, liveStyle.Render(wordwrap.String("… "+m.partialInput, width)))
	}
	if m.partialOutput != "" {
		lines = append(lines, liveStyle.Render(wordwrap.String("→ "+m.partialOutput, width)))
	}
	for len(lines) < liveLines-1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	if m.err != nil {
		return errorStyle.Render(wordwrap.String(m.err.Error(), m.contentWidth())) + "\n" +
			helpStyle.Render("s start/stop · +/- speed · q quit")
	}
	return "\n" + helpStyle.Render("s start/stop · +/- speed · ↑/↓ scroll · q quit")
}

// transcriptContent renders the committed history plus nothing else; the
// live turn is drawn separately so scrollback stays stable.
func (m *Model) transcriptContent() string {
	width := m.contentWidth()

	var b strings.Builder
	for _, entry := range m.history {
		prefix := speakerStyle.Render("you ")
		style := lipgloss.NewStyle()
		if entry.Speaker == orchestration.SpeakerModel {
			prefix = modelStyle.Render("  → ")
			style = modelStyle
		}
		b.WriteString(prefix + style.Render(wordwrap.String(entry.Text, width-4)) + "\n")
		if entry.Speaker == orchestration.SpeakerModel {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) contentWidth() int {
	if m.width <= 4 {
		return 80
	}
	return m.width - 2
}

func (m *Model) resizeViewport() {
	height := m.height - headerLines - footerLines - liveLines
	if height < minViewportHeight {
		height = minViewportHeight
	}

	if !m.viewportReady {
		m.viewport = viewport.New(m.width, height)
		m.viewportReady = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.viewportReady {
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcriptContent())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
