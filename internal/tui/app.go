// Package tui is the terminal popup: connection status, the Important
// domain list, and the result of the last command.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabheinzel/internal/daemon"
	"github.com/lotas/tabheinzel/internal/export"
	"github.com/lotas/tabheinzel/internal/server"
)

// Commander runs popup commands. *daemon.Daemon satisfies it.
type Commander interface {
	Execute(ctx context.Context, cmd server.Command) daemon.Result
}

const statusPoll = time.Second

// --- Messages ---

type resultMsg struct {
	action string
	res    daemon.Result
}

type domainsMsg struct {
	hosts []string
	err   error
}

type tickMsg struct{}

// --- Command helpers ---

func run(c Commander, cmd server.Command) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{action: cmd.Action, res: c.Execute(context.Background(), cmd)}
	}
}

func loadDomains(c Commander) tea.Cmd {
	return func() tea.Msg {
		res := c.Execute(context.Background(), server.Command{Action: daemon.ActionListDomains})
		if res.Err != nil {
			return domainsMsg{err: res.Err}
		}
		return domainsMsg{hosts: export.ParseDomains(res.Content)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(statusPoll, func(time.Time) tea.Msg { return tickMsg{} })
}

// --- Model ---

type Model struct {
	commander Commander
	connected func() bool
	port      int

	domains []string
	cursor  int

	status    string
	statusErr bool
	busy      bool
	online    bool

	width  int
	height int
}

// NewModel builds the popup. connected reports the extension link state.
func NewModel(c Commander, connected func() bool, port int) Model {
	return Model{commander: c, connected: connected, port: port}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadDomains(m.commander), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.connected != nil {
			m.online = m.connected()
		}
		return m, tick()

	case domainsMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.domains = msg.hosts
		if m.cursor >= len(m.domains) {
			m.cursor = max(len(m.domains)-1, 0)
		}
		return m, nil

	case resultMsg:
		m.busy = false
		if msg.res.Err != nil {
			m.setStatus("Error: "+msg.res.Err.Error(), true)
		} else {
			m.setStatus(msg.res.Summary, false)
		}
		return m, loadDomains(m.commander)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.domains)-1 {
				m.cursor++
			}
		case "o":
			return m.start(server.Command{Action: daemon.ActionOrganize}, "Organizing tabs...")
		case "m":
			return m.start(server.Command{Action: daemon.ActionToggleImportant}, "Updating Important...")
		case "x":
			return m.start(server.Command{Action: daemon.ActionCloseOthers}, "Closing tabs...")
		case "d":
			if len(m.domains) == 0 {
				return m, nil
			}
			host := m.domains[m.cursor]
			return m.start(server.Command{Action: daemon.ActionRemoveDomain, Content: host}, "Removing "+host+"...")
		case "r":
			return m, loadDomains(m.commander)
		}
		return m, nil
	}
	return m, nil
}

// start runs cmd unless another popup command is still in flight.
func (m Model) start(cmd server.Command, pending string) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.setStatus(pending, false)
	return m, run(m.commander, cmd)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	onStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Tab Heinzelmann 3000") + "\n")

	if m.online {
		b.WriteString(onStyle.Render(fmt.Sprintf("  ● connected on :%d", m.port)) + "\n\n")
	} else {
		b.WriteString(offStyle.Render(fmt.Sprintf("  ○ waiting for extension on :%d", m.port)) + "\n\n")
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Important domains (%d)", len(m.domains))) + "\n")
	if len(m.domains) == 0 {
		b.WriteString(offStyle.Render("  none yet, press m on a tab") + "\n")
	}
	for i, host := range m.domains {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+host) + "\n")
		} else {
			b.WriteString(normalStyle.Render("  "+host) + "\n")
		}
	}

	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errStyle
		}
		b.WriteString("\n" + style.Render("  "+m.status) + "\n")
	}

	b.WriteString("\n" + hintStyle.Render("o organize · m toggle Important · x close others · d remove · jk move · q quit"))

	box := boxStyle.Render(b.String())
	if m.width == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
