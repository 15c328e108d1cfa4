// Package ui renders the in-room terminal session. The model is fed by
// the signaling goroutines through tea messages and never touches the
// network itself.
package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages delivered from outside the UI loop.
type (
	PeerJoinedMsg   struct{ ID string }
	PeerLeftMsg     struct{ ID string }
	ChatMsg         struct{ Sender, Text string }
	ScreenShareMsg  struct{ Sender string }
	StatusMsg       struct{ Text string }
	DisconnectedMsg struct{ Err error }
)

// SessionActions is what the model needs from the session controller.
type SessionActions interface {
	SendChat(text string) error
	StartScreenShare() error
	StopScreenShare()
	LeaveRoom()
}

const maxEntries = 200

// Model is the bubbletea model for an active room session.
type Model struct {
	room    string
	actions SessionActions

	input   textinput.Model
	entries []string
	peer    string
	sharing bool
	status  string
	err     error
	width   int

	quitting bool
}

// NewModel builds the session model for a room.
func NewModel(room string, actions SessionActions) Model {
	input := textinput.New()
	input.Placeholder = "type a message"
	input.CharLimit = 512
	input.Focus()

	return Model{
		room:    room,
		actions: actions,
		input:   input,
		status:  IconWaiting + " waiting for a peer to join",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.actions.LeaveRoom()
			m.quitting = true
			return m, tea.Quit

		case "ctrl+s":
			if m.sharing {
				m.actions.StopScreenShare()
				m.sharing = false
				m.status = IconScreen + " screen share stopped"
			} else if err := m.actions.StartScreenShare(); err != nil {
				m.status = WarningStyle.Render(IconWarning + " " + err.Error())
			} else {
				m.sharing = true
				m.status = IconScreen + " sharing your screen"
			}
			return m, nil

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if err := m.actions.SendChat(text); err != nil {
				m.status = WarningStyle.Render(IconWarning + " " + err.Error())
				return m, nil
			}
			m.appendEntry(SelfStyle.Render("you") + " " + text)
			m.input.Reset()
			return m, nil
		}

	case PeerJoinedMsg:
		m.peer = msg.ID
		m.status = SuccessStyle.Render(IconPeer + " connected to " + shortID(msg.ID))
		m.appendEntry(MutedStyle.Render(shortID(msg.ID) + " joined the room"))
		return m, nil

	case PeerLeftMsg:
		m.peer = ""
		m.sharing = false
		m.status = IconWaiting + " peer left, waiting for a new one"
		m.appendEntry(MutedStyle.Render(shortID(msg.ID) + " left the room"))
		return m, nil

	case ChatMsg:
		m.appendEntry(PeerStyle.Render(shortID(msg.Sender)) + " " + msg.Text)
		return m, nil

	case ScreenShareMsg:
		m.appendEntry(MutedStyle.Render(IconScreen + " " + shortID(msg.Sender) + " started sharing their screen"))
		return m, nil

	case StatusMsg:
		m.status = msg.Text
		return m, nil

	case DisconnectedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		if m.err != nil {
			return FormatError(m.err) + "\n"
		}
		return MutedStyle.Render(IconLeave+" left the room") + "\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconRoom + " room " + m.room))
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n\n")

	if len(m.entries) > 0 {
		b.WriteString(ChatBoxStyle.Render(strings.Join(m.entries, "\n")))
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("enter send · ctrl+s screen share · esc leave"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) appendEntry(entry string) {
	m.entries = append(m.entries, entry)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Err reports the error the session ended with, if any.
func (m Model) Err() error {
	return m.err
}
