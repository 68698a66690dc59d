// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanguard-fleet/commsnet/voice"
)

var (
	chipConnectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	chipTransitionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	chipErrorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	chipIdleStyle         = lipgloss.NewStyle().Faint(true)

	speakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	localStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	footerStyle   = lipgloss.NewStyle().Faint(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// sessionChangedMsg is delivered whenever the session signals a state
// or roster change.
type sessionChangedMsg struct{}

type model struct {
	session *voice.Session

	transmitting bool
	muted        bool
	notice       string
	width        int
}

func newModel(session *voice.Session) model {
	return model{session: session}
}

func (m model) Init() tea.Cmd {
	return listenForChange(m.session.Changed())
}

// listenForChange blocks until the session signals a change, then
// delivers it through the message loop.
func listenForChange(changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changed
		return sessionChangedMsg{}
	}
}

func (m model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		return m, nil

	case sessionChangedMsg:
		if m.session.State() == voice.StateIdle {
			return m, tea.Quit
		}
		return m, listenForChange(m.session.Changed())

	case tea.KeyMsg:
		switch message.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "t":
			m.notice = ""
			next := !m.transmitting
			if err := m.session.SetPTT(next); err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.transmitting = next
			return m, nil

		case "m":
			m.muted = !m.muted
			m.session.SetMicEnabled(!m.muted)
			if m.muted {
				// Mic-disabled wins over PTT in the transport, so the
				// local transmit flag is stale once muted.
				m.transmitting = false
			}
			return m, nil

		case "r":
			if m.session.State() != voice.StateError {
				return m, nil
			}
			m.notice = ""
			if err := m.session.Retry(context.Background()); err != nil {
				m.notice = err.Error()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	chip := m.session.Chip()

	var chipStyle lipgloss.Style
	switch chip.State {
	case voice.StateConnected:
		chipStyle = chipConnectedStyle
	case voice.StateJoining, voice.StateReconnecting:
		chipStyle = chipTransitionalStyle
	case voice.StateError:
		chipStyle = chipErrorStyle
	default:
		chipStyle = chipIdleStyle
	}

	view := chipStyle.Render(chip.String()) + "\n\n"
	for _, participant := range m.session.Participants() {
		marker := "  "
		if participant.Speaking {
			marker = speakingStyle.Render("▶ ")
		}
		line := participant.Callsign
		if participant.Local {
			line = localStyle.Render(line + " (you)")
		}
		if participant.Muted {
			line = mutedStyle.Render(line + " [muted]")
		}
		view += fmt.Sprintf("%s%s\n", marker, line)
	}

	if m.notice != "" {
		view += "\n" + noticeStyle.Render(m.notice) + "\n"
	}

	transmitLabel := "t transmit"
	if m.transmitting {
		transmitLabel = "t release"
	}
	muteLabel := "m mute"
	if m.muted {
		muteLabel = "m unmute"
	}
	view += "\n" + footerStyle.Render(fmt.Sprintf("%s · %s · r retry · q quit", transmitLabel, muteLabel))
	return view
}
