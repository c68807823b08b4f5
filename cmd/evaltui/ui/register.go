package ui

import (
	"strings"

	"drive-eval/backend/app/services"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type registeredMsg struct{ Username string }

type showLoginMsg struct{}

type RegisterModel struct {
	Session  *Session
	Inputs   []textinput.Model
	FocusIdx int
	Err      error
}

const (
	regUsername = iota
	regPassword
	regName
	regVehicle
)

func NewRegisterModel(s *Session) RegisterModel {
	inputs := make([]textinput.Model, 4)
	prompts := []string{"Username: ", "Password: ", "Full name: ", "Vehicle number: "}
	limits := []int{64, 72, 128, 32}
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Prompt = prompts[i]
		inputs[i].CharLimit = limits[i]
	}
	inputs[regPassword].EchoMode = textinput.EchoPassword
	inputs[regUsername].Focus()
	return RegisterModel{Session: s, Inputs: inputs}
}

func (m RegisterModel) Update(msg tea.Msg) (RegisterModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.FocusIdx == len(m.Inputs)-1 {
				m.Err = nil
				return m, registerCmd(m.Session, services.Registration{
					Username:      strings.TrimSpace(m.Inputs[regUsername].Value()),
					Password:      m.Inputs[regPassword].Value(),
					Name:          strings.TrimSpace(m.Inputs[regName].Value()),
					VehicleNumber: strings.TrimSpace(m.Inputs[regVehicle].Value()),
				})
			}
			focusNext(m.Inputs, &m.FocusIdx, 1)
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			focusNext(m.Inputs, &m.FocusIdx, 1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			focusNext(m.Inputs, &m.FocusIdx, -1)
			return m, nil
		case tea.KeyEsc:
			return m, func() tea.Msg { return showLoginMsg{} }
		}
	case errMsg:
		m.Err = msg
		return m, nil
	}
	return m, updateInputs(m.Inputs, msg)
}

func registerCmd(s *Session, in services.Registration) tea.Cmd {
	return func() tea.Msg {
		if err := s.Register(in); err != nil {
			return errMsg(err)
		}
		return registeredMsg{Username: in.Username}
	}
}

func (m RegisterModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Driving Evaluation - New account") + "\n\n")
	for i := range m.Inputs {
		b.WriteString(m.Inputs[i].View())
		b.WriteRune('\n')
	}
	b.WriteString("\n")
	b.WriteString(blurredStyle.Render("Enter on the last field creates the account, Esc goes back"))
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(describe(m.Err)))
	}
	return b.String()
}
