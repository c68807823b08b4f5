package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/app/services"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type errMsg error

type loggedInMsg struct{}

type showRegisterMsg struct{}

type LoginModel struct {
	Session  *Session
	Inputs   []textinput.Model
	FocusIdx int
	Info     string
	Err      error
}

const (
	inputUsername = iota
	inputPassword
)

func NewLoginModel(s *Session) LoginModel {
	inputs := make([]textinput.Model, 2)

	inputs[inputUsername] = textinput.New()
	inputs[inputUsername].Placeholder = "username"
	inputs[inputUsername].Prompt = "Username: "
	inputs[inputUsername].CharLimit = 64
	inputs[inputUsername].Focus()

	inputs[inputPassword] = textinput.New()
	inputs[inputPassword].Placeholder = "password"
	inputs[inputPassword].Prompt = "Password: "
	inputs[inputPassword].EchoMode = textinput.EchoPassword
	inputs[inputPassword].CharLimit = 72

	return LoginModel{Session: s, Inputs: inputs}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.FocusIdx == len(m.Inputs)-1 {
				m.Err = nil
				return m, loginCmd(m.Session, m.Inputs[inputUsername].Value(), m.Inputs[inputPassword].Value())
			}
			focusNext(m.Inputs, &m.FocusIdx, 1)
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			focusNext(m.Inputs, &m.FocusIdx, 1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			focusNext(m.Inputs, &m.FocusIdx, -1)
			return m, nil
		case tea.KeyCtrlN:
			return m, func() tea.Msg { return showRegisterMsg{} }
		}
	case errMsg:
		m.Err = msg
		return m, nil
	}
	return m, updateInputs(m.Inputs, msg)
}

func loginCmd(s *Session, username, password string) tea.Cmd {
	return func() tea.Msg {
		if err := s.Login(username, password); err != nil {
			return errMsg(err)
		}
		return loggedInMsg{}
	}
}

// reset clears the password and keeps the username for the next attempt.
func (m *LoginModel) reset() {
	m.Inputs[inputPassword].SetValue("")
	m.Inputs[m.FocusIdx].Blur()
	m.FocusIdx = inputPassword
	m.Inputs[inputPassword].Focus()
}

func (m LoginModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Driving Evaluation - Sign in") + "\n\n")
	for i := range m.Inputs {
		b.WriteString(m.Inputs[i].View())
		b.WriteRune('\n')
	}
	b.WriteString("\n")
	b.WriteString(blurredStyle.Render("Tab to change fields, Enter to sign in, Ctrl+N to register, Ctrl+C to quit"))

	if m.Info != "" {
		b.WriteString("\n\n" + infoMessageStyle(m.Info))
	}
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(describe(m.Err)))
	}
	return b.String()
}

func focusNext(inputs []textinput.Model, idx *int, step int) {
	inputs[*idx].Blur()
	*idx = (*idx + step + len(inputs)) % len(inputs)
	inputs[*idx].Focus()
}

func updateInputs(inputs []textinput.Model, msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, len(inputs))
	for i := range inputs {
		inputs[i], cmds[i] = inputs[i].Update(msg)
	}
	return tea.Batch(cmds...)
}

// describe turns a service error into the line shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, services.ErrAuthentication):
		return "Invalid username or password."
	case errors.Is(err, services.ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, evaluation.ErrInvalidState):
		return "No evaluation in progress, or one is already running."
	case errors.Is(err, services.ErrValidation):
		return "Check the entered values: " + err.Error()
	case errors.Is(err, repo.ErrDuplicateUsername):
		return "That username is already taken."
	case errors.Is(err, repo.ErrNotFound):
		return "The record no longer exists."
	case errors.Is(err, errNotSignedIn):
		return "Please sign in again."
	}
	return err.Error()
}

func callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// selectedCodes is a lookup of the session's current selection.
func selectedCodes(s *evaluation.Session) map[models.ErrorCode]bool {
	out := make(map[models.ErrorCode]bool)
	if s == nil {
		return out
	}
	for _, c := range s.Selected {
		out[c] = true
	}
	return out
}
