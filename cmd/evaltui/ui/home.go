package ui

import (
	"fmt"
	"strings"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/policy"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// sessionMsg carries the evaluation state after a service call.
type sessionMsg struct{ Session *evaluation.Session }

type showReportsMsg struct{}

type loggedOutMsg struct{}

type HomeModel struct {
	Session  *Session
	Inputs   []textinput.Model
	FocusIdx int
	Info     string
	Err      error
}

const (
	homeReportName = iota
	homeVehicle
)

func NewHomeModel(s *Session) HomeModel {
	inputs := make([]textinput.Model, 2)
	inputs[homeReportName] = textinput.New()
	inputs[homeReportName].Prompt = "Report name: "
	inputs[homeReportName].Placeholder = "trainee or test name"
	inputs[homeReportName].CharLimit = 200
	inputs[homeReportName].Focus()

	inputs[homeVehicle] = textinput.New()
	inputs[homeVehicle].Prompt = "Vehicle number: "
	inputs[homeVehicle].CharLimit = 32
	if s.Account != nil {
		inputs[homeVehicle].SetValue(s.Account.VehicleNumber)
	}
	return HomeModel{Session: s, Inputs: inputs}
}

// Init resumes an evaluation left running by an earlier sign-in.
func (m HomeModel) Init() tea.Cmd {
	s := m.Session
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		cur, err := s.Current(ctx)
		if err != nil {
			return errMsg(err)
		}
		return sessionMsg{Session: cur}
	}
}

func (m HomeModel) canStart() bool {
	return m.Session.Can(policy.StartEvaluation, "")
}

func (m HomeModel) Update(msg tea.Msg) (HomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.FocusIdx < len(m.Inputs)-1 {
				focusNext(m.Inputs, &m.FocusIdx, 1)
				return m, nil
			}
			if !m.canStart() {
				m.Err = fmt.Errorf("your account cannot start evaluations yet")
				return m, nil
			}
			m.Err, m.Info = nil, ""
			return m, startCmd(m.Session, m.Inputs[homeReportName].Value(), m.Inputs[homeVehicle].Value())
		case tea.KeyTab, tea.KeyDown:
			focusNext(m.Inputs, &m.FocusIdx, 1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			focusNext(m.Inputs, &m.FocusIdx, -1)
			return m, nil
		case tea.KeyCtrlR:
			return m, func() tea.Msg { return showReportsMsg{} }
		case tea.KeyCtrlX:
			m.Session.Logout()
			return m, func() tea.Msg { return loggedOutMsg{} }
		}
	case errMsg:
		m.Err = msg
		return m, nil
	}
	return m, updateInputs(m.Inputs, msg)
}

func startCmd(s *Session, reportName, vehicle string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		sess, err := s.Start(ctx, strings.TrimSpace(reportName), strings.TrimSpace(vehicle))
		if err != nil {
			return errMsg(err)
		}
		return sessionMsg{Session: sess}
	}
}

func (m HomeModel) View() string {
	var b strings.Builder
	acct := m.Session.Account
	b.WriteString(titleStyle.Render("Driving Evaluation") + "\n\n")
	if acct != nil {
		name := acct.Name
		if name == "" {
			name = acct.Username
		}
		fmt.Fprintf(&b, "Signed in as %s (%s)\n", focusedStyle.Render(name), acct.Role)
	}
	fmt.Fprintf(&b, "Date %s   Time %s\n\n", m.Session.Now().Format("2006-01-02"), m.Session.Now().Format("15:04:05"))

	if m.canStart() {
		for i := range m.Inputs {
			b.WriteString(m.Inputs[i].View())
			b.WriteRune('\n')
		}
		b.WriteString("\n")
		b.WriteString(blurredStyle.Render("Enter on the last field starts the evaluation"))
		b.WriteString("\n")
	} else {
		b.WriteString(blurredStyle.Render("Starting evaluations is not enabled for this account.") + "\n")
	}
	b.WriteString(blurredStyle.Render("Ctrl+R reports, Ctrl+X sign out, Ctrl+C quit"))

	if m.Info != "" {
		b.WriteString("\n\n" + infoMessageStyle(m.Info))
	}
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(describe(m.Err)))
	}
	return b.String()
}
