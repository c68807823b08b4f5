package ui

import (
	"fmt"
	"time"

	"drive-eval/backend/app/watch"

	tea "github.com/charmbracelet/bubbletea"
)

type state int

const (
	stateLogin state = iota
	stateRegister
	stateHome
	stateGrid
	stateReports
)

type clockMsg time.Time

// tableChangedMsg is delivered when a table file is rewritten, by this
// process or another.
type tableChangedMsg watch.Change

type RootModel struct {
	State     state
	Session   *Session
	Login     LoginModel
	Register  RegisterModel
	Home      HomeModel
	Grid      GridModel
	Reports   ReportsModel
	ExportDir string
	Quitting  bool
	changes   <-chan watch.Change
	height    int
}

// NewRootModel starts at the sign-in page. changes may be nil when the
// storage has no files to watch.
func NewRootModel(s *Session, changes <-chan watch.Change, exportDir string) RootModel {
	return RootModel{
		State:     stateLogin,
		Session:   s,
		Login:     NewLoginModel(s),
		ExportDir: exportDir,
		changes:   changes,
		height:    24,
	}
}

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(m.Login.Init(), tick(), m.waitForChange())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m RootModel) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return tableChangedMsg(c)
	}
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		if m.State == stateReports {
			m.Reports.Table.SetHeight(max(msg.Height-10, 5))
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Quitting = true
			return m, tea.Quit
		}
	case clockMsg:
		return m, tick()
	case tableChangedMsg:
		cmds := []tea.Cmd{m.waitForChange()}
		if m.State == stateReports {
			cmds = append(cmds, loadRecordsCmd(m.Session))
		}
		return m, tea.Batch(cmds...)

	case loggedInMsg:
		m.Login.reset()
		return m.toHome("")
	case loggedOutMsg:
		m.State = stateLogin
		m.Login = NewLoginModel(m.Session)
		return m, m.Login.Init()
	case showRegisterMsg:
		m.State = stateRegister
		m.Register = NewRegisterModel(m.Session)
		return m, nil
	case showLoginMsg:
		m.State = stateLogin
		return m, nil
	case registeredMsg:
		m.State = stateLogin
		m.Login = NewLoginModel(m.Session)
		m.Login.Inputs[inputUsername].SetValue(msg.Username)
		m.Login.Info = "Account created. An administrator must activate it before you can sign in."
		return m, nil
	case showReportsMsg:
		if err := m.Session.refresh(); err != nil {
			return m.signedOut(err)
		}
		m.State = stateReports
		m.Reports = NewReportsModel(m.Session, m.ExportDir, m.height)
		return m, m.Reports.Init()
	case showHomeMsg:
		return m.toHome("")
	case completedMsg:
		return m.toHome(fmt.Sprintf("Report %d saved.", msg.Record.ID))
	case cancelledMsg:
		return m.toHome("Evaluation cancelled.")
	case sessionMsg:
		if m.State == stateHome && msg.Session != nil && msg.Session.InProgress() {
			m.State = stateGrid
			m.Grid = NewGridModel(m.Session, msg.Session)
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.State {
	case stateLogin:
		m.Login, cmd = m.Login.Update(msg)
	case stateRegister:
		m.Register, cmd = m.Register.Update(msg)
	case stateHome:
		m.Home, cmd = m.Home.Update(msg)
	case stateGrid:
		m.Grid, cmd = m.Grid.Update(msg)
	case stateReports:
		m.Reports, cmd = m.Reports.Update(msg)
	}
	return m, cmd
}

// toHome re-reads the account, so a role change made by an administrator in
// the meantime shows on the home page.
func (m RootModel) toHome(info string) (tea.Model, tea.Cmd) {
	if err := m.Session.refresh(); err != nil {
		return m.signedOut(err)
	}
	m.State = stateHome
	m.Home = NewHomeModel(m.Session)
	m.Home.Info = info
	return m, m.Home.Init()
}

func (m RootModel) signedOut(err error) (tea.Model, tea.Cmd) {
	m.Session.Logout()
	m.State = stateLogin
	m.Login = NewLoginModel(m.Session)
	m.Login.Err = err
	return m, nil
}

func (m RootModel) View() string {
	if m.Quitting {
		return "Bye!\n"
	}
	var v string
	switch m.State {
	case stateLogin:
		v = m.Login.View()
	case stateRegister:
		v = m.Register.View()
	case stateHome:
		v = m.Home.View()
	case stateGrid:
		v = m.Grid.View()
	case stateReports:
		v = m.Reports.View()
	}
	return docStyle.Render(v)
}
