package ui

import (
	"fmt"
	"strconv"
	"strings"

	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type recordsMsg struct{ Records []models.Record }

type recordDeletedMsg struct{ ID int64 }

type exportedMsg struct{ Path string }

type showHomeMsg struct{}

// ReportsModel lists the records the account may see.
type ReportsModel struct {
	Session   *Session
	Table     table.Model
	Records   []models.Record
	ExportDir string
	confirm   int64
	Info      string
	Err       error
}

func NewReportsModel(s *Session, exportDir string, height int) ReportsModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Report", Width: 24},
		{Title: "Evaluator", Width: 14},
		{Title: "Start", Width: 17},
		{Title: "End", Width: 17},
		{Title: "Errors", Width: 40},
	}
	if height < 15 {
		height = 15
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height-10),
	)

	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(st)

	return ReportsModel{Session: s, Table: t, ExportDir: exportDir}
}

func (m ReportsModel) Init() tea.Cmd {
	return loadRecordsCmd(m.Session)
}

func loadRecordsCmd(s *Session) tea.Cmd {
	return func() tea.Msg {
		list, err := s.Records()
		if err != nil {
			return errMsg(err)
		}
		return recordsMsg{Records: list}
	}
}

func (m ReportsModel) selected() (models.Record, bool) {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.Records) {
		return models.Record{}, false
	}
	return m.Records[i], true
}

func (m ReportsModel) Update(msg tea.Msg) (ReportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsMsg:
		m.setRecords(msg.Records)
		return m, nil
	case recordDeletedMsg:
		m.Info = fmt.Sprintf("Record %d deleted.", msg.ID)
		return m, loadRecordsCmd(m.Session)
	case exportedMsg:
		m.Info = "Saved " + msg.Path
		return m, nil
	case errMsg:
		m.Err = msg
		return m, nil
	case tea.KeyMsg:
		if m.confirm != 0 {
			id := m.confirm
			m.confirm = 0
			if msg.String() == "y" {
				return m, deleteCmd(m.Session, id)
			}
			m.Info = ""
			return m, nil
		}
		switch msg.String() {
		case "r":
			m.Err, m.Info = nil, ""
			return m, loadRecordsCmd(m.Session)
		case "d":
			rec, ok := m.selected()
			if !ok {
				return m, nil
			}
			if !m.Session.Can(policy.DeleteRecord, rec.Owner) {
				m.Err = fmt.Errorf("deleting record %d is not allowed for your account", rec.ID)
				return m, nil
			}
			m.confirm = rec.ID
			m.Err, m.Info = nil, fmt.Sprintf("Delete record %d? (y/n)", rec.ID)
			return m, nil
		case "p":
			rec, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.Err, m.Info = nil, ""
			return m, exportCmd(m.Session, rec.ID, m.ExportDir)
		case "esc", "backspace":
			return m, func() tea.Msg { return showHomeMsg{} }
		}
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m *ReportsModel) setRecords(list []models.Record) {
	m.Records = list
	loc := m.Session.Now().Location()
	rows := make([]table.Row, len(list))
	for i, r := range list {
		rows[i] = table.Row{
			strconv.FormatInt(r.ID, 10),
			r.ReportName,
			r.Owner,
			r.StartTime.In(loc).Format(models.TimeLayout),
			r.EndTime.In(loc).Format(models.TimeLayout),
			models.JoinErrors(r.Errors),
		}
	}
	m.Table.SetRows(rows)
	if c := m.Table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.Table.SetCursor(len(rows) - 1)
	}
}

func deleteCmd(s *Session, id int64) tea.Cmd {
	return func() tea.Msg {
		if err := s.DeleteRecord(id); err != nil {
			return errMsg(err)
		}
		return recordDeletedMsg{ID: id}
	}
}

func exportCmd(s *Session, id int64, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := s.ExportPDF(id, dir)
		if err != nil {
			return errMsg(err)
		}
		return exportedMsg{Path: path}
	}
}

func (m ReportsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Reports (%d)", len(m.Records))) + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	if rec, ok := m.selected(); ok && rec.Notes != "" {
		b.WriteString("Notes: " + rec.Notes + "\n\n")
	}
	b.WriteString(blurredStyle.Render("Up/down move, r refresh, d delete, p save PDF, Esc back"))
	if m.Info != "" {
		b.WriteString("\n" + infoMessageStyle(m.Info))
	}
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(describe(m.Err)))
	}
	return b.String()
}
