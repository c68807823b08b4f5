package ui

import (
	"fmt"
	"strings"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/models"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const gridColumns = 3

type completedMsg struct{ Record models.Record }

type cancelledMsg struct{}

// GridModel is the running evaluation: catalog toggles laid out row by row in
// three columns, plus the notes box.
type GridModel struct {
	Session  *Session
	Eval     *evaluation.Session
	Catalog  []models.ErrorCode
	Cursor   int
	Notes    textarea.Model
	Editing  bool
	Err      error
	selected map[models.ErrorCode]bool
}

func NewGridModel(s *Session, eval *evaluation.Session) GridModel {
	ta := textarea.New()
	ta.Placeholder = "Notes"
	ta.ShowLineNumbers = false
	ta.SetWidth(90)
	ta.SetHeight(4)
	if eval != nil {
		ta.SetValue(eval.Notes)
	}
	return GridModel{
		Session:  s,
		Eval:     eval,
		Catalog:  models.Catalog(),
		Notes:    ta,
		selected: selectedCodes(eval),
	}
}

func (m GridModel) Update(msg tea.Msg) (GridModel, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionMsg:
		m.Eval = msg.Session
		m.selected = selectedCodes(msg.Session)
		m.Err = nil
		return m, nil
	case errMsg:
		m.Err = msg
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlS:
			return m, finishCmd(m.Session, m.Notes.Value())
		case tea.KeyTab:
			m.Editing = !m.Editing
			if m.Editing {
				return m, m.Notes.Focus()
			}
			m.Notes.Blur()
			return m, nil
		case tea.KeyEsc:
			if m.Editing {
				m.Editing = false
				m.Notes.Blur()
				return m, nil
			}
			return m, cancelCmd(m.Session)
		}
		if m.Editing {
			var cmd tea.Cmd
			m.Notes, cmd = m.Notes.Update(msg)
			return m, cmd
		}
		return m.navigate(msg)
	}
	if m.Editing {
		var cmd tea.Cmd
		m.Notes, cmd = m.Notes.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m GridModel) navigate(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	n := len(m.Catalog)
	switch msg.String() {
	case "left", "h":
		if m.Cursor%gridColumns > 0 {
			m.Cursor--
		}
	case "right", "l":
		if m.Cursor%gridColumns < gridColumns-1 && m.Cursor+1 < n {
			m.Cursor++
		}
	case "up", "k":
		if m.Cursor-gridColumns >= 0 {
			m.Cursor -= gridColumns
		}
	case "down", "j":
		if m.Cursor+gridColumns < n {
			m.Cursor += gridColumns
		}
	case " ", "space", "enter", "x":
		return m, toggleCmd(m.Session, m.Catalog[m.Cursor])
	case "u":
		return m, undoCmd(m.Session)
	}
	return m, nil
}

func toggleCmd(s *Session, code models.ErrorCode) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		sess, err := s.Toggle(ctx, code)
		if err != nil {
			return errMsg(err)
		}
		return sessionMsg{Session: sess}
	}
}

func undoCmd(s *Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		sess, err := s.Undo(ctx)
		if err != nil {
			return errMsg(err)
		}
		return sessionMsg{Session: sess}
	}
}

func finishCmd(s *Session, notes string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		rec, err := s.Finish(ctx, notes)
		if err != nil {
			return errMsg(err)
		}
		return completedMsg{Record: rec}
	}
}

func cancelCmd(s *Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := callCtx()
		defer cancel()
		if err := s.Cancel(ctx); err != nil {
			return errMsg(err)
		}
		return cancelledMsg{}
	}
}

func (m GridModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Evaluation in progress") + "\n\n")
	if m.Eval != nil {
		fmt.Fprintf(&b, "Report: %s   Vehicle: %s   Started: %s\n\n",
			focusedStyle.Render(m.Eval.ReportName), m.Eval.VehicleNumber,
			m.Eval.StartTime.In(m.Session.Now().Location()).Format(models.TimeLayout))
	}

	var rows []string
	for start := 0; start < len(m.Catalog); start += gridColumns {
		cells := make([]string, 0, gridColumns)
		for i := start; i < start+gridColumns && i < len(m.Catalog); i++ {
			cells = append(cells, m.cell(i))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n\n")

	if m.Eval != nil && len(m.Eval.Selected) > 0 {
		b.WriteString("Selected: " + models.JoinErrors(m.Eval.Selected) + "\n\n")
	}
	b.WriteString(m.Notes.View())
	b.WriteString("\n\n")
	if m.Editing {
		b.WriteString(blurredStyle.Render("Tab or Esc back to the grid, Ctrl+S finish"))
	} else {
		b.WriteString(blurredStyle.Render("Arrows move, Space or x toggles, u undo, Tab notes, Ctrl+S finish, Esc cancel"))
	}
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(describe(m.Err)))
	}
	return b.String()
}

func (m GridModel) cell(i int) string {
	code := m.Catalog[i]
	box := "[ ] "
	if m.selected[code] {
		box = checkedStyle.Render("[x]") + " "
	}
	label := string(code)
	if i == m.Cursor && !m.Editing {
		label = selectedStyle.Render(label)
	}
	return cellStyle.Render(box + label)
}
