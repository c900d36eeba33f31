package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
)

type lookupState int

const (
	lookupStateForm lookupState = iota
	lookupStateLoading
	lookupStateResult
)

// LookupModel asks the API for a transaction's current status. Each check
// may reconcile a pending payment with the provider.
type LookupModel struct {
	CommonModel
	api      PaymentAPI
	currency string

	state   lookupState
	form    *huh.Form
	spinner spinner.Model

	id  string
	env *client.Envelope
	err error
}

func NewLookupModel(api PaymentAPI, currency string) LookupModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return LookupModel{
		api:      api,
		currency: currency,
		state:    lookupStateForm,
		form:     buildLookupForm(),
		spinner:  s,
	}
}

func (m LookupModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m LookupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case lookupStateForm:
		return m.updateForm(msg)
	case lookupStateLoading:
		return m.updateLoading(msg)
	case lookupStateResult:
		return m.updateResult(msg)
	}

	return m, nil
}

func (m LookupModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m, Back
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m, Back
	case huh.StateCompleted:
		m.id = strings.TrimSpace(m.form.GetString("id"))
		return m.load()
	}

	return m, cmd
}

func (m LookupModel) load() (tea.Model, tea.Cmd) {
	m.state = lookupStateLoading
	m.env = nil
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, checkStatusCmd(m.api, m.id))
}

func (m LookupModel) updateLoading(msg tea.Msg) (tea.Model, tea.Cmd) {
	if res, ok := msg.(statusMsg); ok {
		if res.transactionID != m.id {
			return m, nil
		}

		m.env = res.env
		m.err = res.err
		m.state = lookupStateResult

		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m LookupModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc":
		return m, Back
	case "r", "enter":
		return m.load()
	case "n":
		m.state = lookupStateForm
		m.form = buildLookupForm()

		return m, m.form.Init()
	}

	return m, nil
}

func buildLookupForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("id").
				Title("Transaction ID").
				Placeholder("xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx").
				Validate(func(s string) error {
					if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("not a valid transaction id")
					}
					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m LookupModel) View() string {
	header := titleStyle.Render("Look Up Payment")

	switch m.state {
	case lookupStateForm:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", m.form.View(), "", helpStyle.Render("Esc: back to menu"),
		))

	case lookupStateLoading:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", fmt.Sprintf("%s Checking %s...", m.spinner.View(), m.id),
		))

	case lookupStateResult:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", m.viewResult(), "", helpStyle.Render("r: refresh | n: new lookup | Esc: back to menu"),
		))
	}

	return ""
}

func (m LookupModel) viewResult() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var lines []string

	if !m.env.Success {
		lines = append(lines, FormatFailure(m.env))
	}

	if m.env.Transaction != nil {
		if len(lines) > 0 {
			lines = append(lines, "")
		}

		lines = append(lines, FormatTransaction(m.env.Transaction, m.currency))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
