package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

type checkoutState int

const (
	checkoutStateForm checkoutState = iota
	checkoutStateSubmitting
	checkoutStatePolling
	checkoutStateResult
)

type CheckoutModel struct {
	CommonModel
	api      PaymentAPI
	currency string
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	state   checkoutState
	form    *huh.Form
	spinner spinner.Model
	poll    Poll

	tx       *client.Transaction
	failure  *client.Envelope
	err      error
	lastErr  error
	timedOut bool
}

func NewCheckoutModel(api PaymentAPI, currency string, interval, window time.Duration) CheckoutModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := CheckoutModel{
		api:      api,
		currency: currency,
		interval: interval,
		window:   window,
		now:      time.Now,
		state:    checkoutStateForm,
		spinner:  s,
	}
	m.form = m.buildForm()

	return m
}

func (m CheckoutModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m CheckoutModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case checkoutStateForm:
		return m.updateForm(msg)
	case checkoutStateSubmitting:
		return m.updateSubmitting(msg)
	case checkoutStatePolling:
		return m.updatePolling(msg)
	case checkoutStateResult:
		return m.updateResult(msg)
	}

	return m, nil
}

func (m CheckoutModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	default:
		return m, cmd
	}

	if !m.form.GetBool("confirm") {
		return m, Back
	}

	req := client.InitiateRequest{
		Amount:        strings.TrimSpace(m.form.GetString("amount")),
		PhoneNumber:   strings.TrimSpace(m.form.GetString("phone")),
		PaymentMethod: m.form.GetString("method"),
	}

	m.state = checkoutStateSubmitting

	return m, tea.Batch(m.spinner.Tick, m.initiateCmd(req))
}

func (m CheckoutModel) updateSubmitting(msg tea.Msg) (tea.Model, tea.Cmd) {
	res, ok := msg.(initiatedMsg)
	if !ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	switch {
	case res.err != nil:
		m.err = res.err
		m.state = checkoutStateResult

		return m, nil
	case !res.env.Success:
		m.failure = res.env
		m.tx = res.env.Transaction
		m.state = checkoutStateResult

		return m, nil
	case res.env.Transaction == nil:
		m.err = errors.New("payment initiated but no transaction was returned")
		m.state = checkoutStateResult

		return m, nil
	}

	m.tx = res.env.Transaction

	if payment.Status(m.tx.Status).Terminal() {
		m.state = checkoutStateResult
		return m, nil
	}

	m.poll = NewPoll(m.interval, m.window, m.now())
	m.state = checkoutStatePolling

	return m, m.poll.Tick(m.tx.ID)
}

func (m CheckoutModel) updatePolling(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

		return m, nil

	case pollTickMsg:
		if msg.transactionID != m.tx.ID {
			return m, nil
		}

		if m.poll.Expired(m.now()) {
			m.timedOut = true
			m.state = checkoutStateResult

			return m, nil
		}

		return m, m.checkStatusCmd(m.tx.ID)

	case statusMsg:
		if msg.transactionID != m.tx.ID {
			return m, nil
		}

		switch {
		case msg.err != nil:
			m.lastErr = msg.err
		case !msg.env.Success:
			m.lastErr = errors.New(msg.env.Error)
			if msg.env.Transaction != nil {
				m.tx = msg.env.Transaction
			}
		case msg.env.Transaction != nil:
			m.lastErr = nil
			m.tx = msg.env.Transaction
		}

		if payment.Status(m.tx.Status).Terminal() {
			m.state = checkoutStateResult
			return m, nil
		}

		return m, m.poll.Tick(m.tx.ID)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m CheckoutModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc || keyMsg.Type == tea.KeyEnter {
			return m, Back
		}
	}

	return m, nil
}

func (m CheckoutModel) buildForm() *huh.Form {
	methods := make([]huh.Option[string], 0, len(payment.Methods))
	for _, method := range payment.Methods {
		methods = append(methods, huh.NewOption(strings.ToUpper(string(method)), string(method)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title(fmt.Sprintf("Amount (%s)", m.currency)).
				Placeholder("1000").
				Validate(validateAmount),

			huh.NewInput().
				Key("phone").
				Title("Phone number").
				Placeholder("+228 90 00 00 00").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("phone number cannot be empty")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Key("method").
				Title("Payment method").
				Options(methods...),

			huh.NewConfirm().
				Key("confirm").
				Title("Send the payment request?").
				Affirmative("Pay").
				Negative("Cancel"),
		),
	).WithWidth(50).WithShowHelp(false)
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("amount must be a number")
	}

	if !d.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	if !d.Round(2).Equal(d) {
		return fmt.Errorf("amount has too many decimal places")
	}

	return nil
}

func (m CheckoutModel) View() string {
	header := titleStyle.Render("New Checkout")

	switch m.state {
	case checkoutStateForm:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", m.form.View(), "", helpStyle.Render("Esc: back to menu"),
		))

	case checkoutStateSubmitting:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", fmt.Sprintf("%s Sending payment request...", m.spinner.View()),
		))

	case checkoutStatePolling:
		lines := []string{
			header,
			"",
			fmt.Sprintf("%s Waiting for approval on %s...", m.spinner.View(), m.tx.PhoneNumber),
			"",
			FormatTransaction(m.tx, m.currency),
		}

		if m.lastErr != nil {
			lines = append(lines, "", errorStyle.Render(fmt.Sprintf("Last check failed: %v", m.lastErr)))
		}

		lines = append(lines, "", helpStyle.Render("Esc: stop waiting"))

		return padded.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	case checkoutStateResult:
		return padded.Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", m.viewResult(), "", helpStyle.Render("Enter/Esc: back to menu"),
		))
	}

	return ""
}

func (m CheckoutModel) viewResult() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var lines []string

	switch {
	case m.failure != nil:
		lines = append(lines, FormatFailure(m.failure))
	case m.timedOut:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(
			fmt.Sprintf("No confirmation within %s. Use Lookup to check the payment later.", m.window),
		))
	case m.tx.Status == string(payment.StatusCompleted):
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")).Render("Payment completed!"))
	default:
		lines = append(lines, errorStyle.Render("Payment was not completed."))
	}

	if m.tx != nil {
		lines = append(lines, "", FormatTransaction(m.tx, m.currency))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

type initiatedMsg struct {
	env *client.Envelope
	err error
}

type statusMsg struct {
	transactionID string
	env           *client.Envelope
	err           error
}

func (m CheckoutModel) initiateCmd(req client.InitiateRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := apiCtx()
		defer cancel()

		env, err := m.api.Initiate(ctx, req)

		return initiatedMsg{env: env, err: err}
	}
}

func (m CheckoutModel) checkStatusCmd(id string) tea.Cmd {
	return checkStatusCmd(m.api, id)
}

func checkStatusCmd(api PaymentAPI, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := apiCtx()
		defer cancel()

		env, err := api.CheckStatus(ctx, id)

		return statusMsg{transactionID: id, env: env, err: err}
	}
}
