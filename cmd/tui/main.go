package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/momopay/internal/config"
)

type model struct {
	cfg *config.TUI
	api *client.Client

	currentView View

	checkoutView view.CheckoutModel
	lookupView   view.LookupModel
}

type View int

const (
	ViewMenu     View = 0
	ViewCheckout View = 1
	ViewLookup   View = 2
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.LoadTUI()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	return model{
		cfg:         cfg,
		api:         client.New(cfg.APIURL, cfg.BuyerToken),
		currentView: ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewCheckout
				m.checkoutView = view.NewCheckoutModel(m.api, m.cfg.Currency, m.cfg.PollInterval, m.cfg.PollWindow)

				return m, m.checkoutView.Init()
			case "2":
				m.currentView = ViewLookup
				m.lookupView = view.NewLookupModel(m.api, m.cfg.Currency)

				return m, m.lookupView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewCheckout:
		var newModel tea.Model
		newModel, cmd = m.checkoutView.Update(msg)
		m.checkoutView = newModel.(view.CheckoutModel)
	case ViewLookup:
		var newModel tea.Model
		newModel, cmd = m.lookupView.Update(msg)
		m.lookupView = newModel.(view.LookupModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"MoMo Pay\n\n" +
				"1. New Checkout\n" +
				"2. Look Up Payment\n\n" +
				"q. Quit\n\n" +
				lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("API: "+m.cfg.APIURL),
		)
	case ViewCheckout:
		return m.checkoutView.View()
	case ViewLookup:
		return m.lookupView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
