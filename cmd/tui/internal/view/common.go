package view

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
)

const apiTimeout = 45 * time.Second

// PaymentAPI is the part of the payment API the screens drive.
type PaymentAPI interface {
	Initiate(ctx context.Context, req client.InitiateRequest) (*client.Envelope, error)
	CheckStatus(ctx context.Context, transactionID string) (*client.Envelope, error)
}

// CommonModel is embedded by all views.
type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

var (
	padded     = lipgloss.NewStyle().Padding(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	labelStyle = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("245"))
)

// apiCtx returns a context with a standard timeout for API calls.
func apiCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), apiTimeout)
}
