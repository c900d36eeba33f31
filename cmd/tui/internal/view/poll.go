package view

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Poll bounds how long a checkout waits for the buyer to approve on their
// phone. Expiry is local to the screen; the stored transaction is untouched.
type Poll struct {
	Interval time.Duration
	Window   time.Duration
	started  time.Time
}

func NewPoll(interval, window time.Duration, now time.Time) Poll {
	return Poll{Interval: interval, Window: window, started: now}
}

func (p Poll) Expired(now time.Time) bool {
	return now.Sub(p.started) >= p.Window
}

type pollTickMsg struct {
	transactionID string
}

func (p Poll) Tick(transactionID string) tea.Cmd {
	return tea.Tick(p.Interval, func(time.Time) tea.Msg {
		return pollTickMsg{transactionID: transactionID}
	})
}
