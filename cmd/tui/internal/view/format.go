package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MrJamesThe3rd/momopay/cmd/tui/internal/client"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

// FormatAmount renders an amount with locale digit grouping and the currency
// code as suffix. Whole amounts are printed without decimals.
func FormatAmount(tag language.Tag, amount decimal.Decimal, currency string) string {
	p := message.NewPrinter(tag)

	var s string
	if amount.IsInteger() {
		s = p.Sprintf("%d", amount.IntPart())
	} else {
		s = p.Sprintf("%.2f", amount.InexactFloat64())
	}

	if currency == "" {
		return s
	}

	return s + " " + currency
}

// FormatStatus colours a status by outcome.
func FormatStatus(status string) string {
	color := lipgloss.Color("214")

	switch payment.Status(status) {
	case payment.StatusCompleted:
		color = lipgloss.Color("46")
	case payment.StatusFailed, payment.StatusCancelled, payment.StatusTimeout:
		color = lipgloss.Color("196")
	}

	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(strings.ToUpper(status))
}

// FormatTransaction renders the fields a buyer cares about.
func FormatTransaction(tx *client.Transaction, currency string) string {
	amount := string(tx.Amount)
	if d, err := decimal.NewFromString(amount); err == nil {
		amount = FormatAmount(language.French, d, currency)
	}

	rows := []string{
		labelStyle.Render("Transaction") + tx.ID,
		labelStyle.Render("Amount") + amount,
		labelStyle.Render("Phone") + tx.PhoneNumber,
		labelStyle.Render("Method") + tx.PaymentMethod,
		labelStyle.Render("Status") + FormatStatus(tx.Status),
	}

	if tx.UpstreamTransactionID != "" {
		rows = append(rows, labelStyle.Render("Reference")+tx.UpstreamTransactionID)
	}

	if !tx.UpdatedAt.IsZero() {
		rows = append(rows, labelStyle.Render("Updated")+tx.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// FormatFailure renders a business failure returned by the API.
func FormatFailure(env *client.Envelope) string {
	msg := env.Error
	if msg == "" {
		msg = "request failed"
	}

	if env.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, env.Code)
	}

	return errorStyle.Render(msg)
}
