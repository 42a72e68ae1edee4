package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/shopspring/decimal"
)

// RenderPositions renders the open-position list as reported live by
// the exchange (exchanges.Position), rather than the bot's own pending
// TradeSlot bookkeeping.
func RenderPositions(positions []exchanges.Position) string {
	var content strings.Builder

	content.WriteString("📈 Open Positions\n\n")

	if len(positions) == 0 {
		mutedStyle := lipgloss.NewStyle().Foreground(mutedColor)
		return boxStyle.Render(content.String() + mutedStyle.Render("No open positions"))
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(mutedColor)
	content.WriteString(headerStyle.Render(
		fmt.Sprintf("%-12s %-8s %-12s %-12s %-12s %-10s\n",
			"Symbol", "Side", "Entry", "Mark", "Size", "PnL")))
	content.WriteString(strings.Repeat("─", 70) + "\n")

	totalPnL := decimal.Zero
	for _, pos := range positions {
		sideStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
		side := "LONG"
		if pos.Side == exchanges.OrderSideSell {
			sideStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
			side = "SHORT"
		}

		pnlStyle := lipgloss.NewStyle().Foreground(successColor)
		if pos.UnrealizedPnL.IsNegative() {
			pnlStyle = lipgloss.NewStyle().Foreground(errorColor)
		}

		totalPnL = totalPnL.Add(pos.UnrealizedPnL)

		line := fmt.Sprintf("%-12s %-8s %-12s %-12s %-12s %s\n",
			pos.Symbol,
			sideStyle.Render(side),
			"$"+pos.EntryPrice.StringFixed(2),
			"$"+pos.MarkPrice.StringFixed(2),
			pos.Size.StringFixed(4),
			pnlStyle.Render("$"+pos.UnrealizedPnL.StringFixed(2)))

		content.WriteString(line)
	}

	content.WriteString(strings.Repeat("─", 70) + "\n")
	totalStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	if totalPnL.IsNegative() {
		totalStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	}
	content.WriteString(fmt.Sprintf("%-56s %s\n",
		"Total Unrealized PnL:",
		totalStyle.Render("$"+totalPnL.StringFixed(2))))

	return boxStyle.Render(content.String())
}

// RenderPositionDetail renders detailed information for one position.
func RenderPositionDetail(pos *exchanges.Position) string {
	var content strings.Builder

	content.WriteString("📊 Position Details\n\n")

	if pos == nil {
		mutedStyle := lipgloss.NewStyle().Foreground(mutedColor)
		return boxStyle.Render(content.String() + mutedStyle.Render("No position selected"))
	}

	sideStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	side := "LONG"
	if pos.Side == exchanges.OrderSideSell {
		sideStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
		side = "SHORT"
	}

	content.WriteString(fmt.Sprintf("Symbol:        %s\n", pos.Symbol))
	content.WriteString(fmt.Sprintf("Side:          %s\n", sideStyle.Render(side)))
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Entry Price:   $%s\n", pos.EntryPrice.StringFixed(2)))
	content.WriteString(fmt.Sprintf("Mark Price:    $%s\n", pos.MarkPrice.StringFixed(2)))
	if !pos.LiquidationPrice.IsZero() {
		content.WriteString(fmt.Sprintf("Liquidation:   $%s\n", pos.LiquidationPrice.StringFixed(2)))
	}
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Size:          %s\n", pos.Size.StringFixed(4)))
	content.WriteString(fmt.Sprintf("Leverage:      %sx\n", pos.Leverage.StringFixed(0)))
	content.WriteString("\n")

	pnlStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	if pos.UnrealizedPnL.IsNegative() {
		pnlStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	}
	content.WriteString(fmt.Sprintf("Unrealized PnL: %s\n", pnlStyle.Render("$"+pos.UnrealizedPnL.StringFixed(2))))
	content.WriteString(fmt.Sprintf("Realized PnL:   $%s\n", pos.RealizedPnL.StringFixed(2)))

	if !pos.EntryPrice.IsZero() && !pos.Size.IsZero() {
		pnlPercent := pos.UnrealizedPnL.Div(pos.EntryPrice.Mul(pos.Size)).Mul(decimal.NewFromInt(100))
		content.WriteString(fmt.Sprintf("PnL %%:          %s\n", pnlStyle.Render(pnlPercent.StringFixed(2)+"%")))
	}

	return boxStyle.Render(content.String())
}

// RenderPositionSummary renders a summary across all open positions.
func RenderPositionSummary(positions []exchanges.Position) string {
	var content strings.Builder

	content.WriteString("💼 Position Summary\n\n")

	totalPositions := len(positions)
	longPositions := 0
	shortPositions := 0
	totalUnrealizedPnL := decimal.Zero
	totalRealizedPnL := decimal.Zero

	for _, pos := range positions {
		if pos.Side == exchanges.OrderSideBuy {
			longPositions++
		} else {
			shortPositions++
		}
		totalUnrealizedPnL = totalUnrealizedPnL.Add(pos.UnrealizedPnL)
		totalRealizedPnL = totalRealizedPnL.Add(pos.RealizedPnL)
	}

	content.WriteString(fmt.Sprintf("Total Positions: %d\n", totalPositions))
	content.WriteString(fmt.Sprintf("Long:            %s\n",
		lipgloss.NewStyle().Foreground(successColor).Render(fmt.Sprintf("%d", longPositions))))
	content.WriteString(fmt.Sprintf("Short:           %s\n",
		lipgloss.NewStyle().Foreground(errorColor).Render(fmt.Sprintf("%d", shortPositions))))
	content.WriteString("\n")

	pnlStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	if totalUnrealizedPnL.IsNegative() {
		pnlStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	}

	content.WriteString(fmt.Sprintf("Unrealized PnL: %s\n",
		pnlStyle.Render("$"+totalUnrealizedPnL.StringFixed(2))))
	content.WriteString(fmt.Sprintf("Realized PnL:   $%s\n",
		totalRealizedPnL.StringFixed(2)))

	totalPnL := totalUnrealizedPnL.Add(totalRealizedPnL)
	totalPnLStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	if totalPnL.IsNegative() {
		totalPnLStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	}
	content.WriteString(fmt.Sprintf("Total PnL:      %s\n",
		totalPnLStyle.Render("$"+totalPnL.StringFixed(2))))

	return boxStyle.Render(content.String())
}
