package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guyghost/constantine/internal/tui/components"
	"github.com/shopspring/decimal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF87")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4")).
			Padding(0, 1)

	activeTabStyle = tabStyle.Foreground(lipgloss.Color("#00FF87")).Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Padding(0, 1)
)

// View renders the active screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.activeView {
	case ViewDashboard:
		b.WriteString(m.renderDashboard())
	case ViewPositions:
		b.WriteString(components.RenderPositions(m.positions))
	case ViewSymbols:
		b.WriteString(m.renderSymbols())
	case ViewOrderBook:
		b.WriteString(components.RenderOrderBook(m.orderBook, 10))
		b.WriteString("\n")
		b.WriteString(components.RenderOrderBookDepth(m.orderBook, 10))
	case ViewHelp:
		b.WriteString(m.renderHelp())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	if err, at := m.GetError(); err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("error at %s: %s", at.Format("15:04:05"), err)))
	}

	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("constantine")

	tabs := []struct {
		label string
		view  View
	}{
		{"1:dashboard", ViewDashboard},
		{"2:positions", ViewPositions},
		{"3:symbols", ViewSymbols},
		{"4:orderbook", ViewOrderBook},
		{"5:help", ViewHelp},
	}

	var rendered []string
	for _, t := range tabs {
		if t.view == m.activeView {
			rendered = append(rendered, activeTabStyle.Render(t.label))
		} else {
			rendered = append(rendered, tabStyle.Render(t.label))
		}
	}

	return title + "  " + strings.Join(rendered, " ")
}

func (m Model) renderStatusBar() string {
	status := "stopped"
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	if m.IsRunning() {
		status = "running"
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF87"))
	}
	return tabStyle.Render("q:quit  r:refresh  c:clear-error  |  ") + statusStyle.Render(status)
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString("keybindings\n\n")
	b.WriteString("1        dashboard view\n")
	b.WriteString("2        positions view\n")
	b.WriteString("3        symbols view\n")
	b.WriteString("4        order book view (first active symbol)\n")
	b.WriteString("5        this screen\n")
	b.WriteString("r        refresh data now\n")
	b.WriteString("c        clear the last error\n")
	b.WriteString("q/ctrl+c quit\n")
	return b.String()
}

func (m Model) renderDashboard() string {
	total := m.totalBalance()

	var canTrade bool
	var reason string
	consecutiveLosses := 0
	tradesExecuted := 0
	maxTrades := 0
	if m.riskManager != nil {
		canTrade, reason = m.riskManager.CanTrade()
		consecutiveLosses = m.riskManager.GetConsecutiveLosses()
		tradesExecuted = m.riskManager.GetDailyTradeCount()
	}

	cards := []string{
		components.RenderBalanceCard(total, m.riskDailyPnL(), m.riskTotalPnL()),
		components.RenderStatsCard(m.riskStats),
		components.RenderRiskCard(canTrade, reason, consecutiveLosses, tradesExecuted, maxTrades),
		components.RenderActivityCard(m.recentMessages(8)),
	}

	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func (m Model) renderSymbols() string {
	var b strings.Builder
	b.WriteString("configured symbols\n\n")

	if m.symbols == nil {
		b.WriteString("no symbol manager configured\n")
		return b.String()
	}

	for _, symbol := range m.symbols.GetAllSymbols() {
		cfg, err := m.symbols.GetSymbolConfig(symbol)
		if err != nil {
			continue
		}
		status := "disabled"
		if cfg.Enabled {
			status = "enabled"
		}
		b.WriteString(fmt.Sprintf("%-14s %-9s primary=%-4s trigger=%-4s sl_ref=%-4s length=%-3d mult=%.1f/%.1f leverage=%dx\n",
			symbol, status, cfg.PrimaryInterval, cfg.TriggerInterval, cfg.SLReferenceInterval,
			cfg.Length, cfg.MultOrig, cfg.MultNew, cfg.Leverage))
	}

	return b.String()
}

func (m Model) recentMessages(count int) []string {
	if len(m.messages) <= count {
		return m.messages
	}
	return m.messages[len(m.messages)-count:]
}

func (m Model) riskDailyPnL() decimal.Decimal {
	if m.riskStats == nil {
		return decimal.Zero
	}
	return m.riskStats.DailyPnL
}

func (m Model) riskTotalPnL() decimal.Decimal {
	if m.riskStats == nil {
		return decimal.Zero
	}
	return m.riskStats.NetPnL
}
