package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/risk"
)

// dataMsg carries a fetchData poll result back into Update, which is
// the only place allowed to mutate Model state.
type dataMsg struct {
	balances  []exchanges.Balance
	positions []exchanges.Position
	riskStats *risk.Stats
	orderBook *exchanges.OrderBook
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.UpdateDimensions(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchData(), tickCmd())

	case dataMsg:
		m.UpdateBalances(msg.balances)
		m.UpdatePositions(msg.positions)
		if msg.riskStats != nil {
			m.UpdateRiskStats(msg.riskStats)
		}
		if msg.orderBook != nil {
			m.UpdateOrderBook(msg.orderBook)
		}
		return m, nil

	case errorMsg:
		m.SetError(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "1":
		m.SetActiveView(ViewDashboard)
		return m, nil

	case "2":
		m.SetActiveView(ViewPositions)
		return m, nil

	case "3":
		m.SetActiveView(ViewSymbols)
		return m, nil

	case "4":
		m.SetActiveView(ViewOrderBook)
		return m, nil

	case "5":
		m.SetActiveView(ViewHelp)
		return m, nil

	case "c":
		m.ClearError()
		return m, nil

	case "r":
		return m, m.fetchData()
	}

	return m, nil
}

// fetchData polls the exchange and portfolio risk manager for the
// latest balances, positions and statistics.
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		result := dataMsg{}

		if m.exchange != nil {
			balances, err := m.exchange.GetBalance(ctx)
			if err != nil {
				return errorMsg(err)
			}
			result.balances = balances

			positions, err := m.exchange.GetPositions(ctx)
			if err != nil {
				return errorMsg(err)
			}
			result.positions = positions

			if symbol := m.firstActiveSymbol(); symbol != "" {
				if ob, err := m.exchange.GetOrderBook(ctx, symbol, 10); err == nil {
					result.orderBook = ob
				}
			}
		}

		if m.riskManager != nil {
			result.riskStats = m.riskManager.GetStats()
		}

		return result
	}
}
