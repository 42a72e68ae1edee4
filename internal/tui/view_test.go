package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/symbolmanager"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	symbols := symbolmanager.NewSymbolManager()
	if err := symbols.AddSymbol("BTC-USD", symbolmanager.DefaultSymbolConfig("BTC-USD")); err != nil {
		t.Fatal(err)
	}
	riskManager := risk.NewManager(risk.DefaultConfig(), decimal.NewFromFloat(10000))
	return NewModel(exchanges.NewMockExchange("test"), symbols, riskManager)
}

func TestView_RendersEachTabWithoutPanicking(t *testing.T) {
	m := newTestModel(t)

	views := []View{ViewDashboard, ViewPositions, ViewSymbols, ViewOrderBook, ViewHelp}
	for _, v := range views {
		m.SetActiveView(v)
		out := m.View()
		assert.NotEmpty(t, out)
	}
}

func TestUpdate_KeyFourSwitchesToOrderBookView(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	mm := updated.(Model)
	assert.Equal(t, ViewOrderBook, mm.GetActiveView())
}

func TestUpdate_KeyFiveSwitchesToHelpView(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5")})
	mm := updated.(Model)
	assert.Equal(t, ViewHelp, mm.GetActiveView())
}

func TestUpdate_DataMsgAppliesOrderBook(t *testing.T) {
	m := newTestModel(t)
	ob := &exchanges.OrderBook{Symbol: "BTC-USD"}

	updated, _ := m.Update(dataMsg{orderBook: ob})
	mm := updated.(Model)
	assert.Same(t, ob, mm.orderBook)
}

func TestRenderHeader_ListsAllTabs(t *testing.T) {
	m := newTestModel(t)
	header := m.renderHeader()

	for _, label := range []string{"dashboard", "positions", "symbols", "orderbook", "help"} {
		assert.True(t, strings.Contains(header, label), "header missing tab %q", label)
	}
}
