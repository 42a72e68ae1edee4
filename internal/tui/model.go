package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/symbolmanager"
	"github.com/shopspring/decimal"
)

// Model represents the TUI application model: a read-only dashboard
// over the running Orchestrator's exchange connection, symbol set, and
// portfolio risk manager. It does not drive the bot (the Orchestrator's
// own tick loop runs independently); it only polls and renders state.
type Model struct {
	exchange    exchanges.Exchange
	symbols     *symbolmanager.SymbolManager
	riskManager *risk.Manager

	running bool

	width      int
	height     int
	activeView View
	lastUpdate time.Time

	balances  []exchanges.Balance
	positions []exchanges.Position
	riskStats *risk.Stats
	orderBook *exchanges.OrderBook
	messages  []string

	lastError error
	errorTime time.Time
}

// View represents the active view.
type View int

const (
	ViewDashboard View = iota
	ViewPositions
	ViewSymbols
	ViewOrderBook
	ViewHelp
)

// NewModel creates a new TUI model over a running bot's shared state.
func NewModel(exchange exchanges.Exchange, symbols *symbolmanager.SymbolManager, riskManager *risk.Manager) Model {
	return Model{
		exchange:    exchange,
		symbols:     symbols,
		riskManager: riskManager,
		running:     true,
		activeView:  ViewDashboard,
		messages:    make([]string, 0),
		lastUpdate:  time.Now(),
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

type tickMsg time.Time
type errorMsg error

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// AddMessage appends a timestamped line to the activity log, keeping
// only the most recent 100 entries.
func (m *Model) AddMessage(message string) {
	timestamp := time.Now().Format("15:04:05")
	m.messages = append(m.messages, timestamp+" "+message)
	if len(m.messages) > 100 {
		m.messages = m.messages[1:]
	}
}

func (m *Model) IsRunning() bool       { return m.running }
func (m *Model) SetRunning(r bool)     { m.running = r }
func (m *Model) GetActiveView() View   { return m.activeView }
func (m *Model) SetActiveView(v View)  { m.activeView = v }

func (m *Model) UpdateDimensions(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) UpdateBalances(balances []exchanges.Balance) {
	m.balances = balances
}

func (m *Model) UpdatePositions(positions []exchanges.Position) {
	m.positions = positions
}

func (m *Model) UpdateRiskStats(stats *risk.Stats) {
	m.riskStats = stats
}

func (m *Model) UpdateOrderBook(ob *exchanges.OrderBook) {
	m.orderBook = ob
}

func (m *Model) SetError(err error) {
	m.lastError = err
	m.errorTime = time.Now()
	if err != nil {
		m.AddMessage("Error: " + err.Error())
	}
}

func (m *Model) GetError() (error, time.Time) { return m.lastError, m.errorTime }
func (m *Model) ClearError()                  { m.lastError = nil }

func (m *Model) firstActiveSymbol() string {
	if m.symbols == nil {
		return ""
	}
	active := m.symbols.GetActiveSymbols()
	if len(active) == 0 {
		return ""
	}
	return active[0]
}

func (m *Model) totalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, b := range m.balances {
		total = total.Add(b.Total)
	}
	return total
}
