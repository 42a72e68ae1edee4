// Package strategy runs the tick loop that ties the Market Data Cache,
// Signal Evaluator, Pending-Order Manager and Position Manager together
// into the bot's single control flow, generalized from this file's own
// prior StrategyOrchestrator (mutex-guarded symbol dispatch, periodic
// reconciliation) into the tri-timeframe BB strategy.
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/guyghost/constantine/internal/control"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/pendingorder"
	"github.com/guyghost/constantine/internal/position"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/symbolmanager"
	"github.com/shopspring/decimal"
)

const symbolReloadInterval = 5 * time.Minute

// Orchestrator owns the bot's tick loop: per active symbol it keeps MDC
// subscriptions current, dispatches the LONG and SHORT TradeSlots to the
// Pending-Order or Position Manager, and on an empty, enabled slot asks
// the Signal Evaluator for a fresh candidate. Grounded on this package's
// prior StrategyOrchestrator (mutex-guarded strategies map, symbol
// manager interface, periodic UpdateActiveSymbols), restructured around
// the TradeSlot state machine instead of per-symbol ScalpingStrategy
// instances.
type Orchestrator struct {
	exchange  exchanges.Exchange
	cache     *marketdata.Cache
	evaluator *signal.Evaluator
	pom       *pendingorder.Manager
	pm        *position.Manager
	store     *state.Store
	symbols   *symbolmanager.SymbolManager
	control   control.Channel
	risk      *risk.Manager

	riskCfg              risk.RiskConfig
	tickInterval         time.Duration
	symbolConfigFilePath string
	defaultSymbol        string

	log *logger.Logger

	mu         sync.Mutex
	leveraged  map[string]bool
	lastReload time.Time
}

// Config carries the construction-time dependencies an Orchestrator
// needs. RiskCfg is the process-wide risk-mode configuration (see
// internal/config), applied identically to every symbol; a symbol's
// FixedQuantity does not override it.
type Config struct {
	Exchange             exchanges.Exchange
	Cache                *marketdata.Cache
	Store                *state.Store
	Symbols              *symbolmanager.SymbolManager
	Control              control.Channel
	PortfolioRisk        *risk.Manager
	RiskCfg              risk.RiskConfig
	TickInterval         time.Duration
	SymbolConfigFilePath string
	DefaultSymbol        string
}

// NewOrchestrator constructs an Orchestrator wiring a fresh
// Pending-Order Manager and Position Manager over cfg's exchange,
// cache, and store.
func NewOrchestrator(cfg Config) *Orchestrator {
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 15 * time.Second
	}

	o := &Orchestrator{
		exchange:             cfg.Exchange,
		cache:                cfg.Cache,
		evaluator:            signal.NewEvaluator(cfg.Cache),
		pom:                  pendingorder.NewManager(cfg.Exchange, cfg.Cache, cfg.Store),
		pm:                   position.NewManager(cfg.Exchange, cfg.Store),
		store:                cfg.Store,
		symbols:              cfg.Symbols,
		control:              cfg.Control,
		risk:                 cfg.PortfolioRisk,
		riskCfg:              cfg.RiskCfg,
		tickInterval:         tickInterval,
		symbolConfigFilePath: cfg.SymbolConfigFilePath,
		defaultSymbol:        cfg.DefaultSymbol,
		log:                  logger.Component("orchestrator"),
		leveraged:            make(map[string]bool),
	}
	if o.control == nil {
		o.control = control.NoopChannel{}
	}
	return o
}

// SetPendingOrderEventCallback forwards to the internal Pending-Order Manager.
func (o *Orchestrator) SetPendingOrderEventCallback(callback func(*pendingorder.Event)) {
	o.pom.SetEventCallback(callback)
}

// SetPositionEventCallback forwards to the internal Position Manager.
func (o *Orchestrator) SetPositionEventCallback(callback func(*position.Event)) {
	o.pm.SetEventCallback(callback)
}

// Run blocks ticking every o.tickInterval until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	o.reloadSymbols()
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()

		if time.Since(o.lastReload) >= symbolReloadInterval {
			o.reloadSymbols()
		}
		o.reconcileSubscriptions(ctx)
		o.tick(ctx)

		elapsed := time.Since(start)
		sleep := o.tickInterval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (o *Orchestrator) reloadSymbols() {
	if o.symbolConfigFilePath == "" {
		o.lastReload = time.Now()
		return
	}
	if err := o.symbols.Reconcile(o.symbolConfigFilePath, o.defaultSymbol); err != nil {
		o.log.WithError(err).Warn("failed to reconcile symbol configuration file")
	}
	o.lastReload = time.Now()
}

// reconcileSubscriptions ensures every active symbol's three intervals
// are subscribed on the Market Data Cache and its leverage is set
// exactly once (SetLeverage is idempotent but we avoid a redundant
// round-trip every tick).
func (o *Orchestrator) reconcileSubscriptions(ctx context.Context) {
	for _, symbol := range o.symbols.GetActiveSymbols() {
		cfg, err := o.symbols.GetSymbolConfig(symbol)
		if err != nil {
			continue
		}

		params := marketdata.BBParams{Length: cfg.Length, MultOrig: cfg.MultOrig, MultNew: cfg.MultNew}
		if err := o.cache.Subscribe(ctx, symbol, cfg.PrimaryInterval, cfg.DataLimit5m, params); err != nil {
			o.log.Symbol(symbol).WithError(err).Warn("failed to subscribe primary interval")
		}
		if err := o.cache.Subscribe(ctx, symbol, cfg.TriggerInterval, cfg.DataLimit5m, params); err != nil {
			o.log.Symbol(symbol).WithError(err).Warn("failed to subscribe trigger interval")
		}
		if err := o.cache.Subscribe(ctx, symbol, cfg.SLReferenceInterval, cfg.DataLimit5m, params); err != nil {
			o.log.Symbol(symbol).WithError(err).Warn("failed to subscribe SL-reference interval")
		}

		o.mu.Lock()
		alreadySet := o.leveraged[symbol]
		o.mu.Unlock()
		if alreadySet {
			continue
		}
		if err := o.exchange.SetLeverage(ctx, symbol, cfg.Leverage); err != nil {
			o.log.Symbol(symbol).WithError(err).Warn("failed to set leverage")
			continue
		}
		o.mu.Lock()
		o.leveraged[symbol] = true
		o.mu.Unlock()
	}
}

// tick dispatches both TradeSlots of every active, enabled symbol.
func (o *Orchestrator) tick(ctx context.Context) {
	globalEnabled := o.control.IsEnabled(ctx)

	for _, symbol := range o.symbols.GetActiveSymbols() {
		cfg, err := o.symbols.GetSymbolConfig(symbol)
		if err != nil || !cfg.Enabled {
			continue
		}
		symbolEnabled := globalEnabled && o.control.IsSymbolEnabled(ctx, symbol)

		o.dispatchSlot(ctx, symbol, exchanges.PositionSideLong, *cfg, symbolEnabled)
		o.dispatchSlot(ctx, symbol, exchanges.PositionSideShort, *cfg, symbolEnabled)
	}
}

func (o *Orchestrator) dispatchSlot(ctx context.Context, symbol string, side exchanges.PositionSide, cfg symbolmanager.SymbolConfig, enabled bool) {
	slot := o.pom.LoadSlot(symbol, side)
	key := slot.Key

	switch slot.Status {
	case pendingorder.StatusOpen:
		riskCfg := position.RiskConfig{UseMartingaleLossRecovery: o.riskCfg.UseMartingaleLossRecovery}
		o.pm.Manage(ctx, key, symbol, slot.Open, riskCfg)
		return

	case pendingorder.StatusPending:
		slotCfg := o.slotConfig(ctx, symbol, cfg)
		if _, err := o.pom.Manage(ctx, slot, slotCfg); err != nil {
			o.log.Symbol(symbol).WithError(err).Warn("pending-order management failed")
		}
		return

	case pendingorder.StatusEmpty:
		if !enabled {
			return
		}
		o.tryEnter(ctx, symbol, side, cfg)
	}
}

// tryEnter asks the Signal Evaluator for a candidate and, on a match,
// sizes it and seeds a fresh Pending-Order slot.
func (o *Orchestrator) tryEnter(ctx context.Context, symbol string, side exchanges.PositionSide, cfg symbolmanager.SymbolConfig) {
	candidate, ok := o.evaluator.Evaluate(ctx, symbol, cfg.PrimaryInterval, cfg.TriggerInterval, cfg.SLReferenceInterval)
	if !ok {
		return
	}
	if !candidateMatchesSide(candidate, side) {
		return
	}

	filters, err := o.exchange.GetSymbolFilters(ctx, symbol)
	if err != nil {
		o.log.Symbol(symbol).WithError(err).Warn("failed to fetch symbol filters")
		return
	}

	balance, err := o.accountBalance(ctx)
	if err != nil {
		o.log.Symbol(symbol).WithError(err).Warn("failed to fetch account balance")
		return
	}

	key := symbol + "_" + string(side)
	accumulatedLoss := o.store.GetAccumulatedLoss(key)

	if o.risk != nil {
		notional := candidate.Entry.Mul(o.fallbackQuantity(cfg, balance, candidate.Entry))
		if err := o.risk.ValidatePortfolio(o.openSlotCount(), notional, candidate.SLRef); err != nil {
			o.log.Symbol(symbol).WithField("reason", err.Error()).Debug("entry rejected by portfolio risk gate")
			return
		}
	}

	trade, err := risk.SizeAndValidate(candidate, balance, accumulatedLoss, filters, o.riskCfg)
	if err != nil {
		o.log.Symbol(symbol).WithError(err).Warn("risk configuration could not resolve a monetary risk amount")
		return
	}
	if trade == nil {
		return
	}

	o.pom.TryEnter(symbol, side, candidate, trade)
}

func candidateMatchesSide(candidate *signal.Candidate, side exchanges.PositionSide) bool {
	switch side {
	case exchanges.PositionSideLong:
		return candidate.Side == signal.SideBuy
	case exchanges.PositionSideShort:
		return candidate.Side == signal.SideSell
	default:
		return false
	}
}

func (o *Orchestrator) accountBalance(ctx context.Context) (decimal.Decimal, error) {
	balances, err := o.exchange.GetBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Total)
	}
	return total, nil
}

// fallbackQuantity is used only for the pre-sizing portfolio notional
// check; the authoritative quantity comes from risk.SizeAndValidate.
func (o *Orchestrator) fallbackQuantity(cfg symbolmanager.SymbolConfig, balance, entry decimal.Decimal) decimal.Decimal {
	if cfg.FixedQuantity.GreaterThan(decimal.Zero) {
		return cfg.FixedQuantity
	}
	if entry.IsZero() {
		return decimal.Zero
	}
	return balance.Mul(decimal.NewFromFloat(0.01)).Div(entry)
}

func (o *Orchestrator) openSlotCount() int {
	count := 0
	for _, symbol := range o.symbols.GetActiveSymbols() {
		for _, side := range []exchanges.PositionSide{exchanges.PositionSideLong, exchanges.PositionSideShort} {
			if slot := o.pom.LoadSlot(symbol, side); slot.Status != pendingorder.StatusEmpty {
				count++
			}
		}
	}
	return count
}

func (o *Orchestrator) slotConfig(ctx context.Context, symbol string, cfg symbolmanager.SymbolConfig) pendingorder.SlotConfig {
	filters, err := o.exchange.GetSymbolFilters(ctx, symbol)
	if err != nil {
		o.log.Symbol(symbol).WithError(err).Warn("failed to fetch symbol filters for slot management")
		filters = &exchanges.SymbolFilters{}
	}
	return pendingorder.SlotConfig{
		PrimaryInterval:        cfg.PrimaryInterval,
		TriggerInterval:        cfg.TriggerInterval,
		SLReferenceInterval:    cfg.SLReferenceInterval,
		PrimaryIntervalSeconds: intervalSeconds(cfg.PrimaryInterval),
		RiskRewardMultiplier:   o.riskCfg.RiskRewardMultiplier,
		Filters:                filters,
	}
}

func intervalSeconds(interval string) int {
	switch interval {
	case "1m":
		return 60
	case "5m":
		return 300
	case "15m":
		return 900
	case "1h":
		return 3600
	default:
		return 300
	}
}
