package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guyghost/constantine/internal/config"
	"github.com/guyghost/constantine/internal/control"
	"github.com/guyghost/constantine/internal/exchanges/futuresrest"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/pendingorder"
	"github.com/guyghost/constantine/internal/position"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/strategy"
	"github.com/guyghost/constantine/internal/symbolmanager"
	"github.com/guyghost/constantine/internal/tui"
	"github.com/joho/godotenv"
)

var headless = flag.Bool("headless", false, "Run in headless mode without TUI")

func main() {
	godotenv.Load()
	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	appLog := logger.Component("main")

	exchange := futuresrest.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.UseTestnet)
	if err := exchange.Connect(ctx); err != nil {
		return err
	}
	defer exchange.Disconnect()

	cache := marketdata.New(ctx, exchange, logger.Component("marketdata"))
	defer cache.Shutdown()

	store := state.NewStore(cfg.StateFilePath)

	symbols := symbolmanager.NewSymbolManager()
	if err := symbols.Reconcile(cfg.SymbolConfigFilePath, cfg.StrategySymbol); err != nil {
		appLog.WithError(err).Warn("failed to load symbol configuration file, starting with no symbols")
	}

	portfolioRisk := risk.NewManager(risk.LoadConfig(), cfg.InitialBalance)

	riskCfg := risk.RiskConfig{
		UseFixedMonetaryRiskSL:    cfg.Risk.UseFixedMonetaryRiskSL,
		FixedMonetaryRiskPerTrade: cfg.Risk.FixedMonetaryRiskPerTrade,
		UsePercentageRisk:         cfg.Risk.UsePercentageRisk,
		RiskPercentagePerTrade:    cfg.Risk.RiskPercentagePerTrade,
		UseMartingaleLossRecovery: cfg.Risk.UseMartingaleLossRecovery,
		MartingaleDivisorK:        cfg.Risk.MartingaleDivisorK,
		RiskRewardMultiplier:      cfg.Risk.RiskRewardMultiplier,
	}

	orchestrator := strategy.NewOrchestrator(strategy.Config{
		Exchange:             exchange,
		Cache:                cache,
		Store:                store,
		Symbols:              symbols,
		Control:              control.NoopChannel{},
		PortfolioRisk:        portfolioRisk,
		RiskCfg:              riskCfg,
		TickInterval:         cfg.TickInterval,
		SymbolConfigFilePath: cfg.SymbolConfigFilePath,
		DefaultSymbol:        cfg.StrategySymbol,
	})

	orchestrator.SetPendingOrderEventCallback(func(event *pendingorder.Event) {
		appLog.Symbol(event.Symbol).Info(event.Message)
	})
	orchestrator.SetPositionEventCallback(func(event *position.Event) {
		appLog.Symbol(event.Symbol).Info(event.Message)
	})

	go orchestrator.Run(ctx)

	if *headless {
		<-ctx.Done()
		appLog.Info("shutting down")
		return nil
	}

	model := tui.NewModel(exchange, symbols, portfolioRisk)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
