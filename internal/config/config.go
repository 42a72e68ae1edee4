package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeConfig represents configuration for the futures exchange
// integration (a single centralized venue, see internal/exchanges/
// futuresrest).
type ExchangeConfig struct {
	Name       string
	APIKey     string
	APISecret  string
	UseTestnet bool
}

// RiskConfig mirrors internal/risk.RiskConfig's shape at the
// process-configuration layer, read from the USE_FIXED_MONETARY_RISK_SL,
// USE_PERCENTAGE_RISK_MANAGEMENT, and USE_MARTINGALE_LOSS_RECOVERY
// environment variables.
type RiskConfig struct {
	UseFixedMonetaryRiskSL    bool
	FixedMonetaryRiskPerTrade decimal.Decimal

	UsePercentageRisk      bool
	RiskPercentagePerTrade decimal.Decimal

	UseMartingaleLossRecovery bool
	MartingaleDivisorK        decimal.Decimal // read from MARTINGALE_DIVISOR_K; sizing divides by RiskRewardMultiplier instead

	RiskRewardMultiplier decimal.Decimal
}

// AppConfig aggregates configuration for the bot runtime.
type AppConfig struct {
	Environment    string
	TelemetryAddr  string
	InitialBalance decimal.Decimal
	StrategySymbol string

	Exchange ExchangeConfig
	Risk     RiskConfig

	TickInterval         time.Duration
	StateFilePath        string
	SymbolConfigFilePath string
}

// Load loads configuration from environment variables and validates it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Environment:    getEnv("APP_ENV", "development"),
		TelemetryAddr:  getEnv("TELEMETRY_ADDR", ":9100"),
		InitialBalance: getEnvDecimal("INITIAL_BALANCE", decimal.NewFromFloat(10000)),
		StrategySymbol: getEnv("TRADING_SYMBOL", "BTC-USD"),

		Exchange: ExchangeConfig{
			Name:       getEnv("EXCHANGE_NAME", "futures"),
			APIKey:     os.Getenv("FUTURES_API_KEY"),
			APISecret:  os.Getenv("FUTURES_API_SECRET"),
			UseTestnet: getEnvBool("FUTURES_USE_TESTNET", false),
		},

		Risk: RiskConfig{
			UseFixedMonetaryRiskSL:    getEnvBool("USE_FIXED_MONETARY_RISK_SL", true),
			FixedMonetaryRiskPerTrade: getEnvDecimal("FIXED_MONETARY_RISK_PER_TRADE", decimal.NewFromFloat(0.5)),
			UsePercentageRisk:         getEnvBool("USE_PERCENTAGE_RISK_MANAGEMENT", false),
			RiskPercentagePerTrade:    getEnvDecimal("RISK_PERCENTAGE_PER_TRADE", decimal.NewFromFloat(0.002)),
			UseMartingaleLossRecovery: getEnvBool("USE_MARTINGALE_LOSS_RECOVERY", true),
			MartingaleDivisorK:        getEnvDecimal("MARTINGALE_DIVISOR_K", decimal.NewFromFloat(10)),
			RiskRewardMultiplier:      getEnvDecimal("RISK_REWARD_MULTIPLIER", decimal.NewFromFloat(10)),
		},

		TickInterval:         getEnvDuration("LOOP_SLEEP_SECONDS", 15*time.Second),
		StateFilePath:        getEnv("STATE_FILE_PATH", "bot_trading_state.json"),
		SymbolConfigFilePath: getEnv("SYMBOLS_CONFIG_FILE_PATH", "symbols_config.json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	var missing []string

	if c.Exchange.APIKey == "" {
		missing = append(missing, "FUTURES_API_KEY")
	}
	if c.Exchange.APISecret == "" {
		missing = append(missing, "FUTURES_API_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	// Both risk-mode flags resolving at once is not fatal (fixed wins,
	// see internal/risk.SizeAndValidate's baseRisk precedence) but is
	// almost certainly a misconfiguration, so it only warns.
	if c.Risk.UseFixedMonetaryRiskSL && c.Risk.UsePercentageRisk {
		fmt.Fprintln(os.Stderr, "warning: both USE_FIXED_MONETARY_RISK_SL and USE_PERCENTAGE_RISK_MANAGEMENT are set; fixed monetary risk takes precedence")
	}
	if c.Risk.UseMartingaleLossRecovery && !c.Risk.RiskRewardMultiplier.GreaterThan(decimal.Zero) {
		fmt.Fprintln(os.Stderr, "warning: USE_MARTINGALE_LOSS_RECOVERY is set but RISK_REWARD_MULTIPLIER is not positive; martingale sizing will not engage")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// getEnvDuration reads key as a count of whole seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := decimal.NewFromString(value); err == nil {
		return parsed
	}
	return defaultValue
}
