package symbolmanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestLoadOrDefault_MissingFileSeedsSingleSymbolDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols_config.json")

	symbols, err := LoadOrDefault(path, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, symbols, 1)

	cfg := symbols["BTC-USD"]
	assert.Equal(t, "BTC-USD", cfg.Symbol)
	assert.Equal(t, "5m", cfg.PrimaryInterval)
	assert.Equal(t, "1m", cfg.TriggerInterval)
	assert.Equal(t, "15m", cfg.SLReferenceInterval)
	assert.Equal(t, "SMA", cfg.MAType)
	assert.Equal(t, 20, cfg.Length)
	assert.Equal(t, 2.0, cfg.MultOrig)
	assert.Equal(t, 1.0, cfg.MultNew)
	assert.Equal(t, 300, cfg.DataLimit5m)
	assert.Equal(t, 5, cfg.Leverage)
	assert.True(t, cfg.Enabled)

	loaded, ok, err := LoadFromFile(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cfg.Leverage, loaded["BTC-USD"].Leverage)
}

func TestLoadFromFile_PartialEntryFillsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols_config.json")
	symbols := map[string]SymbolConfig{
		"ETH-USD": {
			Leverage:      10,
			FixedQuantity: decimal.NewFromFloat(0.5),
			Enabled:       true,
			Symbol:        "ETH-USD",
		},
	}
	require.NoError(t, SaveToFile(path, symbols))

	loaded, ok, err := LoadFromFile(path)
	require.NoError(t, err)
	require.True(t, ok)

	cfg := loaded["ETH-USD"]
	assert.Equal(t, 10, cfg.Leverage)
	assert.True(t, cfg.FixedQuantity.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, cfg.Enabled)
	// Omitted BB fields fall back to the single-symbol defaults.
	assert.Equal(t, "SMA", cfg.MAType)
	assert.Equal(t, 20, cfg.Length)
}

func TestLoadFromFile_CorruptFileStartsEmptyWithoutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols_config.json")
	require.NoError(t, writeRaw(path, "{not valid json"))

	symbols, ok, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, symbols)
}
