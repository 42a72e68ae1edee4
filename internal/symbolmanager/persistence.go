package symbolmanager

import (
	"encoding/json"
	"os"

	"github.com/guyghost/constantine/internal/logger"
	"github.com/shopspring/decimal"
)

// fileEntry is the on-disk shape for one symbol, keyed by symbol name
// in the top-level JSON object.
type fileEntry struct {
	PrimaryInterval     string  `json:"primary_interval"`
	TriggerInterval     string  `json:"trigger_interval"`
	SLReferenceInterval string  `json:"sl_reference_interval"`
	MAType              string  `json:"ma_type"`
	Length              int     `json:"length"`
	MultOrig            float64 `json:"mult_orig"`
	MultNew             float64 `json:"mult_new"`
	DataLimit5m         int     `json:"data_limit_5m"`
	FixedQuantity       string  `json:"fixed_quantity"`
	Leverage            int     `json:"leverage"`
	Active              bool    `json:"active"`
}

// LoadFromFile returns path's JSON symbol map. A missing file is not an
// error: the caller is expected to fall back to a single-symbol default,
// so LoadFromFile reports ok=false for "nothing on disk". A file that
// does not parse is logged and also reported as ok=false with a nil
// error; only a failure to read an existing file returns an error.
func LoadFromFile(path string) (map[string]SymbolConfig, bool, error) {
	log := logger.Component("symbolmanager")

	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var raw map[string]fileEntry
	if err := json.Unmarshal(bs, &raw); err != nil {
		log.WithError(err).Warn("symbol config file is corrupt, ignoring")
		return nil, false, nil
	}

	out := make(map[string]SymbolConfig, len(raw))
	for symbol, entry := range raw {
		cfg := DefaultSymbolConfig(symbol)
		if entry.PrimaryInterval != "" {
			cfg.PrimaryInterval = entry.PrimaryInterval
		}
		if entry.TriggerInterval != "" {
			cfg.TriggerInterval = entry.TriggerInterval
		}
		if entry.MAType != "" {
			cfg.MAType = entry.MAType
		}
		if entry.Length > 0 {
			cfg.Length = entry.Length
		}
		if entry.MultOrig > 0 {
			cfg.MultOrig = entry.MultOrig
		}
		if entry.MultNew > 0 {
			cfg.MultNew = entry.MultNew
		}
		if entry.DataLimit5m > 0 {
			cfg.DataLimit5m = entry.DataLimit5m
		}
		if entry.FixedQuantity != "" {
			if qty, err := decimal.NewFromString(entry.FixedQuantity); err == nil {
				cfg.FixedQuantity = qty
			}
		}
		if entry.Leverage > 0 {
			cfg.Leverage = entry.Leverage
		}
		cfg.Enabled = entry.Active
		out[symbol] = cfg
	}
	return out, true, nil
}

// SaveToFile writes symbols to path via temp-file+rename,
// the same atomic-write shape internal/state.Store uses for persistent
// trade state.
func SaveToFile(path string, symbols map[string]SymbolConfig) error {
	raw := make(map[string]fileEntry, len(symbols))
	for symbol, cfg := range symbols {
		raw[symbol] = fileEntry{
			PrimaryInterval:     cfg.PrimaryInterval,
			TriggerInterval:     cfg.TriggerInterval,
			SLReferenceInterval: cfg.SLReferenceInterval,
			MAType:              cfg.MAType,
			Length:              cfg.Length,
			MultOrig:            cfg.MultOrig,
			MultNew:             cfg.MultNew,
			DataLimit5m:         cfg.DataLimit5m,
			FixedQuantity:       cfg.FixedQuantity.String(),
			Leverage:            cfg.Leverage,
			Active:              cfg.Enabled,
		}
	}

	bs, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadOrDefault loads path, or if it does not exist or does not parse,
// seeds a single-symbol default for defaultSymbol and writes it to path
// (overwriting an unparsable file) so subsequent restarts find it on
// disk.
func LoadOrDefault(path, defaultSymbol string) (map[string]SymbolConfig, error) {
	symbols, ok, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return symbols, nil
	}

	symbols = map[string]SymbolConfig{
		defaultSymbol: DefaultSymbolConfig(defaultSymbol),
	}
	if err := SaveToFile(path, symbols); err != nil {
		logger.Component("symbolmanager").WithError(err).Warn("failed to write default symbol config file")
	}
	return symbols, nil
}

// Reconcile loads path (seeding a defaultSymbol default if it does not
// exist yet or does not parse) and adds, updates, or removes sm's symbols to match what
// the file now contains. Grounded on
// internal/strategy/orchestrator.go's UpdateActiveSymbols reconciliation
// shape, driving the Orchestrator's periodic symbol-config reload.
func (sm *SymbolManager) Reconcile(path, defaultSymbol string) error {
	desired, err := LoadOrDefault(path, defaultSymbol)
	if err != nil {
		return err
	}

	sm.mu.Lock()
	current := make(map[string]struct{}, len(sm.symbols))
	for symbol := range sm.symbols {
		current[symbol] = struct{}{}
	}
	sm.mu.Unlock()

	for symbol, cfg := range desired {
		if _, exists := current[symbol]; exists {
			if err := sm.UpdateSymbolConfig(symbol, cfg); err != nil {
				return err
			}
		} else {
			if err := sm.AddSymbol(symbol, cfg); err != nil {
				return err
			}
		}
		delete(current, symbol)
	}

	for symbol := range current {
		if err := sm.RemoveSymbol(symbol); err != nil {
			return err
		}
	}
	return nil
}
