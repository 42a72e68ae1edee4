package state

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/guyghost/constantine/internal/logger"
	"github.com/shopspring/decimal"
)

// PendingTrade is the persisted record for a slot sitting in
// PENDING_DYNAMIC_LIMIT: the target bracket prices, the live entry
// order ID, the band snapshot used for the dynamic-limit gate, and the
// monetary risk basis carried from sizing.
type PendingTrade struct {
	SignalType               string          `json:"signal_type"`
	TargetEntryPrice         decimal.Decimal `json:"target_entry_price"`
	TargetSLPrice            decimal.Decimal `json:"target_sl_price"`
	TargetTPPrice            decimal.Decimal `json:"target_tp_price"`
	Quantity                 decimal.Decimal `json:"quantity"`
	CurrentEntryOrderID      string          `json:"current_entry_order_id"`
	PreCheckBBLOrigPrimary   decimal.Decimal `json:"pre_check_bbl_orig_primary"`
	PreCheckBBUOrigPrimary   decimal.Decimal `json:"pre_check_bbu_orig_primary"`
	PreCheckBBMSLRef         decimal.Decimal `json:"pre_check_bbm_sl_ref"`
	GateBandPrimaryLower     decimal.Decimal `json:"gate_band_primary_lower"`
	GateBandPrimaryUpper     decimal.Decimal `json:"gate_band_primary_upper"`
	GatingBBMOrigPrimary     decimal.Decimal `json:"gating_bbm_orig_primary"`
	LastPrimaryUpdateTSUTC   int64           `json:"last_primary_update_ts_utc"`
	TargetMonetaryRiskTrade  decimal.Decimal `json:"target_monetary_risk_trade"`
	AccumulatedLossAtEntry   decimal.Decimal `json:"accumulated_loss_at_entry"`
}

// OpenPosition is the persisted record for a slot sitting in
// POSITION_OPEN: the filled entry, the live SL/TP order IDs, and
// whether the unprotected-position alert has already fired.
type OpenPosition struct {
	Quantity        decimal.Decimal `json:"quantity"`
	EntryPriceActual decimal.Decimal `json:"entry_price_actual"`
	PositionSide    string          `json:"position_side"`
	SLOrderID       string          `json:"sl_order_id"`
	TPOrderID       string          `json:"tp_order_id"`
	NoSLAlertSent   bool            `json:"no_sl_alert_sent"`
}

// ActiveTrade is the persisted tagged union for one TradeSlot key:
// exactly one of Pending/Open is non-nil (EMPTY slots are never written
// to disk, only cleared). Sentinel entries such as
// "{key}_NO_SL_ALERT_SENT" carry only a Status, with both nil.
type ActiveTrade struct {
	Status  string        `json:"status"`
	Pending *PendingTrade `json:"pending,omitempty"`
	Open    *OpenPosition `json:"open,omitempty"`
}

type fileSchema struct {
	ActiveTrades      map[string]ActiveTrade     `json:"active_trades"`
	AccumulatedLosses map[string]decimal.Decimal `json:"accumulated_losses"`
}

// Store is the atomic JSON-backed Persistent State Store: two sections,
// active_trades and accumulated_losses, written via temp-file+rename so
// a crash mid-write never corrupts the previous good state. Grounded
// verbatim on chidi150c-coinbase/trader.go's saveStateFrom/loadState.
type Store struct {
	path string
	log  *logger.Logger

	mu     sync.Mutex
	trades map[string]ActiveTrade
	losses map[string]decimal.Decimal
}

// NewStore loads path if it exists, or starts from empty state. A
// corrupt file logs a warning and starts empty rather than failing
// startup.
func NewStore(path string) *Store {
	s := &Store{
		path:   path,
		log:    logger.Component("state"),
		trades: make(map[string]ActiveTrade),
		losses: make(map[string]decimal.Decimal),
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var schema fileSchema
	if err := json.Unmarshal(bs, &schema); err != nil {
		s.log.WithError(err).Warn("persistent state file is corrupt, starting empty")
		return s
	}
	if schema.ActiveTrades != nil {
		s.trades = schema.ActiveTrades
	}
	if schema.AccumulatedLosses != nil {
		s.losses = schema.AccumulatedLosses
	}
	return s
}

func (s *Store) saveLocked() error {
	schema := fileSchema{
		ActiveTrades:      s.trades,
		AccumulatedLosses: s.losses,
	}
	bs, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// SetActiveTrade writes the given ActiveTrade under key (including
// sentinel sub-slot keys such as "{key}_NO_SL_ALERT_SENT") and persists.
func (s *Store) SetActiveTrade(key string, trade ActiveTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[key] = trade
	return s.saveLocked()
}

// GetActiveTrade returns the ActiveTrade for key, if any.
func (s *Store) GetActiveTrade(key string) (ActiveTrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[key]
	return t, ok
}

// ClearActiveTrade removes key's ActiveTrade entirely (used on slot
// destruction) and persists.
func (s *Store) ClearActiveTrade(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trades, key)
	return s.saveLocked()
}

// GetAccumulatedLoss returns key's accumulated loss, zero if absent.
func (s *Store) GetAccumulatedLoss(key string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.losses[key]; ok {
		return v
	}
	return decimal.Zero
}

// UpdateAccumulatedLoss adds |amount| to key's accumulated loss. The
// magnitude is clamped to its absolute value before adding, so a
// malformed negative input can never subtract.
func (s *Store) UpdateAccumulatedLoss(key string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.losses[key]
	s.losses[key] = current.Add(amount.Abs())
	return s.saveLocked()
}

// ResetAccumulatedLoss zeroes key's accumulated loss. The key is
// always created if absent, so a reset is never a no-op.
func (s *Store) ResetAccumulatedLoss(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.losses[key] = decimal.Zero
	return s.saveLocked()
}
