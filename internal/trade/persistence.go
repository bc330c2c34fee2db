package trade

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nullpointer-labs/evmtrader/internal/db"
	"github.com/nullpointer-labs/evmtrader/internal/metrics"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// snapshot is the on-disk shape of the snapshot file, spec.md §4.6:
// rewritten atomically after every state change and every 60 s.
type snapshot struct {
	ActiveTrades   map[string]*model.ActiveTrade `json:"active_trades"`
	InactiveTrades []model.InactiveTrade         `json:"inactive_trades"`
	Summary        model.Summary                 `json:"summary"`
}

// logEntry is one line of the append-only trade log, spec.md §4.6.
// Status is one of SUCCESS, FAILED (a submitted swap that reverted or
// returned success=false) or ERROR (the action never reached submission,
// e.g. an approval or balance read failed).
type logEntry struct {
	Time          time.Time `json:"time"`
	Status        string    `json:"status"`
	Symbol        string    `json:"symbol,omitempty"`
	Pair          string    `json:"pair"`
	PolicyID      string    `json:"policy_id,omitempty"`
	Action        string    `json:"action"`
	ActionPercent int       `json:"action_percent,omitempty"`
	EthAmount     float64   `json:"eth_amount,omitempty"`
	TokenAmount   float64   `json:"token_amount,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Load reads the snapshot file at startup, tolerating both the current
// shape and the legacy flat form `{pair: trade}` (spec.md §4.6: migrate
// by moving each value into active_trades and discarding any summary
// key). A missing file is not an error: the agent starts with no trades.
func (l *Lifecycle) Load() error {
	data, err := os.ReadFile(l.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var withEnvelope struct {
		ActiveTrades   map[string]*model.ActiveTrade `json:"active_trades"`
		InactiveTrades []model.InactiveTrade         `json:"inactive_trades"`
	}
	if err := json.Unmarshal(data, &withEnvelope); err == nil && withEnvelope.ActiveTrades != nil {
		l.mu.Lock()
		l.active = withEnvelope.ActiveTrades
		l.inactive = withEnvelope.InactiveTrades
		l.mu.Unlock()
		return nil
	}

	// Legacy flat form: top-level keys are pair addresses (and possibly a
	// stray "summary" key, discarded).
	var flat map[string]*model.ActiveTrade
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	delete(flat, "summary")

	l.mu.Lock()
	l.active = flat
	l.mu.Unlock()

	l.log.Printf("migrated legacy flat snapshot (%d trades)", len(flat))
	return nil
}

// saveSnapshot rewrites the snapshot file atomically: write to a temp
// file in the same directory, then rename over the target, so a crash
// mid-write never corrupts the live snapshot.
func (l *Lifecycle) saveSnapshot() {
	l.mu.Lock()
	activeCopy := make(map[string]*model.ActiveTrade, len(l.active))
	for k, v := range l.active {
		cp := *v
		activeCopy[k] = &cp
	}
	inactiveCopy := append([]model.InactiveTrade(nil), l.inactive...)
	l.mu.Unlock()

	metrics.OpenPositions.Set(float64(len(activeCopy)))

	snap := snapshot{
		ActiveTrades:   activeCopy,
		InactiveTrades: inactiveCopy,
		Summary:        model.ComputeSummary(activeCopy, inactiveCopy),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		l.log.Printf("snapshot marshal failed: %v", err)
		return
	}

	if err := writeFileAtomic(l.snapshotPath, data); err != nil {
		l.log.Printf("snapshot write failed: %v", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// appendLog appends one BUY/SELL/CLOSE event to the append-only trade
// log, per spec.md §4.6, and mirrors the same event into the optional
// MySQL audit sink when one is configured.
func (l *Lifecycle) appendLog(entry logEntry) {
	entry.Time = time.Now()

	data, err := json.Marshal(entry)
	if err != nil {
		l.log.Printf("trade log marshal failed: %v", err)
		return
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.log.Printf("trade log open failed: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		l.log.Printf("trade log write failed: %v", err)
	}

	if l.recorder != nil {
		rec := db.TradeEventRecord{
			Time:          entry.Time,
			Status:        entry.Status,
			Symbol:        entry.Symbol,
			Pair:          entry.Pair,
			PolicyID:      entry.PolicyID,
			Action:        entry.Action,
			ActionPercent: entry.ActionPercent,
			EthAmount:     entry.EthAmount,
			TokenAmount:   entry.TokenAmount,
			Error:         entry.Error,
		}
		if err := l.recorder.RecordTradeEvent(rec); err != nil {
			l.log.Printf("trade event mirror failed: %v", err)
		}
	}
}

// FlushSnapshot forces an immediate snapshot write, used by the
// supervisor's shutdown sequence (spec.md §4.9) so the final on-disk
// state reflects everything up to the moment of shutdown.
func (l *Lifecycle) FlushSnapshot() {
	l.saveSnapshot()
}

// Summary returns the derived rollup over active and inactive trades,
// per spec.md §4.6.
func (l *Lifecycle) Summary() model.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.ComputeSummary(l.active, l.inactive)
}

// ActiveTrades returns a shallow copy of the currently open trades, safe
// for a caller to range over without holding the lock.
func (l *Lifecycle) ActiveTrades() map[string]*model.ActiveTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*model.ActiveTrade, len(l.active))
	for k, v := range l.active {
		out[k] = v
	}
	return out
}

// InactiveTrades returns a copy of the closed-trade history.
func (l *Lifecycle) InactiveTrades() []model.InactiveTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.InactiveTrade(nil), l.inactive...)
}

// HasActiveTrade reports whether pairAddress currently has an open
// position; wired into aggregate.Engine's retention task so a pair with
// an open trade is never evicted.
func (l *Lifecycle) HasActiveTrade(pairAddress string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.active[pairAddress]
	return ok
}
