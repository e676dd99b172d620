package ledger

import (
	"encoding/json"
	"math"
	"sync"

	"insightai-sync/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// StorageKey is the collection key holding the full portfolio.
const StorageKey = "portfolio"

var (
	ErrInvalidAmount = errors.New("amount must be a positive finite number")
)

// Storage persists whole collections. Satisfied by *store.Store.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
}

// QuoteSource looks up the latest known quote for a symbol. Satisfied by
// *pricefeed.Cache.
type QuoteSource interface {
	Get(symbol string) (types.PriceQuote, bool)
}

// Ledger owns the holdings list: one entry per symbol, order preserved.
// Every mutation writes the full list back to storage.
//
// Invalid numeric input (NaN, Inf, non-positive amounts) is silently ignored
// by default, matching the dashboard behavior. With strict enabled the same
// input returns ErrInvalidAmount instead.
type Ledger struct {
	mu       sync.Mutex
	holdings []types.Holding
	storage  Storage
	quotes   QuoteSource
	strict   bool
}

func New(storage Storage, quotes QuoteSource, strict bool) *Ledger {
	l := &Ledger{storage: storage, quotes: quotes, strict: strict}
	l.load()
	return l
}

// load restores persisted holdings; a missing or malformed payload leaves
// the ledger empty rather than failing.
func (l *Ledger) load() {
	raw, err := l.storage.Load(StorageKey)
	if err != nil {
		log.Warnf("failed to load portfolio: %v", err)
		return
	}
	if len(raw) == 0 {
		return
	}

	var holdings []types.Holding
	if err := json.Unmarshal(raw, &holdings); err != nil {
		log.Warnf("malformed portfolio payload, starting empty: %v", err)
		return
	}
	l.holdings = holdings
}

func (l *Ledger) persist() {
	raw, err := json.Marshal(l.holdings)
	if err != nil {
		log.Errorf("failed to encode portfolio: %v", err)
		return
	}
	if err := l.storage.Save(StorageKey, raw); err != nil {
		log.Errorf("failed to persist portfolio: %v", err)
	}
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount > 0
}

// AddOrIncrease creates a holding or adds amount to an existing one.
// avgCost applies only at creation: zero or negative means unsupplied, in
// which case the latest known price is used, falling back to 0.
func (l *Ledger) AddOrIncrease(symbol string, amount, avgCost float64) error {
	if !validAmount(amount) {
		if l.strict {
			return errors.Wrapf(ErrInvalidAmount, "add %s", symbol)
		}
		log.Debugf("ignoring invalid amount %v for %s", amount, symbol)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.holdings {
		if l.holdings[i].Symbol == symbol {
			l.holdings[i].Amount += amount
			l.persist()
			return nil
		}
	}

	if avgCost <= 0 || math.IsNaN(avgCost) {
		avgCost = 0
		if q, exists := l.quotes.Get(symbol); exists {
			avgCost = q.Price
		}
	}

	l.holdings = append(l.holdings, types.Holding{
		Symbol:  symbol,
		Amount:  amount,
		AvgCost: avgCost,
	})
	l.persist()
	return nil
}

// Reduce lowers a holding by amount, removing the entry when nothing is
// left. Reducing an absent symbol is a no-op.
func (l *Ledger) Reduce(symbol string, amount float64) error {
	if !validAmount(amount) {
		if l.strict {
			return errors.Wrapf(ErrInvalidAmount, "reduce %s", symbol)
		}
		log.Debugf("ignoring invalid amount %v for %s", amount, symbol)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.holdings {
		if l.holdings[i].Symbol != symbol {
			continue
		}
		l.holdings[i].Amount -= amount
		if l.holdings[i].Amount <= 0 {
			l.holdings = append(l.holdings[:i], l.holdings[i+1:]...)
		}
		l.persist()
		return nil
	}
	return nil
}

// Remove deletes a holding. Removing an absent symbol is a no-op.
func (l *Ledger) Remove(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.holdings {
		if l.holdings[i].Symbol == symbol {
			l.holdings = append(l.holdings[:i], l.holdings[i+1:]...)
			l.persist()
			return
		}
	}
}

// Holdings returns a copy of the current holdings in insertion order.
func (l *Ledger) Holdings() []types.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Holding, len(l.holdings))
	copy(out, l.holdings)
	return out
}

// Symbols returns the symbols currently held.
func (l *Ledger) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	symbols := make([]string, 0, len(l.holdings))
	for _, h := range l.holdings {
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}

// Summarize values the portfolio against the supplied quotes. A symbol with
// no known price contributes 0 to value; its cost still counts through
// avgCost. When avgCost is unknown the current price stands in for it.
func (l *Ledger) Summarize(prices map[string]types.PriceQuote) types.PortfolioSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var value, cost float64
	for _, h := range l.holdings {
		price := 0.0
		if q, exists := prices[h.Symbol]; exists {
			price = q.Price
		}
		value += h.Amount * price

		unitCost := h.AvgCost
		if unitCost == 0 {
			unitCost = price
		}
		cost += h.Amount * unitCost
	}

	summary := types.PortfolioSummary{
		TotalValue: value,
		TotalCost:  cost,
		TotalPnL:   value - cost,
	}
	if cost > 0 {
		summary.TotalPnLPct = summary.TotalPnL / cost * 100
	}
	return summary
}
