package alert

import (
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"insightai-sync/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// storageKeyPrefix partitions alert persistence per symbol, one collection
// key per symbol.
const storageKeyPrefix = "alerts-"

var (
	ErrInvalidTarget = errors.New("target price must be a positive finite number")
)

// Storage persists whole collections. Satisfied by *store.Store.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
	Delete(key string) error
	ListKeys(prefix string) ([]string, error)
}

// Book owns per-symbol alert lists and runs the ARMED -> TRIGGERED state
// machine. TRIGGERED is terminal: an alert fires at most once, repeated
// qualifying prices produce no repeated side effects.
type Book struct {
	mu      sync.Mutex
	alerts  map[string][]types.Alert
	storage Storage
	strict  bool
}

func NewBook(storage Storage, strict bool) *Book {
	b := &Book{
		alerts:  make(map[string][]types.Alert),
		storage: storage,
		strict:  strict,
	}
	b.load()
	return b
}

// load restores every persisted alert partition. Malformed payloads are
// replaced with an empty list, never surfaced.
func (b *Book) load() {
	keys, err := b.storage.ListKeys(storageKeyPrefix)
	if err != nil {
		log.Warnf("failed to list alert partitions: %v", err)
		return
	}

	for _, key := range keys {
		symbol := strings.TrimPrefix(key, storageKeyPrefix)

		raw, err := b.storage.Load(key)
		if err != nil || len(raw) == 0 {
			continue
		}

		var alerts []types.Alert
		if err := json.Unmarshal(raw, &alerts); err != nil {
			log.Warnf("malformed alert payload for %s, starting empty: %v", symbol, err)
			continue
		}
		if len(alerts) > 0 {
			b.alerts[symbol] = alerts
		}
	}
}

func (b *Book) persist(symbol string) {
	key := storageKeyPrefix + symbol

	alerts := b.alerts[symbol]
	if len(alerts) == 0 {
		if err := b.storage.Delete(key); err != nil {
			log.Errorf("failed to delete alert partition %s: %v", key, err)
		}
		return
	}

	raw, err := json.Marshal(alerts)
	if err != nil {
		log.Errorf("failed to encode alerts for %s: %v", symbol, err)
		return
	}
	if err := b.storage.Save(key, raw); err != nil {
		log.Errorf("failed to persist alerts for %s: %v", symbol, err)
	}
}

// Create registers a one-shot alert. The condition is derived from the
// price at creation time: ABOVE when the target sits over the current
// price, BELOW otherwise.
func (b *Book) Create(symbol string, targetPrice, currentPrice float64) (types.Alert, error) {
	if math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) || targetPrice <= 0 {
		if b.strict {
			return types.Alert{}, errors.Wrapf(ErrInvalidTarget, "alert for %s", symbol)
		}
		log.Debugf("ignoring invalid target price %v for %s", targetPrice, symbol)
		return types.Alert{}, nil
	}

	condition := types.ConditionBelow
	if targetPrice > currentPrice {
		condition = types.ConditionAbove
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a := types.Alert{
		ID:          b.nextID(symbol),
		Symbol:      symbol,
		TargetPrice: targetPrice,
		Condition:   condition,
	}
	b.alerts[symbol] = append(b.alerts[symbol], a)
	b.persist(symbol)

	log.Debugf("alert %d set for %s %s %v", a.ID, symbol, condition, targetPrice)
	return a, nil
}

// nextID derives a unique id from the current time, bumped on collision so
// two alerts created in the same millisecond stay distinguishable.
func (b *Book) nextID(symbol string) int64 {
	id := time.Now().UnixMilli()
	for _, a := range b.alerts[symbol] {
		if a.ID >= id {
			id = a.ID + 1
		}
	}
	return id
}

// Remove deletes one alert. Removing an unknown id is a no-op.
func (b *Book) Remove(symbol string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	alerts := b.alerts[symbol]
	for i := range alerts {
		if alerts[i].ID == id {
			b.alerts[symbol] = append(alerts[:i], alerts[i+1:]...)
			if len(b.alerts[symbol]) == 0 {
				delete(b.alerts, symbol)
			}
			b.persist(symbol)
			return
		}
	}
}

// Evaluate transitions every armed alert for symbol whose condition holds
// at the observed price and returns exactly the alerts that just fired.
func (b *Book) Evaluate(symbol string, observedPrice float64) []types.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fired []types.Alert
	alerts := b.alerts[symbol]
	for i := range alerts {
		if alerts[i].Triggered {
			continue
		}

		qualifies := false
		switch alerts[i].Condition {
		case types.ConditionAbove:
			qualifies = observedPrice >= alerts[i].TargetPrice
		case types.ConditionBelow:
			qualifies = observedPrice <= alerts[i].TargetPrice
		}
		if !qualifies {
			continue
		}

		alerts[i].Triggered = true
		fired = append(fired, alerts[i])
	}

	if len(fired) > 0 {
		b.persist(symbol)
	}
	return fired
}

// Alerts returns a copy of the alert list for one symbol.
func (b *Book) Alerts(symbol string) []types.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Alert, len(b.alerts[symbol]))
	copy(out, b.alerts[symbol])
	return out
}

// Symbols returns every symbol with at least one alert.
func (b *Book) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbols := make([]string, 0, len(b.alerts))
	for symbol := range b.alerts {
		symbols = append(symbols, symbol)
	}
	return symbols
}
