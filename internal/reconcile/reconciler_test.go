package reconcile

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"insightai-sync/internal/alert"
	"insightai-sync/internal/ledger"
	"insightai-sync/internal/pricefeed"
	"insightai-sync/internal/store"
	"insightai-sync/internal/types"

	"github.com/pkg/errors"
)

type fakeSource struct {
	mu     sync.Mutex
	quotes map[string]types.PriceQuote
	errs   map[string]error
	block  chan struct{} // when set, every fetch waits on it
	calls  int64
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	atomic.AddInt64(&f.calls, 1)

	f.mu.Lock()
	block := f.block
	q, ok := f.quotes[symbol]
	err := f.errs[symbol]
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return types.PriceQuote{}, err
	}
	if !ok {
		return types.PriceQuote{}, errors.Errorf("no quote for %s", symbol)
	}
	return q, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (f *fakeNotifier) Notify(title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type fixture struct {
	source   *fakeSource
	cache    *pricefeed.Cache
	ledger   *ledger.Ledger
	alerts   *alert.Book
	notifier *fakeNotifier
	cycles   chan types.PortfolioSummary
	rec      *Reconciler
}

func setup(t *testing.T, interval time.Duration) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		source:   &fakeSource{quotes: make(map[string]types.PriceQuote), errs: make(map[string]error)},
		cache:    pricefeed.NewCache(),
		notifier: &fakeNotifier{},
		cycles:   make(chan types.PortfolioSummary, 16),
	}
	f.ledger = ledger.New(s, f.cache, false)
	f.alerts = alert.NewBook(s, false)

	hooks := Hooks{
		CycleCompleted: func(summary types.PortfolioSummary) { f.cycles <- summary },
	}
	f.rec = New(f.source, f.cache, f.ledger, f.alerts, f.notifier, interval, hooks)
	t.Cleanup(f.rec.Stop)
	return f
}

func (f *fixture) waitCycle(t *testing.T) types.PortfolioSummary {
	t.Helper()
	select {
	case summary := <-f.cycles:
		return summary
	case <-time.After(5 * time.Second):
		t.Fatalf("no cycle completed in time")
		return types.PortfolioSummary{}
	}
}

func TestCyclePartialFailure(t *testing.T) {
	f := setup(t, time.Hour)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.ledger.AddOrIncrease("b", 1, 10)

	// a has a stale quote from an earlier cycle, and now fails.
	f.cache.Set(types.PriceQuote{Symbol: "a", Price: 11})
	f.source.errs["a"] = errors.New("timeout")
	f.source.quotes["b"] = types.PriceQuote{Symbol: "b", Price: 20}

	f.rec.Start()
	summary := f.waitCycle(t)

	a, _ := f.cache.Get("a")
	if a.Price != 11 {
		t.Fatalf("failed fetch must leave the stale quote, got %v", a.Price)
	}
	b, _ := f.cache.Get("b")
	if b.Price != 20 {
		t.Fatalf("successful fetch must update the cache, got %v", b.Price)
	}
	if summary.TotalValue != 31 {
		t.Fatalf("expected summary over stale a and fresh b, got %v", summary.TotalValue)
	}
}

func TestTeardownDropsInFlightResults(t *testing.T) {
	f := setup(t, time.Hour)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 99}

	release := make(chan struct{})
	f.source.block = release

	f.rec.Start()
	// Wait until the first cycle's fetch is in flight.
	for atomic.LoadInt64(&f.source.calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	f.rec.Stop()
	close(release)

	// Give the in-flight cycle a chance to (incorrectly) apply.
	time.Sleep(50 * time.Millisecond)

	if _, exists := f.cache.Get("a"); exists {
		t.Fatalf("result resolving after teardown must not mutate the cache")
	}
	select {
	case <-f.cycles:
		t.Fatalf("cycle must not complete after teardown")
	default:
	}
}

func TestOverlappingCyclesAreSkipped(t *testing.T) {
	f := setup(t, 20*time.Millisecond)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 10}

	release := make(chan struct{})
	f.source.block = release

	f.rec.Start()
	for atomic.LoadInt64(&f.source.calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	// Several tick periods pass while the first cycle is still in flight.
	time.Sleep(100 * time.Millisecond)
	if calls := atomic.LoadInt64(&f.source.calls); calls != 1 {
		t.Fatalf("expected ticks during an in-flight cycle to be skipped, got %d fetches", calls)
	}

	f.source.mu.Lock()
	f.source.block = nil
	f.source.mu.Unlock()
	close(release)
	f.waitCycle(t)
}

func TestQuoteForRemovedSymbolIsDiscarded(t *testing.T) {
	f := setup(t, time.Hour)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.ledger.AddOrIncrease("b", 1, 10)
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 99}
	f.source.quotes["b"] = types.PriceQuote{Symbol: "b", Price: 20}

	release := make(chan struct{})
	f.source.block = release

	f.rec.Start()
	for atomic.LoadInt64(&f.source.calls) < 2 {
		time.Sleep(time.Millisecond)
	}

	// a leaves the portfolio while its quote is still in flight.
	f.ledger.Remove("a")
	close(release)
	f.waitCycle(t)

	if _, exists := f.cache.Get("a"); exists {
		t.Fatalf("quote for a removed symbol must be discarded")
	}
	if b, _ := f.cache.Get("b"); b.Price != 20 {
		t.Fatalf("other symbols must still be applied")
	}
}

func TestAlertFiresOnceAcrossCycles(t *testing.T) {
	f := setup(t, 20*time.Millisecond)

	if _, err := f.alerts.Create("a", 120, 100); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 125}

	f.rec.Start()
	f.waitCycle(t)
	f.waitCycle(t)
	f.rec.Stop()

	if got := f.notifier.count(); got != 1 {
		t.Fatalf("expected exactly one notification, got %d", got)
	}
}

func TestInterestSetUnionsExtraSymbols(t *testing.T) {
	f := setup(t, time.Hour)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 10}
	f.source.quotes["watched"] = types.PriceQuote{Symbol: "watched", Price: 7}
	f.rec.ExtraSymbols = func(ctx context.Context) ([]string, error) {
		return []string{"watched", "a"}, nil
	}

	f.rec.Start()
	f.waitCycle(t)

	if q, exists := f.cache.Get("watched"); !exists || q.Price != 7 {
		t.Fatalf("watchlist symbol must be quoted, got %+v", q)
	}
	if calls := atomic.LoadInt64(&f.source.calls); calls != 2 {
		t.Fatalf("duplicate symbols must be fetched once, got %d fetches", calls)
	}
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	f := setup(t, time.Hour)

	f.ledger.AddOrIncrease("a", 1, 10)
	f.source.quotes["a"] = types.PriceQuote{Symbol: "a", Price: 10}

	f.rec.Start()
	f.rec.Start()
	f.waitCycle(t)
	f.rec.Stop()
	f.rec.Stop()

	f.rec.Start()
	f.waitCycle(t)

	if !f.rec.Active() {
		t.Fatalf("expected reconciler active after restart")
	}
}
