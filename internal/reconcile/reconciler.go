package reconcile

import (
	"context"
	"sync"
	"time"

	"insightai-sync/internal/notify"
	"insightai-sync/internal/pricefeed"
	"insightai-sync/internal/types"

	log "github.com/sirupsen/logrus"
)

// Ledger is the holdings side of a cycle.
type Ledger interface {
	Symbols() []string
	Summarize(prices map[string]types.PriceQuote) types.PortfolioSummary
}

// AlertBook is the alert side of a cycle.
type AlertBook interface {
	Symbols() []string
	Evaluate(symbol string, observedPrice float64) []types.Alert
}

// Notifier receives one notification per fired alert.
type Notifier interface {
	Notify(title, body string) error
}

// Hooks are optional observation points, wired to metrics by the caller.
type Hooks struct {
	QuoteFetched   func()
	QuoteFailed    func()
	AlertFired     func()
	CycleCompleted func(types.PortfolioSummary)
}

// Reconciler periodically fetches quotes for every symbol of interest (the
// union of held and alerted symbols) and applies the results to the quote
// cache and the alert book.
//
// One cycle at a time: a tick arriving while a cycle is still in flight is
// skipped, so quote results from one cycle are always applied before the
// next cycle's fetches are issued. After Stop, results from in-flight
// fetches resolve harmlessly: the active flag is checked before every state
// mutation.
type Reconciler struct {
	source   pricefeed.Source
	cache    *pricefeed.Cache
	ledger   Ledger
	alerts   AlertBook
	notifier Notifier
	interval time.Duration
	hooks    Hooks

	// ExtraSymbols optionally widens the interest set, e.g. with the
	// backend watchlist. Errors there only shrink the set for one cycle.
	ExtraSymbols func(ctx context.Context) ([]string, error)

	mu        sync.Mutex
	active    bool
	inFlight  bool
	lastExtra []string
	stop      chan struct{}
}

func New(source pricefeed.Source, cache *pricefeed.Cache, ledger Ledger, alerts AlertBook, notifier Notifier, interval time.Duration, hooks Hooks) *Reconciler {
	return &Reconciler{
		source:   source,
		cache:    cache,
		ledger:   ledger,
		alerts:   alerts,
		notifier: notifier,
		interval: interval,
		hooks:    hooks,
	}
}

// Start activates the loop and runs one immediate cycle. Starting an
// already active reconciler is a no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.stop = make(chan struct{})
	stop := r.stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.RunCycle(context.Background())
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.RunCycle(context.Background())
			}
		}
	}()

	log.Debug("reconciler started")
}

// Stop deactivates the loop and stops its timer. It does not wait for an
// in-flight cycle: its fetches complete harmlessly and their results are
// discarded, never applied. Idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.active = false
	close(r.stop)
	log.Debug("reconciler stopped")
}

// Active reports whether the loop currently applies results.
func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// interestSet is the distinct set of symbols a cycle must quote.
func (r *Reconciler) interestSet(ctx context.Context) []string {
	seen := make(map[string]bool)
	var symbols []string

	add := func(list []string) {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	add(r.ledger.Symbols())
	add(r.alerts.Symbols())
	if r.ExtraSymbols != nil {
		extra, err := r.ExtraSymbols(ctx)
		if err != nil {
			log.Warnf("failed to extend interest set: %v", err)
			extra = nil
		}
		r.mu.Lock()
		r.lastExtra = extra
		r.mu.Unlock()
		add(extra)
	}
	return symbols
}

// RunCycle performs one reconciliation pass. It is a no-op when the
// reconciler is inactive or a previous cycle is still in flight.
func (r *Reconciler) RunCycle(ctx context.Context) {
	r.mu.Lock()
	if !r.active || r.inFlight {
		if r.inFlight {
			log.Debug("previous cycle still in flight, skipping")
		}
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	symbols := r.interestSet(ctx)
	if len(symbols) == 0 {
		return
	}
	log.Debugf("reconciling %d symbols", len(symbols))

	// One fetch per symbol, all settled before anything is applied. A
	// failure for one symbol never aborts the others: its stale quote
	// stays in the cache until the next successful cycle.
	results := make([]types.PriceQuote, len(symbols))
	errs := make([]error, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i], errs[i] = r.source.FetchQuote(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	for i, symbol := range symbols {
		if errs[i] != nil {
			log.Warnf("quote for %s failed: %v", symbol, errs[i])
			if r.hooks.QuoteFailed != nil {
				r.hooks.QuoteFailed()
			}
			continue
		}
		if r.hooks.QuoteFetched != nil {
			r.hooks.QuoteFetched()
		}
		r.Observe(results[i])
	}

	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if !active {
		return
	}

	summary := r.ledger.Summarize(r.cache.Snapshot())
	if r.hooks.CycleCompleted != nil {
		r.hooks.CycleCompleted(summary)
	}
}

// Observe applies one quote: cache update plus alert evaluation. Quotes
// arriving after Stop, or for symbols that dropped out of the interest set
// while the fetch was in flight, are discarded.
func (r *Reconciler) Observe(q types.PriceQuote) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if !r.tracked(q.Symbol) {
		log.Debugf("dropping quote for untracked symbol %s", q.Symbol)
		r.cache.Drop(q.Symbol)
		return
	}

	r.cache.Set(q)

	for _, fired := range r.alerts.Evaluate(q.Symbol, q.Price) {
		if r.hooks.AlertFired != nil {
			r.hooks.AlertFired()
		}
		title, body := notify.AlertMessage(fired, q.Price)
		if err := r.notifier.Notify(title, body); err != nil {
			log.Errorf("failed to deliver alert notification: %v", err)
		}
	}
}

// tracked checks membership in the current interest set: held symbols,
// alerted symbols, and the extras gathered by the latest cycle.
func (r *Reconciler) tracked(symbol string) bool {
	for _, s := range r.ledger.Symbols() {
		if s == symbol {
			return true
		}
	}
	for _, s := range r.alerts.Symbols() {
		if s == symbol {
			return true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.lastExtra {
		if s == symbol {
			return true
		}
	}
	return false
}
