package pricefeed

import (
	"context"
	"sync"

	"insightai-sync/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// PaprikaSource pulls quotes from the CoinPaprika API. Symbol lookups are
// resolved through coin search once and memoized, since the dashboard uses
// lowercase asset ids ("bitcoin") rather than CoinPaprika coin ids.
type PaprikaSource struct {
	client *coinpaprika.Client

	mu        sync.Mutex
	idMapping map[string]string
}

func NewPaprikaSource(apiProKey string) *PaprikaSource {
	client := coinpaprika.NewClient(nil)
	if apiProKey != "" {
		client = coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))
	}
	return &PaprikaSource{
		client:    client,
		idMapping: make(map[string]string),
	}
}

func (s *PaprikaSource) FetchQuote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	coinID, err := s.resolveCoinID(symbol)
	if err != nil {
		return types.PriceQuote{}, err
	}

	tickerOpts := &coinpaprika.TickersOptions{Quotes: "USD"}
	ticker, err := s.client.Tickers.GetByID(coinID, tickerOpts)
	if err != nil {
		return types.PriceQuote{}, errors.Wrapf(err, "unable to fetch ticker for %s", symbol)
	}

	usdQuote, ok := ticker.Quotes["USD"]
	if !ok || usdQuote.Price == nil {
		return types.PriceQuote{}, errors.Errorf("no USD quote for %s", symbol)
	}

	quote := types.PriceQuote{
		Symbol: symbol,
		Price:  *usdQuote.Price,
	}
	if usdQuote.PercentChange24h != nil {
		quote.Change24h = *usdQuote.PercentChange24h
	}
	return quote, nil
}

// resolveCoinID searches for a coin matching the asset id.
func (s *PaprikaSource) resolveCoinID(symbol string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, found := s.idMapping[symbol]; found {
		return id, nil
	}

	searchOpts := &coinpaprika.SearchOptions{
		Query:      symbol,
		Categories: "currencies",
		Modifier:   "symbol_search",
	}
	result, err := s.client.Search.Search(searchOpts)
	if err != nil || len(result.Currencies) == 0 {
		log.Debugf("no results for symbol search, trying name search for '%s'", symbol)
		searchOpts = &coinpaprika.SearchOptions{Query: symbol, Categories: "currencies"}
		result, err = s.client.Search.Search(searchOpts)
		if err != nil || len(result.Currencies) == 0 {
			return "", errors.Errorf("invalid coin name, ticker, or symbol: %s", symbol)
		}
	}

	currency := result.Currencies[0]
	if currency.ID == nil {
		return "", errors.Errorf("coin %s has no id", symbol)
	}

	log.Debugf("best match for query '%s' is: %s", symbol, *currency.ID)
	s.idMapping[symbol] = *currency.ID
	return *currency.ID, nil
}
