package pricefeed

import (
	"context"

	"insightai-sync/internal/insight"
	"insightai-sync/internal/types"

	"github.com/pkg/errors"
)

// InsightSource pulls quotes from the InsightAI market endpoint. One day of
// chart data is requested since only the KPI block is read.
type InsightSource struct {
	client *insight.Client
}

func NewInsightSource(client *insight.Client) *InsightSource {
	return &InsightSource{client: client}
}

func (s *InsightSource) FetchQuote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	data, err := s.client.MarketData(ctx, symbol, 1)
	if err != nil {
		return types.PriceQuote{}, err
	}
	if data.KPI == nil {
		return types.PriceQuote{}, errors.Errorf("no kpi data for %s", symbol)
	}

	return types.PriceQuote{
		Symbol:    symbol,
		Price:     data.KPI.CurrentPriceUSD,
		Change24h: data.KPI.PriceChange24h,
	}, nil
}
