package pricefeed

import (
	"context"

	"insightai-sync/internal/types"
)

// Source is a pull-based quote provider. A failed fetch for one symbol must
// never affect fetches for other symbols: callers issue requests per symbol
// and take the partial result set.
type Source interface {
	FetchQuote(ctx context.Context, symbol string) (types.PriceQuote, error)
}
