package types

// Holding is a simulated position: one entry per symbol.
type Holding struct {
	Symbol  string  `json:"symbol"`
	Amount  float64 `json:"amount"`
	AvgCost float64 `json:"avgPrice"`
}

// PriceQuote is the latest known price data for a symbol. Never persisted.
type PriceQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
}

type AlertCondition string

const (
	ConditionAbove AlertCondition = ">"
	ConditionBelow AlertCondition = "<"
)

// Alert is a one-shot threshold watch. Triggered is terminal: it is never
// reset automatically, removal is the only way to re-track a price level.
type Alert struct {
	ID          int64          `json:"id"`
	Symbol      string         `json:"symbol"`
	TargetPrice float64        `json:"price"`
	Condition   AlertCondition `json:"condition"`
	Triggered   bool           `json:"triggered"`
}

// PortfolioSummary is derived from holdings and the latest quotes, never stored.
type PortfolioSummary struct {
	TotalValue  float64 `json:"total_value"`
	TotalCost   float64 `json:"total_cost"`
	TotalPnL    float64 `json:"total_pnl"`
	TotalPnLPct float64 `json:"total_pnl_pct"`
}
