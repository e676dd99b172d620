package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Client talks to the InsightAI backend. The backend is a black box: every
// computed value (indicators, market score, chart series) is produced there,
// this client only moves the payloads.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// KPI is the current market snapshot for one asset.
type KPI struct {
	Name            string  `json:"name"`
	CurrentPriceUSD float64 `json:"current_price_usd"`
	PriceChange24h  float64 `json:"price_change_percentage_24h"`
	MarketCapUSD    float64 `json:"market_cap_usd"`
	High24h         float64 `json:"high_24h"`
	Low24h          float64 `json:"low_24h"`
}

// MarketData is the /market/{symbol} response. ChartError marks the failure
// schema: the backend resolved the request but could not produce data.
type MarketData struct {
	Asset       string           `json:"asset"`
	KPI         *KPI             `json:"kpi"`
	ChartData   json.RawMessage  `json:"chart_data,omitempty"`
	MarketScore *json.RawMessage `json:"market_score,omitempty"`
	ChartError  bool             `json:"chart_error,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// HeatmapEntry is one asset row of the /heatmap response.
type HeatmapEntry struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"market_cap"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MarketData fetches KPI and chart data for one asset.
func (c *Client) MarketData(ctx context.Context, symbol string, days int) (*MarketData, error) {
	endpoint := fmt.Sprintf("%s/market/%s?days=%d", c.baseURL, url.PathEscape(symbol), days)

	var data MarketData
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, errors.Wrapf(err, "market data for %s", symbol)
	}
	if data.ChartError && data.KPI == nil {
		return nil, errors.Errorf("market data error for %s: %s", symbol, data.Message)
	}
	return &data, nil
}

// Heatmap fetches the top assets overview.
func (c *Client) Heatmap(ctx context.Context, limit int) ([]HeatmapEntry, error) {
	endpoint := fmt.Sprintf("%s/heatmap?limit=%d", c.baseURL, limit)

	var entries []HeatmapEntry
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, errors.Wrap(err, "heatmap")
	}
	return entries, nil
}

// Watchlist returns the asset ids on the backend watchlist.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := c.getJSON(ctx, c.baseURL+"/watchlist", &symbols); err != nil {
		return nil, errors.Wrap(err, "watchlist")
	}
	return symbols, nil
}

// AddToWatchlist adds an asset and returns the updated list.
func (c *Client) AddToWatchlist(ctx context.Context, assetID string) ([]string, error) {
	body, err := json.Marshal(map[string]string{"asset_id": assetID})
	if err != nil {
		return nil, errors.Wrap(err, "encode watchlist request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/watchlist", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create watchlist request")
	}
	req.Header.Set("Content-Type", "application/json")

	var symbols []string
	if err := c.doJSON(req, &symbols); err != nil {
		return nil, errors.Wrapf(err, "add %s to watchlist", assetID)
	}
	return symbols, nil
}

// RemoveFromWatchlist deletes an asset and returns the updated list.
func (c *Client) RemoveFromWatchlist(ctx context.Context, assetID string) ([]string, error) {
	endpoint := c.baseURL + "/watchlist/" + url.PathEscape(assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create watchlist request")
	}

	var symbols []string
	if err := c.doJSON(req, &symbols); err != nil {
		return nil, errors.Wrapf(err, "remove %s from watchlist", assetID)
	}
	return symbols, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	log.Debugf("%s %s", req.Method, req.URL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
