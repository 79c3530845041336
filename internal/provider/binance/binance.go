// Package binance fetches historical klines from the Binance public
// REST API and adapts them to the simulator's bar format.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

const (
	baseURL = "https://api.binance.com"
	// pageLimit is the Binance klines maximum per request.
	pageLimit = 1000
)

// Provider fetches bars from Binance.
type Provider struct {
	client  *http.Client
	baseURL string
}

// New creates a Binance provider.
func New() *Provider {
	return &Provider{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url string) *Provider {
	p := New()
	p.baseURL = url
	return p
}

func (p *Provider) Name() string {
	return "binance"
}

// FetchBars fetches klines for each symbol over [start, end), paging
// through the API's per-request limit. Symbols without data map to
// empty slices.
func (p *Provider) FetchBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]core.Bar, error) {
	out := make(map[string][]core.Bar, len(symbols))
	for _, symbol := range symbols {
		bars, err := p.fetchSymbol(ctx, symbol, timeframe, start, end)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", symbol, err)
		}
		out[symbol] = bars
	}
	return out, nil
}

func (p *Provider) fetchSymbol(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]core.Bar, error) {
	interval := toInterval(timeframe)
	var bars []core.Bar

	cursor := start
	for cursor.Before(end) {
		page, err := p.fetchPage(ctx, symbol, interval, cursor, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)
		if len(page) < pageLimit {
			break
		}
		cursor = page[len(page)-1].Time.Add(time.Millisecond)
	}
	return bars, nil
}

func (p *Provider) fetchPage(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
		p.baseURL, symbol, interval, start.UnixMilli(), end.UnixMilli()-1, pageLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	bars := make([]core.Bar, 0, len(klines))
	for _, k := range klines {
		bar, ok := parseKline(symbol, k)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline converts one kline row. Binance serializes prices as
// strings, which decimal parses without float round-tripping.
func parseKline(symbol string, k []any) (core.Bar, bool) {
	if len(k) < 6 {
		return core.Bar{}, false
	}

	openTime, ok := k[0].(float64)
	if !ok {
		return core.Bar{}, false
	}

	prices := make([]decimal.Decimal, 4)
	for i := 1; i <= 4; i++ {
		s, ok := k[i].(string)
		if !ok {
			return core.Bar{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return core.Bar{}, false
		}
		prices[i-1] = d
	}

	volumeStr, ok := k[5].(string)
	if !ok {
		return core.Bar{}, false
	}
	volume, err := decimal.NewFromString(volumeStr)
	if err != nil {
		return core.Bar{}, false
	}

	bar := core.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume.IntPart(),
	}
	return bar, bar.IsValid()
}

func toInterval(timeframe string) string {
	switch timeframe {
	case "1m", "5m", "15m", "30m":
		return timeframe
	case "1h", "2h", "4h":
		return timeframe
	case "1d":
		return "1d"
	case "1w":
		return "1w"
	default:
		return "1d"
	}
}
