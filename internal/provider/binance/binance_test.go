package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "binance", New().Name())
}

func TestToInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1m", "1m"},
		{"5m", "5m"},
		{"15m", "15m"},
		{"1h", "1h"},
		{"4h", "4h"},
		{"1d", "1d"},
		{"unknown", "1d"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, toInterval(tc.input), "toInterval(%s)", tc.input)
	}
}

func TestFetchBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1704067200000, "42000.5", "43000.0", "41500.0", "42800.25", "1234.56", 1704153599999],
			[1704153600000, "42800.25", "44000.0", "42500.0", "43900.00", "987.65", 1704239999999]
		]`))
	}))
	defer server.Close()

	p := NewWithBaseURL(server.URL)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchBars(context.Background(), []string{"BTCUSDT"}, "1d", start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, bars["BTCUSDT"], 2)

	first := bars["BTCUSDT"][0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.True(t, first.Time.Equal(start))
	assert.True(t, first.Open.Equal(decimal.RequireFromString("42000.5")))
	assert.True(t, first.High.Equal(decimal.RequireFromString("43000")))
	assert.True(t, first.Low.Equal(decimal.RequireFromString("41500")))
	assert.True(t, first.Close.Equal(decimal.RequireFromString("42800.25")))
	assert.Equal(t, int64(1234), first.Volume)
}

func TestFetchBars_SkipsMalformedRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1704067200000, "42000.5"],
			[1704153600000, "42800.25", "44000.0", "42500.0", "not-a-number", "987.65"],
			[1704240000000, "100", "110", "90", "105", "10"]
		]`))
	}))
	defer server.Close()

	p := NewWithBaseURL(server.URL)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchBars(context.Background(), []string{"BTCUSDT"}, "1d", start, start.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, bars["BTCUSDT"], 1)
	assert.True(t, bars["BTCUSDT"][0].Close.Equal(decimal.RequireFromString("105")))
}

func TestFetchBars_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewWithBaseURL(server.URL)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := p.FetchBars(context.Background(), []string{"BTCUSDT"}, "1d", start, start.AddDate(0, 0, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFetchBars_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	p := NewWithBaseURL(server.URL)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchBars(context.Background(), []string{"DELISTED"}, "1d", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, bars["DELISTED"])
}

func TestFetchBars_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewWithBaseURL(server.URL)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := p.FetchBars(ctx, []string{"BTCUSDT"}, "1d", start, start.AddDate(0, 0, 1))
	assert.Error(t, err)
}
