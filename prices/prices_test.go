package prices

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPrices(t *testing.T, got cryptofolio.Prices, want map[string]string) {
	t.Helper()
	require.Len(t, got, len(want))
	for asset, w := range want {
		p, ok := got[asset]
		if !ok || !p.Equal(decimal.RequireFromString(w)) {
			t.Errorf("price of %s = %v, want %s", asset, p, w)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	testCases := []struct {
		name string
		data string
		root string
		want map[string]string
	}{
		{"flat", `{"btc": 67000.5, "ETH": "3500"}`, "", map[string]string{"BTC": "67000.5", "ETH": "3500"}},
		{"nested", `{"data": {"prices": {"SOL": 150.123456789012}}}`, "$.data.prices", map[string]string{"SOL": "150.123456789012"}},
		{"root", `{"ADA": 0.45}`, "$", map[string]string{"ADA": "0.45"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeJSON(strings.NewReader(tc.data), tc.root)
			require.NoError(t, err)
			assertPrices(t, got, tc.want)
		})
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
		root string
	}{
		{"not json", `BTC=1`, ""},
		{"not an object", `[1, 2]`, ""},
		{"bool price", `{"BTC": true}`, ""},
		{"negative", `{"BTC": -1}`, ""},
		{"bad selector", `{"a": {}}`, "$.b"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeJSON(strings.NewReader(tc.data), tc.root)
			assert.Error(t, err)
		})
	}
}

func TestSelect(t *testing.T) {
	data := `{"bitcoin": {"usd": 67000}, "ethereum": {"usd": 3500.25}, "series": [[1, 0.91], [2, 0.92]]}`
	got, err := Select(strings.NewReader(data), map[string]string{
		"BTC": "$.bitcoin.usd",
		"eth": "$.ethereum.usd",
		"EUR": "$.series[-1:][1]",
	})
	require.NoError(t, err)
	assertPrices(t, got, map[string]string{"BTC": "67000", "ETH": "3500.25", "EUR": "0.92"})

	_, err = Select(strings.NewReader(data), map[string]string{"ADA": "$.cardano.usd"})
	assert.ErrorContains(t, err, "ADA")
}

func TestDecodeCSV(t *testing.T) {
	got, err := DecodeCSV(strings.NewReader("asset,price\n# from the exchange\nBTC,67000\n eth, 3500.5\n"))
	require.NoError(t, err)
	assertPrices(t, got, map[string]string{"BTC": "67000", "ETH": "3500.5"})

	got, err = DecodeCSV(strings.NewReader("BTC,1\n"))
	require.NoError(t, err)
	assertPrices(t, got, map[string]string{"BTC": "1"})

	_, err = DecodeCSV(strings.NewReader("asset,price\nBTC,lots\n"))
	assert.ErrorContains(t, err, "line 2")
	_, err = DecodeCSV(strings.NewReader("BTC,1,USD\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "prices.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("BTC,60000\n"), 0o600))
	got, err := Load(csvPath, "")
	require.NoError(t, err)
	assertPrices(t, got, map[string]string{"BTC": "60000"})

	jsonPath := filepath.Join(dir, "prices.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"quotes": {"BTC": 61000}}`), 0o600))
	got, err = Load(jsonPath, "$.quotes")
	require.NoError(t, err)
	assertPrices(t, got, map[string]string{"BTC": "61000"})

	_, err = Load(filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	p := cryptofolio.Prices{"ETH": decimal.RequireFromString("3500"), "BTC": decimal.RequireFromString("67000.5")}
	require.NoError(t, Encode(&buf, p))
	assert.Equal(t, "{\n  \"BTC\": \"67000.5\",\n  \"ETH\": \"3500\"\n}\n", buf.String())

	back, err := DecodeJSON(&buf, "")
	require.NoError(t, err)
	assertPrices(t, back, map[string]string{"BTC": "67000.5", "ETH": "3500"})
}
