// Package prices loads market prices from files saved by the user, to value
// a portfolio. It never fetches anything.
package prices

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
)

// Load reads the prices file at path: CSV when its extension is .csv, JSON
// otherwise. root selects, in a JSON file, the object mapping assets to
// prices; empty means the whole document.
func Load(path, root string) (cryptofolio.Prices, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open prices: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return DecodeCSV(f)
	}
	return DecodeJSON(f, root)
}

func decodeAny(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON prices: %w", err)
	}
	return v, nil
}

// DecodeJSON reads an object {asset: price}, found at the JSONPath root.
func DecodeJSON(r io.Reader, root string) (cryptofolio.Prices, error) {
	v, err := decodeAny(r)
	if err != nil {
		return nil, err
	}
	if root != "" && root != "$" {
		if v, err = get(root, v); err != nil {
			return nil, err
		}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("prices at %q: want an object, got %T", root, v)
	}
	p := make(cryptofolio.Prices, len(obj))
	for asset, raw := range obj {
		if err := set(p, asset, raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Select reads one price per asset, each at its own JSONPath, e.g.
// {"BTC": "$.bitcoin.usd"} over a saved price API response.
func Select(r io.Reader, paths map[string]string) (cryptofolio.Prices, error) {
	v, err := decodeAny(r)
	if err != nil {
		return nil, err
	}
	p := make(cryptofolio.Prices, len(paths))
	for asset, path := range paths {
		raw, err := get(path, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		if err := set(p, asset, raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func get(path string, v any) (any, error) {
	val, err := jsonpath.Get(path, v)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", path, err)
	}
	// wildcards and slices yield a list: the first match is kept
	if list, ok := val.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("selector %q matches nothing", path)
		}
		val = list[0]
	}
	return val, nil
}

func set(p cryptofolio.Prices, asset string, raw any) error {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return fmt.Errorf("price of %s: want a number, got %T", asset, raw)
	}
	return p.Set(asset, s)
}

// DecodeCSV reads two columns, asset and price. A first line whose price
// is not a number is taken as a header.
func DecodeCSV(r io.Reader) (cryptofolio.Prices, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	p := make(cryptofolio.Prices)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return p, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV prices: %w", err)
		}
		if line == 1 {
			if _, err := decimal.NewFromString(strings.TrimSpace(rec[1])); err != nil {
				continue
			}
		}
		if err := p.Set(rec[0], rec[1]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// Encode writes prices as a JSON object, assets sorted.
func Encode(w io.Writer, p cryptofolio.Prices) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
