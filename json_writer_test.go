package cryptofolio

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestJsonObjectWriter(t *testing.T) {
	testCases := []struct {
		name  string
		build func(w *jsonObjectWriter)
		want  string
	}{
		{
			name:  "empty object",
			build: func(w *jsonObjectWriter) {},
			want:  `{}`,
		},
		{
			name: "field order is kept",
			build: func(w *jsonObjectWriter) {
				w.Append("b", "hello").Append("a", 1)
			},
			want: `{"b":"hello","a":1}`,
		},
		{
			name: "embed raw object",
			build: func(w *jsonObjectWriter) {
				w.Append("a", 1)
				w.Embed(json.RawMessage(` {"c":3,"d":4} `))
				w.Append("b", 2)
			},
			want: `{"a":1,"c":3,"d":4,"b":2}`,
		},
		{
			name: "embed empty object",
			build: func(w *jsonObjectWriter) {
				w.Append("a", 1).Embed([]byte(`{}`))
			},
			want: `{"a":1}`,
		},
		{
			name: "embed from struct",
			build: func(w *jsonObjectWriter) {
				w.Append("a", 1)
				w.EmbedFrom(struct {
					Account string `json:"account"`
				}{Account: binance})
			},
			want: `{"a":1,"account":"Binance"}`,
		},
		{
			name: "optional skips zero values",
			build: func(w *jsonObjectWriter) {
				w.Append("a", 0)
				w.Optional("b", "")
				w.Optional("c", 0)
				w.Optional("d", time.Time{})
				w.Optional("e", "hello")
			},
			want: `{"a":0,"e":"hello"}`,
		},
		{
			name: "optional decimals compare to zero",
			build: func(w *jsonObjectWriter) {
				w.Optional("zero", decimal.RequireFromString("0.000"))
				w.Optional("fee", decimal.RequireFromString("0.001"))
			},
			want: `{"fee":"0.001"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w jsonObjectWriter
			tc.build(&w)
			got, err := w.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() failed: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tc.want)
			}
			if !json.Valid(got) {
				t.Errorf("MarshalJSON() = %s is not valid JSON", got)
			}
		})
	}
}

func TestJsonObjectWriter_Error(t *testing.T) {
	var w jsonObjectWriter
	w.Append("ch", make(chan int))
	w.Append("a", 1)
	if _, err := w.MarshalJSON(); err == nil {
		t.Errorf("MarshalJSON() error = nil, want the marshal error of ch")
	}
}
