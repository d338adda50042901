// Package market holds bar data, derived features, and the aligned
// multi-symbol panel the simulation reads its observation windows from.
package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Bar is one symbol, one timestamp of OHLCV data plus derived indicator
// values. Bars are immutable once ingested; features are computed during
// the ingestion cycle, before the panel is built.
type Bar struct {
	Symbol   string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64

	Features map[string]float64
}

// Feature returns the named derived value, NaN if absent.
func (b Bar) Feature(name string) float64 {
	v, ok := b.Features[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// LoadCSV reads bars for one symbol from a CSV file with the header
// time,open,high,low,close,adj_close,volume. adj_close may be omitted,
// in which case close is used.
func LoadCSV(path, symbol string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	var bars []Bar
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		t, err := parseTime(row[col["time"]])
		if err != nil {
			return nil, fmt.Errorf("%s: bad time %q: %w", path, row[col["time"]], err)
		}

		b := Bar{Symbol: symbol, Time: t, Features: map[string]float64{}}
		if b.Open, err = field(row, col, "open"); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if b.High, err = field(row, col, "high"); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if b.Low, err = field(row, col, "low"); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if b.Close, err = field(row, col, "close"); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if b.Volume, err = field(row, col, "volume"); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, ok := col["adj_close"]; ok {
			if b.AdjClose, err = field(row, col, "adj_close"); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		} else {
			b.AdjClose = b.Close
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func field(row []string, col map[string]int, name string) (float64, error) {
	i := col[name]
	if i >= len(row) {
		return 0, fmt.Errorf("short row, no %s", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, row[i], err)
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
