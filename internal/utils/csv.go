package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/domain"
)

var barHeader = []string{"timestamp", "symbol", "interval", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars to filename, replacing it.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteBars(file, bars); err != nil {
		return err
	}
	return file.Close()
}

// WriteBars writes a header line and one record per bar.
func WriteBars(w io.Writer, bars []domain.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Timestamp.UTC().Format(time.RFC3339),
			b.Symbol,
			b.Interval,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsFromCSV loads bars written by WriteBarsToCSV.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file)
}

// ReadBars parses CSV bars. Columns are located by header name; timestamp and close are
// required. Bars must be in strictly increasing timestamp order. Unparseable prices
// become NaN so the bar is kept and treated as invalid downstream.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV: missing header")
		}
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		ts, err := parseTimestamp(field(rec, "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(bars); n > 0 && !ts.After(bars[n-1].Timestamp) {
			return nil, fmt.Errorf("line %d: timestamp %s is not after %s", line, ts.Format(time.RFC3339), bars[n-1].Timestamp.Format(time.RFC3339))
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Symbol:    field(rec, "symbol"),
			Interval:  field(rec, "interval"),
			Open:      parseFloat(field(rec, "open")),
			High:      parseFloat(field(rec, "high")),
			Low:       parseFloat(field(rec, "low")),
			Close:     parseFloat(field(rec, "close")),
			Volume:    parseFloat(field(rec, "volume")),
		})
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
