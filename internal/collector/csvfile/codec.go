// Package csvfile reads and writes OHLCV bars as CSV and serves them as a
// collector.BarProvider.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/confluence/internal/core"
)

// Header is the column order written by Write
var Header = []string{"time", "open", "high", "low", "close", "volume"}

var aliases = map[string]string{
	"timestamp": "time",
	"date":      "time",
	"open_time": "time",
	"o":         "open",
	"h":         "high",
	"l":         "low",
	"c":         "close",
	"v":         "volume",
}

// Read decodes bars from CSV with a header row. Columns are matched by name
// (case-insensitive) so extra columns are ignored. Time cells may be RFC3339,
// a date, or unix milliseconds.
func Read(r io.Reader) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return []core.Bar{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range head {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if a, ok := aliases[name]; ok {
			name = a
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, want := range Header {
		if _, ok := cols[want]; !ok {
			return nil, core.WrapError(core.ErrInvalidBars, fmt.Errorf("missing column %q", want))
		}
	}

	bars := []core.Bar{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		bar, err := decodeRow(rec, cols)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidBars, fmt.Errorf("line %d: %w", line, err))
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func decodeRow(rec []string, cols map[string]int) (core.Bar, error) {
	cell := func(name string) (string, error) {
		i := cols[name]
		if i >= len(rec) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(rec[i]), nil
	}

	ts, err := cell("time")
	if err != nil {
		return core.Bar{}, err
	}
	t, err := ParseTime(ts)
	if err != nil {
		return core.Bar{}, err
	}

	var vals [5]float64
	for i, name := range Header[1:] {
		s, err := cell(name)
		if err != nil {
			return core.Bar{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", name, err)
		}
		vals[i] = v
	}
	return core.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

// ParseTime accepts RFC3339, YYYY-MM-DD, "YYYY-MM-DD HH:MM:SS" or unix milliseconds
func ParseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// Write encodes bars with Header, times as RFC3339 UTC
func Write(w io.Writer, bars []core.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339),
			fmtFloat(b.Open),
			fmtFloat(b.High),
			fmtFloat(b.Low),
			fmtFloat(b.Close),
			fmtFloat(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
