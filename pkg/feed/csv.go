package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

var (
	ErrMissingColumn = errors.New("missing column")

	// columns of a headerless file
	defaultHeaderMap = map[string]int{
		"date": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
	}

	// Headers lists the columns written by WriteCSV
	Headers = []string{"date", "open", "high", "low", "close", "volume"}
)

// parseHeaders maps column names to their index. A first cell that parses as a
// date means the file has no header row.
func parseHeaders(headers []string) (headerMap map[string]int, hasHeader bool) {
	if _, err := parseTime(headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap = make(map[string]int, len(headers))
	for index, header := range headers {
		name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
		if name == "time" || name == "timestamp" {
			name = "date"
		}
		headerMap[name] = index
	}

	if _, ok := headerMap["close"]; !ok {
		if index, ok := headerMap["adj_close"]; ok {
			headerMap["close"] = index
		}
	}
	return headerMap, true
}

// parseTime accepts YYYY-MM-DD, RFC 3339 or unix seconds
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(core.DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// ReadCSV parses daily bars of symbol from r. Rows with an empty close are skipped.
func ReadCSV(r io.Reader, symbol string) ([]core.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, core.ErrNoData)
	}

	headerMap, hasHeader := parseHeaders(lines[0])
	if hasHeader {
		lines = lines[1:]
	}
	for _, column := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := headerMap[column]; !ok {
			return nil, fmt.Errorf("%s: %w: %s", symbol, ErrMissingColumn, column)
		}
	}

	lines = lo.Filter(lines, func(line []string, _ int) bool {
		idx := headerMap["close"]
		return idx < len(line) && strings.TrimSpace(line[idx]) != ""
	})

	bars := make([]core.Bar, 0, len(lines))
	for n, line := range lines {
		bar, err := parseBarFromLine(line, headerMap, symbol)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", symbol, n+1, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseBarFromLine(line []string, headerMap map[string]int, symbol string) (core.Bar, error) {
	field := func(column string) (string, bool) {
		idx, ok := headerMap[column]
		if !ok || idx >= len(line) {
			return "", false
		}
		return strings.TrimSpace(line[idx]), true
	}

	date, _ := field("date")
	t, err := parseTime(date)
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Symbol: symbol, Time: core.Day(t)}
	for column, target := range map[string]*float64{
		"open":  &bar.Open,
		"high":  &bar.High,
		"low":   &bar.Low,
		"close": &bar.Close,
	} {
		value, _ := field(column)
		if *target, err = strconv.ParseFloat(value, 64); err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", column, err)
		}
	}

	if value, ok := field("volume"); ok && value != "" {
		if bar.Volume, err = strconv.ParseFloat(value, 64); err != nil {
			return core.Bar{}, fmt.Errorf("volume: %w", err)
		}
	}

	return bar, nil
}

// WriteCSV writes bars with a header row using precision decimals
func WriteCSV(w io.Writer, bars []core.Bar, precision int) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return err
	}
	for _, bar := range bars {
		if err := writer.Write(bar.ToSlice(precision)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
