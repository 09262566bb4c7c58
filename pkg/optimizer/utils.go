package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// SaveResultsToCSV writes ranked results with one column per parameter and metric
func SaveResultsToCSV(results []*Result, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	paramNames, metricNames := columns(results)

	header := []string{"rank", "duration"}
	header = append(header, paramNames...)
	header = append(header, metricNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, result := range results {
		row := []string{strconv.Itoa(i + 1), result.Duration.Round(time.Millisecond).String()}
		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}
		for _, name := range metricNames {
			row = append(row, strconv.FormatFloat(result.Metrics[name], 'f', 4, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintResults renders the topN ranked results as a table
func PrintResults(w io.Writer, results []*Result, targetMetric MetricName, topN int) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}
	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}

	paramNames, metricNames := columns(results)
	metricNames = append([]string{string(targetMetric)},
		lo.Without(metricNames, string(targetMetric))...)

	table := tablewriter.NewWriter(w)
	table.SetHeader(append(append([]string{"#"}, paramNames...), metricNames...))
	for i, result := range results {
		row := []string{strconv.Itoa(i + 1)}
		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}
		for _, name := range metricNames {
			row = append(row, strconv.FormatFloat(result.Metrics[name], 'f', 4, 64))
		}
		table.Append(row)
	}

	fmt.Fprintf(w, "\n-- TOP %d BY %s --\n", len(results), strings.ToUpper(string(targetMetric)))
	table.Render()
}

// FormatParameterSet renders params in name order
func FormatParameterSet(params ParameterSet) string {
	names := lo.Keys(params)
	sort.Strings(names)

	parts := lo.Map(names, func(name string, _ int) string {
		return fmt.Sprintf("%s: %s", name, formatValue(params[name]))
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

func columns(results []*Result) (paramNames, metricNames []string) {
	params := map[string]bool{}
	metrics := map[string]bool{}
	for _, result := range results {
		for name := range result.Parameters {
			params[name] = true
		}
		for name := range result.Metrics {
			metrics[name] = true
		}
	}

	paramNames, metricNames = lo.Keys(params), lo.Keys(metrics)
	sort.Strings(paramNames)
	sort.Strings(metricNames)
	return paramNames, metricNames
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return fmt.Sprintf("%v", value)
}
