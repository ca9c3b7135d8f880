package flow

import (
	"fmt"
	"strconv"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	bigquery "google.golang.org/api/bigquery/v2"
)

// Defaults applied when a backend row is missing attribution fields.
const (
	DefaultSource      = "(direct)"
	DefaultMedium      = "(none)"
	DefaultLandingPage = "Unknown"
)

// CanonicalRow is the single row shape the aggregation pipeline consumes,
// regardless of which backend produced it. Sessions is never negative.
type CanonicalRow struct {
	Source      string
	Medium      string
	LandingPage string
	Sessions    int64
}

// NormalizeBigQueryRows adapts tabular BigQuery result rows, shaped
// (source, medium, landing_page, session_count), into canonical rows.
// Missing cells fall back to the canonical defaults; it never fails.
func NormalizeBigQueryRows(rows []*bigquery.TableRow) []CanonicalRow {
	out := make([]CanonicalRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, CanonicalRow{
			Source:      cellOrDefault(row.F, 0, DefaultSource),
			Medium:      cellOrDefault(row.F, 1, DefaultMedium),
			LandingPage: cellOrDefault(row.F, 2, DefaultLandingPage),
			Sessions:    parseSessionCount(cellOrDefault(row.F, 3, "0")),
		})
	}
	return out
}

// NormalizeGA4Rows adapts GA4 Data API report rows, with dimensions
// (sessionSource, sessionMedium, landingPage) and metric (sessions), into
// canonical rows. Missing values fall back to the canonical defaults.
func NormalizeGA4Rows(rows []*analyticsdata.Row) []CanonicalRow {
	out := make([]CanonicalRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, CanonicalRow{
			Source:      dimensionOrDefault(row.DimensionValues, 0, DefaultSource),
			Medium:      dimensionOrDefault(row.DimensionValues, 1, DefaultMedium),
			LandingPage: dimensionOrDefault(row.DimensionValues, 2, DefaultLandingPage),
			Sessions:    parseSessionCount(metricOrDefault(row.MetricValues, 0, "0")),
		})
	}
	return out
}

func cellOrDefault(cells []*bigquery.TableCell, idx int, fallback string) string {
	if idx >= len(cells) || cells[idx] == nil || cells[idx].V == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", cells[idx].V))
	if s == "" {
		return fallback
	}
	return s
}

func dimensionOrDefault(values []*analyticsdata.DimensionValue, idx int, fallback string) string {
	if idx >= len(values) || values[idx] == nil || values[idx].Value == "" {
		return fallback
	}
	return values[idx].Value
}

func metricOrDefault(values []*analyticsdata.MetricValue, idx int, fallback string) string {
	if idx >= len(values) || values[idx] == nil || values[idx].Value == "" {
		return fallback
	}
	return values[idx].Value
}

// parseSessionCount parses a session count reported as a string. Counts that
// do not parse, or parse negative, are counted as zero so a bad row can
// never poison the aggregate sums.
func parseSessionCount(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
