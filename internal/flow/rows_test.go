package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	bigquery "google.golang.org/api/bigquery/v2"

	"caudal/internal/flow"
)

func bqRow(values ...interface{}) *bigquery.TableRow {
	row := &bigquery.TableRow{}
	for _, v := range values {
		row.F = append(row.F, &bigquery.TableCell{V: v})
	}
	return row
}

func ga4Row(dims []string, metric string) *analyticsdata.Row {
	row := &analyticsdata.Row{}
	for _, d := range dims {
		row.DimensionValues = append(row.DimensionValues, &analyticsdata.DimensionValue{Value: d})
	}
	row.MetricValues = []*analyticsdata.MetricValue{{Value: metric}}
	return row
}

func TestNormalizeBigQueryRows(t *testing.T) {
	rows := flow.NormalizeBigQueryRows([]*bigquery.TableRow{
		bqRow("google", "organic", "https://site/shop", "42"),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, flow.CanonicalRow{
		Source:      "google",
		Medium:      "organic",
		LandingPage: "https://site/shop",
		Sessions:    42,
	}, rows[0])
}

func TestNormalizeBigQueryRowsDefaults(t *testing.T) {
	testCases := []struct {
		name     string
		row      *bigquery.TableRow
		expected flow.CanonicalRow
	}{
		{
			name: "nil cells",
			row:  bqRow(nil, nil, nil, nil),
			expected: flow.CanonicalRow{
				Source:      flow.DefaultSource,
				Medium:      flow.DefaultMedium,
				LandingPage: flow.DefaultLandingPage,
				Sessions:    0,
			},
		},
		{
			name: "short field array",
			row:  bqRow("google"),
			expected: flow.CanonicalRow{
				Source:      "google",
				Medium:      flow.DefaultMedium,
				LandingPage: flow.DefaultLandingPage,
				Sessions:    0,
			},
		},
		{
			name: "unparseable count",
			row:  bqRow("google", "cpc", "/", "lots"),
			expected: flow.CanonicalRow{
				Source:      "google",
				Medium:      "cpc",
				LandingPage: "/",
				Sessions:    0,
			},
		},
		{
			name: "negative count clamps to zero",
			row:  bqRow("google", "cpc", "/", "-5"),
			expected: flow.CanonicalRow{
				Source:      "google",
				Medium:      "cpc",
				LandingPage: "/",
				Sessions:    0,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows := flow.NormalizeBigQueryRows([]*bigquery.TableRow{tc.row})
			require.Len(t, rows, 1)
			assert.Equal(t, tc.expected, rows[0])
		})
	}
}

func TestNormalizeGA4Rows(t *testing.T) {
	rows := flow.NormalizeGA4Rows([]*analyticsdata.Row{
		ga4Row([]string{"(direct)", "(none)", "/"}, "10"),
		ga4Row([]string{"", "", ""}, ""),
	})
	require.Len(t, rows, 2)
	assert.Equal(t, flow.CanonicalRow{Source: "(direct)", Medium: "(none)", LandingPage: "/", Sessions: 10}, rows[0])
	assert.Equal(t, flow.CanonicalRow{
		Source:      flow.DefaultSource,
		Medium:      flow.DefaultMedium,
		LandingPage: flow.DefaultLandingPage,
		Sessions:    0,
	}, rows[1])
}

func TestNormalizeEmptyInput(t *testing.T) {
	assert.Empty(t, flow.NormalizeBigQueryRows(nil))
	assert.Empty(t, flow.NormalizeGA4Rows(nil))
	assert.Empty(t, flow.NormalizeBigQueryRows([]*bigquery.TableRow{nil}))
	assert.Empty(t, flow.NormalizeGA4Rows([]*analyticsdata.Row{nil}))
}
