package historical

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	bqapi "google.golang.org/api/bigquery/v2"

	"caudal/internal/flow"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
	"caudal/internal/pkg/async"
)

const testKeyJSON = `{"project_id":"proj","client_email":"svc@proj.iam","private_key":"k"}`

type fakeRowSource struct {
	rows []*bqapi.TableRow
	err  error
}

func (f *fakeRowSource) QueryHistoricalData(ctx context.Context, projectID, datasetID, startDate, endDate string) ([]*bqapi.TableRow, error) {
	return f.rows, f.err
}

type fakeReportSource struct {
	rows        []*analyticsdata.Row
	rowsErr     error
	breakdowns  map[string][]flow.NameValue
	breakdownEr map[string]error
	revenue     float64
	revenueErr  error
}

func (f *fakeReportSource) RunHistoricalReport(ctx context.Context, propertyID, startDate, endDate string) ([]*analyticsdata.Row, error) {
	return f.rows, f.rowsErr
}

func (f *fakeReportSource) DemographicBreakdown(ctx context.Context, propertyID string, breakdown ga4.Breakdown, startDate, endDate string) ([]flow.NameValue, error) {
	if err := f.breakdownEr[breakdown.Name]; err != nil {
		return nil, err
	}
	return f.breakdowns[breakdown.Name], nil
}

func (f *fakeReportSource) Revenue(ctx context.Context, propertyID, startDate, endDate string) (float64, error) {
	return f.revenue, f.revenueErr
}

func newTestService(t *testing.T, rowSource RowSource, reportSource ReportSource) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &Service{
		logger: logger,
		pool:   async.NewPool(6),
		newRowSource: func(ctx context.Context, key *gauth.Key) (RowSource, error) {
			if rowSource == nil {
				return nil, errors.New("no row source")
			}
			return rowSource, nil
		},
		newReportSource: func(ctx context.Context, key *gauth.Key) (ReportSource, error) {
			if reportSource == nil {
				return nil, errors.New("no report source")
			}
			return reportSource, nil
		},
	}
}

func testRequest(t *testing.T, datasetID string) Request {
	t.Helper()
	key, err := gauth.ParseKey([]byte(testKeyJSON))
	require.NoError(t, err)
	return Request{
		PropertyID: "123456",
		DatasetID:  datasetID,
		StartDate:  "2026-01-01",
		EndDate:    "2026-01-31",
		Credential: key,
	}
}

func bigQueryRow(source, medium, page, count string) *bqapi.TableRow {
	return &bqapi.TableRow{F: []*bqapi.TableCell{
		{V: source}, {V: medium}, {V: page}, {V: count},
	}}
}

func ga4ReportRow(source, medium, page, count string) *analyticsdata.Row {
	return &analyticsdata.Row{
		DimensionValues: []*analyticsdata.DimensionValue{{Value: source}, {Value: medium}, {Value: page}},
		MetricValues:    []*analyticsdata.MetricValue{{Value: count}},
	}
}

func TestRunUsesBigQueryWhenDatasetSupplied(t *testing.T) {
	rowSource := &fakeRowSource{rows: []*bqapi.TableRow{
		bigQueryRow("google", "cpc", "/shop", "5"),
	}}
	reportSource := &fakeReportSource{revenue: 99.5}
	service := newTestService(t, rowSource, reportSource)

	result, trail, err := service.Run(context.Background(), testRequest(t, "analytics_123456"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, SourceBigQuery, trail.DataSource)
	assert.Equal(t, 99.5, result.EstimatedSales)
	require.NotEmpty(t, result.Nodes)
	assert.Equal(t, "source_Ad_Campaigns", result.Nodes[0].ID)

	require.NotEmpty(t, trail.Entries)
	assert.Equal(t, SourceBigQuery, trail.Entries[0].Source)
	assert.Equal(t, StatusSuccess, trail.Entries[0].Status)
	assert.Equal(t, 1, trail.Entries[0].Rows)
}

func TestRunFallsBackToGA4OnBigQueryFailure(t *testing.T) {
	rowSource := &fakeRowSource{err: errors.New("table not found")}
	reportSource := &fakeReportSource{rows: []*analyticsdata.Row{
		ga4ReportRow("google", "organic", "/", "3"),
		ga4ReportRow("facebook", "social", "/promo", "2"),
		ga4ReportRow("(direct)", "(none)", "/cart", "1"),
	}}
	service := newTestService(t, rowSource, reportSource)

	result, trail, err := service.Run(context.Background(), testRequest(t, "analytics_123456"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, SourceGA4, trail.DataSource)

	var statuses []struct {
		source string
		status Status
	}
	for _, e := range trail.Entries {
		if e.Source == SourceBigQuery || e.Source == SourceGA4 {
			statuses = append(statuses, struct {
				source string
				status Status
			}{e.Source, e.Status})
		}
	}
	require.Len(t, statuses, 2)
	assert.Equal(t, SourceBigQuery, statuses[0].source)
	assert.Equal(t, StatusFailed, statuses[0].status)
	assert.Equal(t, SourceGA4, statuses[1].source)
	assert.Equal(t, StatusSuccess, statuses[1].status)

	// graph built from the three normalized GA4 rows
	var total int64
	for _, e := range result.Edges {
		total += e.Value
	}
	assert.Equal(t, int64(6), total)
}

func TestRunSkipsBigQueryWithoutDataset(t *testing.T) {
	reportSource := &fakeReportSource{rows: []*analyticsdata.Row{
		ga4ReportRow("google", "organic", "/", "3"),
	}}
	service := newTestService(t, nil, reportSource)

	result, trail, err := service.Run(context.Background(), testRequest(t, ""))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, SourceGA4, trail.DataSource)

	require.NotEmpty(t, trail.Entries)
	assert.Equal(t, SourceBigQuery, trail.Entries[0].Source)
	assert.Equal(t, StatusSkipped, trail.Entries[0].Status)
}

func TestRunAllBackendsFailed(t *testing.T) {
	rowSource := &fakeRowSource{err: errors.New("bq down")}
	reportSource := &fakeReportSource{rowsErr: errors.New("ga4 down")}
	service := newTestService(t, rowSource, reportSource)

	result, trail, err := service.Run(context.Background(), testRequest(t, "analytics_123456"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	assert.Nil(t, result, "no partial graph on total failure")

	var failures int
	for _, e := range trail.Entries {
		if (e.Source == SourceBigQuery || e.Source == SourceGA4) && e.Status == StatusFailed {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestRunDemographicsDegradeIndependently(t *testing.T) {
	reportSource := &fakeReportSource{
		rows: []*analyticsdata.Row{ga4ReportRow("google", "organic", "/", "1")},
		breakdowns: map[string][]flow.NameValue{
			"age":    {{Name: "25-34", Value: 10}},
			"device": {{Name: "desktop", Value: 7}},
		},
		breakdownEr: map[string]error{
			"gender": errors.New("dimension unavailable"),
			"geo":    errors.New("quota exceeded"),
		},
		revenueErr: errors.New("no purchase data"),
	}
	service := newTestService(t, nil, reportSource)

	result, trail, err := service.Run(context.Background(), testRequest(t, ""))
	require.NoError(t, err, "partial demographic failures must not fail the job")
	require.NotNil(t, result)

	assert.Equal(t, []flow.NameValue{{Name: "25-34", Value: 10}}, result.Demographics.Age)
	assert.Equal(t, []flow.NameValue{{Name: "Escritorio", Value: 7}}, result.Demographics.Device)
	assert.Empty(t, result.Demographics.Gender)
	assert.Empty(t, result.Demographics.Geo)
	assert.Zero(t, result.EstimatedSales)

	failed := map[string]bool{}
	for _, e := range trail.Entries {
		if e.Status == StatusFailed {
			failed[e.Source] = true
		}
	}
	assert.True(t, failed["GA4 demographics/gender"])
	assert.True(t, failed["GA4 demographics/geo"])
	assert.True(t, failed[SourceRevenue])
}

func TestRunValidation(t *testing.T) {
	service := newTestService(t, nil, &fakeReportSource{})

	testCases := []struct {
		name   string
		mutate func(*Request)
	}{
		{name: "missing credential", mutate: func(r *Request) { r.Credential = nil }},
		{name: "missing property", mutate: func(r *Request) { r.PropertyID = "" }},
		{name: "bad start date", mutate: func(r *Request) { r.StartDate = "01/01/2026" }},
		{name: "bad end date", mutate: func(r *Request) { r.EndDate = "soon" }},
		{name: "inverted range", mutate: func(r *Request) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest(t, "")
			tc.mutate(&req)
			_, _, err := service.Run(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
