// Package ga4 wraps the GA4 Data API and Admin API calls the dashboard
// needs: historical session reports, realtime panels, audience breakdowns,
// revenue, and property discovery.
package ga4

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	analyticsadmin "google.golang.org/api/analyticsadmin/v1beta"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"caudal/internal/flow"
)

// reportRowLimit caps the historical traffic-source report, matching the
// row budget of the BigQuery query it substitutes for.
const reportRowLimit = 100

// Client talks to the GA4 Data and Admin APIs on behalf of one credential.
type Client struct {
	data   *analyticsdata.Service
	admin  *analyticsadmin.Service
	logger *logrus.Logger
}

// NewClient builds a client from per-credential options (see
// gauth.Key.ClientOptions).
func NewClient(ctx context.Context, logger *logrus.Logger, opts ...option.ClientOption) (*Client, error) {
	data, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating analytics data service: %w", err)
	}
	admin, err := analyticsadmin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating analytics admin service: %w", err)
	}
	return &Client{data: data, admin: admin, logger: logger}, nil
}

func propertyRef(propertyID string) string {
	return "properties/" + propertyID
}

// RunHistoricalReport fetches the per-session traffic source rows
// (sessionSource, sessionMedium, landingPage × sessions) for a date range.
func (c *Client) RunHistoricalReport(ctx context.Context, propertyID, startDate, endDate string) ([]*analyticsdata.Row, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []*analyticsdata.Dimension{
			{Name: "sessionSource"},
			{Name: "sessionMedium"},
			{Name: "landingPage"},
		},
		Metrics: []*analyticsdata.Metric{{Name: "sessions"}},
		Limit:   reportRowLimit,
	}

	resp, err := c.data.Properties.RunReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running GA4 historical report: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"property": propertyID,
		"rows":     len(resp.Rows),
	}).Debug("GA4 historical report returned")
	return resp.Rows, nil
}

// Breakdown names one demographic report: its key in the payload, the GA4
// dimension queried, and an optional row limit.
type Breakdown struct {
	Name      string
	Dimension string
	Limit     int64
}

// DemographicBreakdowns are the four audience reports fetched per job, each
// best-effort and independent of the others. Country is capped at the top
// ten to keep the geo panel readable.
var DemographicBreakdowns = []Breakdown{
	{Name: "age", Dimension: "userAgeBracket"},
	{Name: "gender", Dimension: "userGender"},
	{Name: "geo", Dimension: "country", Limit: 10},
	{Name: "device", Dimension: "deviceCategory"},
}

// DemographicBreakdown runs one single-dimension activeUsers report and
// adapts the rows into name/value pairs.
func (c *Client) DemographicBreakdown(ctx context.Context, propertyID string, breakdown Breakdown, startDate, endDate string) ([]flow.NameValue, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []*analyticsdata.Dimension{{Name: breakdown.Dimension}},
		Metrics:    []*analyticsdata.Metric{{Name: "activeUsers"}},
		Limit:      breakdown.Limit,
	}

	resp, err := c.data.Properties.RunReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running %s breakdown: %w", breakdown.Name, err)
	}

	series := make([]flow.NameValue, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
			continue
		}
		value, _ := strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		series = append(series, flow.NameValue{Name: row.DimensionValues[0].Value, Value: value})
	}
	return series, nil
}

// Revenue returns the gross purchase revenue for the date range, 0 when the
// property reports none.
func (c *Client) Revenue(ctx context.Context, propertyID, startDate, endDate string) (float64, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Metrics:    []*analyticsdata.Metric{{Name: "grossPurchaseRevenue"}},
	}

	resp, err := c.data.Properties.RunReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("running revenue report: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].MetricValues) == 0 {
		return 0, nil
	}
	revenue, err := strconv.ParseFloat(resp.Rows[0].MetricValues[0].Value, 64)
	if err != nil {
		return 0, nil
	}
	return revenue, nil
}

// Property is a GA4 property reachable by a credential.
type Property struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Parent      string `json:"parent"`
}

// ListProperties enumerates the GA4 properties visible to the credential
// via the Admin API account summaries.
func (c *Client) ListProperties(ctx context.Context) ([]Property, error) {
	resp, err := c.admin.AccountSummaries.List().PageSize(200).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing account summaries: %w", err)
	}

	var properties []Property
	for _, account := range resp.AccountSummaries {
		for _, prop := range account.PropertySummaries {
			properties = append(properties, Property{
				ID:          propertyIDFromName(prop.Property),
				DisplayName: prop.DisplayName,
				Parent:      account.Account,
			})
		}
	}
	return properties, nil
}

// propertyIDFromName extracts "123456" from "properties/123456".
func propertyIDFromName(name string) string {
	const prefix = "properties/"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

// monthlyItemRowLimit caps the month-to-date item report; a month of
// per-item per-day rows for a store catalog fits comfortably below it.
const monthlyItemRowLimit = 10000

// MonthlyItemReport fetches per-item daily e-commerce rows (itemName, date ×
// itemRevenue, itemsPurchased, itemsViewed, itemsAddedToCart) for the sales
// dashboard's month-to-date window.
func (c *Client) MonthlyItemReport(ctx context.Context, propertyID, startDate, endDate string) ([]*analyticsdata.Row, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []*analyticsdata.Dimension{
			{Name: "itemName"},
			{Name: "date"},
		},
		Metrics: []*analyticsdata.Metric{
			{Name: "itemRevenue"},
			{Name: "itemsPurchased"},
			{Name: "itemsViewed"},
			{Name: "itemsAddedToCart"},
		},
		Limit: monthlyItemRowLimit,
	}

	resp, err := c.data.Properties.RunReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running monthly item report: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"property": propertyID,
		"rows":     len(resp.Rows),
	}).Debug("GA4 monthly item report returned")
	return resp.Rows, nil
}

// ActiveUsersNow returns the property's current active-user count from the
// realtime API, used as the live overlay on the sales dashboard.
func (c *Client) ActiveUsersNow(ctx context.Context, propertyID string) (int64, error) {
	req := &analyticsdata.RunRealtimeReportRequest{
		Dimensions: []*analyticsdata.Dimension{{Name: "unifiedScreenName"}},
		Metrics:    []*analyticsdata.Metric{{Name: "activeUsers"}},
	}

	resp, err := c.data.Properties.RunRealtimeReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("running realtime active users report: %w", err)
	}
	var total int64
	for _, row := range resp.Rows {
		if len(row.MetricValues) == 0 {
			continue
		}
		n, _ := strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		total += n
	}
	return total, nil
}

// APIStatus describes one probed GA4 API surface.
type APIStatus struct {
	Available      bool  `json:"available"`
	ResponseTimeMs int64 `json:"responseTimeMs"`
	HasData        bool  `json:"hasData"`
}

// Status is the result of probing both GA4 API surfaces for a property.
type Status struct {
	DataAPI     APIStatus `json:"dataApi"`
	RealtimeAPI APIStatus `json:"realtimeApi"`
}

// CheckStatus checks the Data API (a one-row 7-day report) and the realtime
// API (a one-row active-users report) and reports availability, latency,
// and whether either returned data. A failing API surface is reported as
// unavailable, never as a check failure.
func (c *Client) CheckStatus(ctx context.Context, propertyID string) *Status {
	status := &Status{}

	start := time.Now()
	report, err := c.data.Properties.RunReport(propertyRef(propertyID), &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: "7daysAgo", EndDate: "today"}},
		Dimensions: []*analyticsdata.Dimension{{Name: "date"}},
		Metrics:    []*analyticsdata.Metric{{Name: "activeUsers"}},
		Limit:      1,
	}).Context(ctx).Do()
	status.DataAPI.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		c.logger.WithError(err).WithField("property", propertyID).Warn("GA4 Data API check failed")
	} else {
		status.DataAPI.Available = true
		status.DataAPI.HasData = len(report.Rows) > 0
	}

	start = time.Now()
	realtime, err := c.data.Properties.RunRealtimeReport(propertyRef(propertyID), &analyticsdata.RunRealtimeReportRequest{
		Dimensions: []*analyticsdata.Dimension{{Name: "unifiedScreenName"}},
		Metrics:    []*analyticsdata.Metric{{Name: "activeUsers"}},
		Limit:      1,
	}).Context(ctx).Do()
	status.RealtimeAPI.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		c.logger.WithError(err).WithField("property", propertyID).Warn("GA4 realtime API check failed")
	} else {
		status.RealtimeAPI.Available = true
		status.RealtimeAPI.HasData = len(realtime.Rows) > 0
	}

	return status
}

// inspectionListLimit caps the dimension/metric names an inspection returns.
const inspectionListLimit = 20

// Inspection summarizes what a property's Data API exposes: a sample of its
// dimension and metric catalog plus a small recent event report.
type Inspection struct {
	AvailableDimensions []string             `json:"availableDimensions"`
	AvailableMetrics    []string             `json:"availableMetrics"`
	SampleEventData     []*analyticsdata.Row `json:"sampleEventData"`
}

// InspectProperty fetches the property's report metadata and a ten-row
// eventName × eventCount sample, the raw material of the data inspector.
func (c *Client) InspectProperty(ctx context.Context, propertyID, startDate, endDate string) (*Inspection, error) {
	if startDate == "" {
		startDate = "30daysAgo"
	}
	if endDate == "" {
		endDate = "today"
	}

	metadata, err := c.data.Properties.GetMetadata(propertyRef(propertyID) + "/metadata").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching property metadata: %w", err)
	}

	sample, err := c.data.Properties.RunReport(propertyRef(propertyID), &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []*analyticsdata.Dimension{{Name: "eventName"}},
		Metrics:    []*analyticsdata.Metric{{Name: "eventCount"}},
		Limit:      10,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running sample event report: %w", err)
	}

	inspection := &Inspection{SampleEventData: sample.Rows}
	for _, d := range metadata.Dimensions {
		if len(inspection.AvailableDimensions) == inspectionListLimit {
			break
		}
		inspection.AvailableDimensions = append(inspection.AvailableDimensions, d.ApiName)
	}
	for _, m := range metadata.Metrics {
		if len(inspection.AvailableMetrics) == inspectionListLimit {
			break
		}
		inspection.AvailableMetrics = append(inspection.AvailableMetrics, m.ApiName)
	}
	return inspection, nil
}

// RunRealtimeReport returns the active-users-right-now report the realtime
// panel renders (screen × country × device).
func (c *Client) RunRealtimeReport(ctx context.Context, propertyID string) (*analyticsdata.RunRealtimeReportResponse, error) {
	req := &analyticsdata.RunRealtimeReportRequest{
		Dimensions: []*analyticsdata.Dimension{
			{Name: "unifiedScreenName"},
			{Name: "country"},
			{Name: "deviceCategory"},
		},
		Metrics: []*analyticsdata.Metric{{Name: "activeUsers"}},
	}

	resp, err := c.data.Properties.RunRealtimeReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running realtime report: %w", err)
	}
	return resp, nil
}

// EcommerceFunnel returns realtime e-commerce event counts restricted to
// the view_item → add_to_cart → purchase funnel.
func (c *Client) EcommerceFunnel(ctx context.Context, propertyID string) (*analyticsdata.RunRealtimeReportResponse, error) {
	req := &analyticsdata.RunRealtimeReportRequest{
		Dimensions: []*analyticsdata.Dimension{
			{Name: "eventName"},
			{Name: "itemName"},
		},
		Metrics: []*analyticsdata.Metric{{Name: "eventCount"}},
		DimensionFilter: &analyticsdata.FilterExpression{
			Filter: &analyticsdata.Filter{
				FieldName: "eventName",
				InListFilter: &analyticsdata.InListFilter{
					Values: []string{"view_item", "add_to_cart", "purchase"},
				},
			},
		},
	}

	resp, err := c.data.Properties.RunRealtimeReport(propertyRef(propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running ecommerce funnel report: %w", err)
	}
	return resp, nil
}
