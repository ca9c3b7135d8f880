// Package monthly builds the month-to-date sales dashboard: per-item
// revenue and funnel counts with BigQuery→GA4 fallback, a best-effort
// realtime active-users overlay, and the same debug trail the historical
// jobs carry.
package monthly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	bqapi "google.golang.org/api/bigquery/v2"

	"caudal/internal/bigquery"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
	"caudal/internal/historical"
)

var (
	// ErrInvalidRequest marks configuration errors; nothing upstream was
	// attempted.
	ErrInvalidRequest = errors.New("invalid monthly dashboard request")
	// ErrAllBackendsFailed means every attempted item backend failed; the
	// trail carries the attempts.
	ErrAllBackendsFailed = errors.New("all item data backends failed")
)

// RowSource is the BigQuery-shaped item backend.
type RowSource interface {
	QueryMonthlyItemData(ctx context.Context, projectID, datasetID, startDate, endDate string) ([]*bqapi.TableRow, error)
}

// ReportSource is the GA4-shaped backend: the item report fallback plus the
// realtime overlay.
type ReportSource interface {
	MonthlyItemReport(ctx context.Context, propertyID, startDate, endDate string) ([]*analyticsdata.Row, error)
	ActiveUsersNow(ctx context.Context, propertyID string) (int64, error)
}

// Request describes one dashboard build. Credential is already resolved by
// the auth layer.
type Request struct {
	PropertyID string
	DatasetID  string
	Credential *gauth.Key
}

// Validate checks the request before any backend is contacted.
func (r Request) Validate() error {
	if r.Credential == nil {
		return fmt.Errorf("%w: missing credential", ErrInvalidRequest)
	}
	if r.PropertyID == "" {
		return fmt.Errorf("%w: missing propertyId", ErrInvalidRequest)
	}
	return nil
}

// ItemRow is the single per-item daily row shape the aggregation consumes,
// regardless of which backend produced it.
type ItemRow struct {
	Name      string
	Date      string
	Revenue   float64
	Purchased int64
	Viewed    int64
	AddedTo   int64
}

// Product is one aggregated catalog item with its month-to-date funnel.
// Rates are percentages rounded to two decimals.
type Product struct {
	Name                  string  `json:"name"`
	Revenue               float64 `json:"revenue"`
	Units                 int64   `json:"units"`
	Views                 int64   `json:"views"`
	Carts                 int64   `json:"carts"`
	Purchases             int64   `json:"purchases"`
	ViewToCartRate        float64 `json:"viewToCartRate"`
	CartToPurchaseRate    float64 `json:"cartToPurchaseRate"`
	OverallConversionRate float64 `json:"overallConversionRate"`
}

// Period describes the dashboard's date window and where the data came from.
type Period struct {
	Start                 string `json:"start"`
	End                   string `json:"end"`
	Today                 string `json:"today"`
	DataSource            string `json:"dataSource"`
	HasRealtimeEnrichment bool   `json:"hasRealtimeEnrichment"`
}

// Metrics are the dashboard's headline numbers.
type Metrics struct {
	TotalRevenue          float64 `json:"totalRevenue"`
	TotalOrders           int64   `json:"totalOrders"`
	AvgOrderValue         float64 `json:"avgOrderValue"`
	OverallConversionRate float64 `json:"overallConversionRate"`
	ActiveUsersNow        int64   `json:"activeUsersNow"`
}

// Dashboard is the assembled month-to-date sales view.
type Dashboard struct {
	Period        Period    `json:"period"`
	Metrics       Metrics   `json:"metrics"`
	TopProducts   []Product `json:"topProducts"`
	WorstProducts []Product `json:"worstProducts"`
}

// productListLimit bounds the top and worst product lists.
const productListLimit = 10

// Service builds dashboards. Backends are constructed per request from the
// request's credential, so concurrent requests with different credentials
// never share clients.
type Service struct {
	logger *logrus.Logger
	now    func() time.Time

	newRowSource    func(ctx context.Context, key *gauth.Key) (RowSource, error)
	newReportSource func(ctx context.Context, key *gauth.Key) (ReportSource, error)
}

// NewService wires a service against the real GA4 and BigQuery clients.
func NewService(logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		now:    time.Now,
		newRowSource: func(ctx context.Context, key *gauth.Key) (RowSource, error) {
			return bigquery.NewClient(ctx, logger, key.ClientOptions()...)
		},
		newReportSource: func(ctx context.Context, key *gauth.Key) (ReportSource, error) {
			return ga4.NewClient(ctx, logger, key.ClientOptions()...)
		},
	}
}

// Run builds the dashboard for the window from the first of the current
// month through yesterday (clamped to the first on the month's opening day).
// Item rows come from BigQuery when a dataset id is present, falling back to
// the GA4 Data API; the realtime overlay is best-effort and never fails the
// build. The returned trail is always non-nil.
func (s *Service) Run(ctx context.Context, req Request) (*Dashboard, *historical.Trail, error) {
	trail := historical.NewTrail()

	if err := req.Validate(); err != nil {
		return nil, trail, err
	}

	now := s.now().UTC()
	start, end := monthToDateWindow(now)

	reportSource, reportErr := s.newReportSource(ctx, req.Credential)

	rows, dataSource, err := s.fetchItems(ctx, req, reportSource, reportErr, start, end, trail)
	if err != nil {
		return nil, trail, err
	}
	trail.SetDataSource(dataSource)

	products := aggregateProducts(rows)

	dashboard := &Dashboard{
		Period: Period{
			Start:      start,
			End:        end,
			Today:      now.Format("2006-01-02"),
			DataSource: dataSource,
		},
		Metrics:       summarize(products),
		TopProducts:   topProducts(products),
		WorstProducts: worstProducts(products),
	}

	if reportErr == nil {
		active, err := reportSource.ActiveUsersNow(ctx, req.PropertyID)
		if err != nil {
			trail.Failure(historical.SourceRealtime, err)
		} else {
			trail.Success(historical.SourceRealtime, 1)
			dashboard.Metrics.ActiveUsersNow = active
			dashboard.Period.HasRealtimeEnrichment = true
		}
	} else {
		trail.Failure(historical.SourceRealtime, reportErr)
	}

	s.logger.WithFields(logrus.Fields{
		"property":   req.PropertyID,
		"dataSource": dataSource,
		"products":   len(products),
	}).Info("Monthly dashboard built")

	return dashboard, trail, nil
}

// fetchItems is the sequential fallback path: BigQuery exactly once when a
// dataset id was supplied, then the GA4 Data API exactly once. Every attempt
// lands in the trail.
func (s *Service) fetchItems(ctx context.Context, req Request, reportSource ReportSource, reportErr error, start, end string, trail *historical.Trail) ([]ItemRow, string, error) {
	if req.DatasetID != "" {
		rowSource, err := s.newRowSource(ctx, req.Credential)
		if err != nil {
			trail.Failure(historical.SourceBigQuery, err)
			s.logger.WithError(err).Warn("BigQuery client construction failed, falling back to GA4 Data API")
		} else {
			bqRows, err := rowSource.QueryMonthlyItemData(ctx, req.Credential.ProjectID, req.DatasetID, start, end)
			if err == nil {
				rows := normalizeBigQueryItems(bqRows)
				trail.Success(historical.SourceBigQuery, len(rows))
				return rows, historical.SourceBigQuery, nil
			}
			trail.Failure(historical.SourceBigQuery, err)
			s.logger.WithError(err).Warn("BigQuery item query failed, falling back to GA4 Data API")
		}
	} else {
		trail.Skip(historical.SourceBigQuery, "no dataset id supplied")
	}

	if reportErr != nil {
		trail.Failure(historical.SourceGA4, reportErr)
		return nil, "", fmt.Errorf("%w: %v", ErrAllBackendsFailed, reportErr)
	}
	ga4Rows, err := reportSource.MonthlyItemReport(ctx, req.PropertyID, start, end)
	if err != nil {
		trail.Failure(historical.SourceGA4, err)
		return nil, "", fmt.Errorf("%w: %v", ErrAllBackendsFailed, err)
	}
	rows := normalizeGA4Items(ga4Rows)
	trail.Success(historical.SourceGA4, len(rows))
	return rows, historical.SourceGA4, nil
}

// monthToDateWindow returns the first of now's month and yesterday as
// YYYY-MM-DD. On the first day of a month yesterday would precede the start,
// so the window collapses to that single day.
func monthToDateWindow(now time.Time) (string, string) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 0, -1)
	if end.Before(monthStart) {
		end = monthStart
	}
	return monthStart.Format("2006-01-02"), end.Format("2006-01-02")
}

// aggregateProducts folds daily item rows into one product per item name,
// sorted by revenue descending. Equal-revenue products keep first-seen order.
func aggregateProducts(rows []ItemRow) []Product {
	index := make(map[string]int, len(rows))
	var products []Product
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" || name == "(not set)" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(products)
			index[name] = i
			products = append(products, Product{Name: name})
		}
		products[i].Revenue += row.Revenue
		products[i].Units += row.Purchased
		products[i].Views += row.Viewed
		products[i].Carts += row.AddedTo
		products[i].Purchases += row.Purchased
	}

	for i := range products {
		p := &products[i]
		p.Revenue = round2(p.Revenue)
		p.ViewToCartRate = rate(p.Carts, p.Views)
		p.CartToPurchaseRate = rate(p.Purchases, p.Carts)
		p.OverallConversionRate = rate(p.Purchases, p.Views)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Revenue > products[j].Revenue
	})
	return products
}

// topProducts is the best-selling slice of an already sorted product list.
func topProducts(products []Product) []Product {
	n := len(products)
	if n > productListLimit {
		n = productListLimit
	}
	out := make([]Product, n)
	copy(out, products[:n])
	return out
}

// worstProducts is the tail of the sorted list, reversed so the lowest
// earner comes first.
func worstProducts(products []Product) []Product {
	n := len(products)
	if n > productListLimit {
		n = productListLimit
	}
	out := make([]Product, 0, n)
	for i := len(products) - 1; i >= len(products)-n; i-- {
		out = append(out, products[i])
	}
	return out
}

// summarize computes the headline metrics from the aggregated products.
// ActiveUsersNow is filled in later by the realtime overlay.
func summarize(products []Product) Metrics {
	var m Metrics
	var views int64
	for _, p := range products {
		m.TotalRevenue += p.Revenue
		m.TotalOrders += p.Purchases
		views += p.Views
	}
	m.TotalRevenue = round2(m.TotalRevenue)
	if m.TotalOrders > 0 {
		m.AvgOrderValue = round2(m.TotalRevenue / float64(m.TotalOrders))
	}
	m.OverallConversionRate = rate(m.TotalOrders, views)
	return m
}

// normalizeBigQueryItems adapts tabular result rows, shaped (item_name,
// event_date, item_revenue, items_purchased, items_viewed,
// items_added_to_cart), into item rows. Bad cells degrade to zero.
func normalizeBigQueryItems(rows []*bqapi.TableRow) []ItemRow {
	out := make([]ItemRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, ItemRow{
			Name:      cellString(row.F, 0),
			Date:      cellString(row.F, 1),
			Revenue:   parseAmount(cellString(row.F, 2)),
			Purchased: parseCount(cellString(row.F, 3)),
			Viewed:    parseCount(cellString(row.F, 4)),
			AddedTo:   parseCount(cellString(row.F, 5)),
		})
	}
	return out
}

// normalizeGA4Items adapts Data API report rows, with dimensions (itemName,
// date) and metrics (itemRevenue, itemsPurchased, itemsViewed,
// itemsAddedToCart), into item rows.
func normalizeGA4Items(rows []*analyticsdata.Row) []ItemRow {
	out := make([]ItemRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, ItemRow{
			Name:      dimensionValue(row.DimensionValues, 0),
			Date:      dimensionValue(row.DimensionValues, 1),
			Revenue:   parseAmount(metricValue(row.MetricValues, 0)),
			Purchased: parseCount(metricValue(row.MetricValues, 1)),
			Viewed:    parseCount(metricValue(row.MetricValues, 2)),
			AddedTo:   parseCount(metricValue(row.MetricValues, 3)),
		})
	}
	return out
}

func cellString(cells []*bqapi.TableCell, idx int) string {
	if idx >= len(cells) || cells[idx] == nil || cells[idx].V == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", cells[idx].V))
}

func dimensionValue(values []*analyticsdata.DimensionValue, idx int) string {
	if idx >= len(values) || values[idx] == nil {
		return ""
	}
	return values[idx].Value
}

func metricValue(values []*analyticsdata.MetricValue, idx int) string {
	if idx >= len(values) || values[idx] == nil {
		return ""
	}
	return values[idx].Value
}

// parseAmount parses a revenue figure reported as a string. Amounts that do
// not parse, or parse negative, count as zero.
func parseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseCount parses an event count reported as a string, zero on bad input.
func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// rate is part/whole as a percentage, two decimals, zero when whole is zero.
func rate(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
