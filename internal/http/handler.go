// Package http holds the fiber handlers behind the dashboard API: the
// upload-key flow, historical job execution, property configuration, and
// the realtime panels.
package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pariz/gountries"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"caudal/internal/audit"
	"caudal/internal/bigquery"
	"caudal/internal/flow"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
	"caudal/internal/historical"
	"caudal/internal/monthly"
	"caudal/internal/properties"
)

// JobRunner runs historical jobs; satisfied by historical.Service.
type JobRunner interface {
	Run(ctx context.Context, req historical.Request) (*flow.Result, *historical.Trail, error)
}

// DashboardRunner builds the month-to-date sales dashboard; satisfied by
// monthly.Service.
type DashboardRunner interface {
	Run(ctx context.Context, req monthly.Request) (*monthly.Dashboard, *historical.Trail, error)
}

// DatasetCatalog covers the BigQuery discovery calls; satisfied by
// bigquery.Client.
type DatasetCatalog interface {
	ListDatasets(ctx context.Context, projectID string) ([]bigquery.Dataset, error)
	DatasetExists(ctx context.Context, projectID, datasetID string) (bool, error)
	ListEventTables(ctx context.Context, projectID, datasetID string) ([]string, error)
}

// AnalyticsCatalog covers the GA4 discovery, realtime, and diagnostic calls;
// satisfied by ga4.Client.
type AnalyticsCatalog interface {
	ListProperties(ctx context.Context) ([]ga4.Property, error)
	RunRealtimeReport(ctx context.Context, propertyID string) (*realtimeReportResponse, error)
	EcommerceFunnel(ctx context.Context, propertyID string) (*realtimeReportResponse, error)
	CheckStatus(ctx context.Context, propertyID string) *ga4.Status
	InspectProperty(ctx context.Context, propertyID, startDate, endDate string) (*ga4.Inspection, error)
}

// Handler carries the dependencies shared by all API handlers. Google
// clients are built per request from the resolved credential, never shared.
type Handler struct {
	logger   *logrus.Logger
	store    *gauth.Store
	jobs     JobRunner
	sales    DashboardRunner
	registry *properties.Registry
	recorder *audit.Recorder
	db       *gorm.DB

	newDatasetCatalog   func(ctx context.Context, key *gauth.Key) (DatasetCatalog, error)
	newAnalyticsCatalog func(ctx context.Context, key *gauth.Key) (AnalyticsCatalog, error)
}

// NewHandler wires a handler against the real Google API clients.
func NewHandler(logger *logrus.Logger, store *gauth.Store, jobs JobRunner, sales DashboardRunner, registry *properties.Registry, recorder *audit.Recorder, db *gorm.DB) *Handler {
	return &Handler{
		logger:   logger,
		store:    store,
		jobs:     jobs,
		sales:    sales,
		registry: registry,
		recorder: recorder,
		db:       db,
		newDatasetCatalog: func(ctx context.Context, key *gauth.Key) (DatasetCatalog, error) {
			return bigquery.NewClient(ctx, logger, key.ClientOptions()...)
		},
		newAnalyticsCatalog: func(ctx context.Context, key *gauth.Key) (AnalyticsCatalog, error) {
			client, err := ga4.NewClient(ctx, logger, key.ClientOptions()...)
			if err != nil {
				return nil, err
			}
			return &ga4Catalog{client: client}, nil
		},
	}
}

var (
	errMissingCredential = errors.New("no access token supplied and property is not configured")
	errKeyUnavailable    = errors.New("property credential is unavailable")
)

// errorJSON is the uniform error payload.
func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// bearerToken extracts the access token from the Authorization header or,
// failing that, from the accessToken query parameter.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("accessToken")
}

// defaultContext derives a request-scoped context with a deadline.
func defaultContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), timeout)
}

var countryQuery = gountries.New()

// countryCode resolves a country display name to its ISO alpha-2 code, ""
// when the name is unknown or a GA4 placeholder like "(not set)".
func countryCode(name string) string {
	if name == "" || strings.HasPrefix(name, "(") {
		return ""
	}
	country, err := countryQuery.FindCountryByName(name)
	if err != nil {
		return ""
	}
	return country.Alpha2
}

// annotateGeoCodes fills in ISO codes on the geo breakdown for the flag
// icons in the demographics panel.
func annotateGeoCodes(series []flow.NameValue) []flow.NameValue {
	for i := range series {
		series[i].Code = countryCode(series[i].Name)
	}
	return series
}
