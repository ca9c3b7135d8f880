package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"

	"caudal/internal/flow"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
	"caudal/internal/monthly"
)

// realtimeRow is one row of a realtime report, flattened out of the GA4
// response shape so handler tests can fake the catalog.
type realtimeRow struct {
	Dimensions []string
	Metric     int64
}

type realtimeReportResponse struct {
	Rows []realtimeRow
}

// ga4Catalog adapts ga4.Client to the AnalyticsCatalog interface.
type ga4Catalog struct {
	client *ga4.Client
}

func (g *ga4Catalog) ListProperties(ctx context.Context) ([]ga4.Property, error) {
	return g.client.ListProperties(ctx)
}

func (g *ga4Catalog) RunRealtimeReport(ctx context.Context, propertyID string) (*realtimeReportResponse, error) {
	resp, err := g.client.RunRealtimeReport(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return flattenRealtime(resp.Rows), nil
}

func (g *ga4Catalog) EcommerceFunnel(ctx context.Context, propertyID string) (*realtimeReportResponse, error) {
	resp, err := g.client.EcommerceFunnel(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return flattenRealtime(resp.Rows), nil
}

func (g *ga4Catalog) CheckStatus(ctx context.Context, propertyID string) *ga4.Status {
	return g.client.CheckStatus(ctx, propertyID)
}

func (g *ga4Catalog) InspectProperty(ctx context.Context, propertyID, startDate, endDate string) (*ga4.Inspection, error) {
	return g.client.InspectProperty(ctx, propertyID, startDate, endDate)
}

func flattenRealtime(rows []*analyticsdata.Row) *realtimeReportResponse {
	out := &realtimeReportResponse{}
	for _, row := range rows {
		if row == nil || len(row.MetricValues) == 0 {
			continue
		}
		dims := make([]string, len(row.DimensionValues))
		for i, d := range row.DimensionValues {
			dims[i] = d.Value
		}
		metric, _ := strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		out.Rows = append(out.Rows, realtimeRow{Dimensions: dims, Metric: metric})
	}
	return out
}

type realtimeEntry struct {
	Screen      string `json:"screen"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode,omitempty"`
	Device      string `json:"device"`
	ActiveUsers int64  `json:"activeUsers"`
}

type funnelStep struct {
	Event string `json:"event"`
	Item  string `json:"item"`
	Count int64  `json:"count"`
}

var deviceCaser = cases.Title(language.AmericanEnglish)

// RealtimeAction serves the active-users-right-now panel for one property.
func (h *Handler) RealtimeAction(c *fiber.Ctx) error {
	propertyID := c.Query("propertyId")
	if propertyID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "propertyId is required")
	}

	key, status, err := h.credentialFor(c, propertyID)
	if err != nil {
		return errorJSON(c, status, err.Error())
	}

	catalog, err := h.newAnalyticsCatalog(c.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create GA4 client for realtime report")
		return errorJSON(c, fiber.StatusBadGateway, "failed to reach GA4")
	}

	report, err := catalog.RunRealtimeReport(c.Context(), propertyID)
	if err != nil {
		h.logger.WithError(err).Error("Realtime report failed")
		return errorJSON(c, fiber.StatusBadGateway, "realtime report failed")
	}

	entries := make([]realtimeEntry, 0, len(report.Rows))
	var total int64
	for _, row := range report.Rows {
		if len(row.Dimensions) < 3 {
			continue
		}
		total += row.Metric
		entries = append(entries, realtimeEntry{
			Screen:      row.Dimensions[0],
			Country:     row.Dimensions[1],
			CountryCode: countryCode(row.Dimensions[1]),
			Device:      displayDevice(row.Dimensions[2]),
			ActiveUsers: row.Metric,
		})
	}

	return c.JSON(fiber.Map{
		"activeUsers": total,
		"entries":     entries,
	})
}

// EcommerceFunnelAction serves the realtime view_item → add_to_cart →
// purchase funnel for one property.
func (h *Handler) EcommerceFunnelAction(c *fiber.Ctx) error {
	propertyID := c.Query("propertyId")
	if propertyID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "propertyId is required")
	}

	key, status, err := h.credentialFor(c, propertyID)
	if err != nil {
		return errorJSON(c, status, err.Error())
	}

	catalog, err := h.newAnalyticsCatalog(c.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create GA4 client for funnel report")
		return errorJSON(c, fiber.StatusBadGateway, "failed to reach GA4")
	}

	report, err := catalog.EcommerceFunnel(c.Context(), propertyID)
	if err != nil {
		h.logger.WithError(err).Error("Ecommerce funnel report failed")
		return errorJSON(c, fiber.StatusBadGateway, "ecommerce funnel report failed")
	}

	itemCaser := cases.Title(language.Spanish)
	steps := make([]funnelStep, 0, len(report.Rows))
	totals := map[string]int64{}
	for _, row := range report.Rows {
		if len(row.Dimensions) < 2 {
			continue
		}
		event := row.Dimensions[0]
		totals[event] += row.Metric
		steps = append(steps, funnelStep{
			Event: event,
			Item:  itemCaser.String(row.Dimensions[1]),
			Count: row.Metric,
		})
	}

	return c.JSON(fiber.Map{
		"steps": steps,
		"totals": fiber.Map{
			"viewItem":  totals["view_item"],
			"addToCart": totals["add_to_cart"],
			"purchase":  totals["purchase"],
		},
	})
}

// MonthlyDashboardAction serves the month-to-date sales dashboard for one
// property: per-item revenue with BigQuery→GA4 fallback plus a best-effort
// realtime overlay. The response always carries the backend trail.
func (h *Handler) MonthlyDashboardAction(c *fiber.Ctx) error {
	propertyID := c.Query("propertyId")
	if propertyID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "propertyId is required")
	}

	key, status, err := h.credentialFor(c, propertyID)
	if err != nil {
		return errorJSON(c, status, err.Error())
	}

	req := monthly.Request{PropertyID: propertyID, Credential: key}
	if prop, ok := h.registry.Get(propertyID); ok && prop.HasBigQueryExport() {
		req.DatasetID = prop.BigQueryDataset
	}

	dashboard, trail, err := h.sales.Run(c.Context(), req)
	if err != nil {
		if errors.Is(err, monthly.ErrInvalidRequest) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.WithError(err).WithField("property", propertyID).Error("Monthly dashboard failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"error":  err.Error(),
			"trail":  trail,
		})
	}

	return c.JSON(fiber.Map{
		"status": "completed",
		"data":   dashboard,
		"trail":  trail,
	})
}

// credentialFor resolves the credential for a property endpoint: an access
// token when supplied, otherwise the key file of a configured property.
func (h *Handler) credentialFor(c *fiber.Ctx, propertyID string) (*gauth.Key, int, error) {
	if token := bearerToken(c); token != "" {
		key, err := h.store.Resolve(token)
		if err != nil {
			return nil, fiber.StatusUnauthorized, err
		}
		return key, 0, nil
	}

	prop, ok := h.registry.Get(propertyID)
	if !ok {
		return nil, fiber.StatusUnauthorized, errMissingCredential
	}
	key, err := prop.LoadKey()
	if err != nil {
		h.logger.WithError(err).WithField("property", propertyID).Error("Failed to load property key")
		return nil, fiber.StatusInternalServerError, errKeyUnavailable
	}
	return key, 0, nil
}

// displayDevice translates known device categories and title-cases the rest.
func displayDevice(device string) string {
	if translated := flow.Translate(device); translated != device {
		return translated
	}
	return deviceCaser.String(device)
}
