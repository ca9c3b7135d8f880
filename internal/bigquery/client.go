// Package bigquery wraps the BigQuery REST API calls used against a GA4
// export dataset: the historical session aggregation query plus dataset and
// table discovery.
package bigquery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	bqapi "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// historicalQuery aggregates the GA4 export event stream into one row per
// (source, medium, landing page): the first page_location of each session,
// its attribution, and the session count. Date bounds select the
// date-sharded events_* tables.
const historicalQuery = `
WITH session_data AS (
    SELECT
        user_pseudo_id,
        (SELECT value.int_value FROM UNNEST(event_params) WHERE key = 'ga_session_id') AS session_id,
        MAX((SELECT value.string_value FROM UNNEST(event_params) WHERE key = 'source')) AS source,
        MAX((SELECT value.string_value FROM UNNEST(event_params) WHERE key = 'medium')) AS medium,
        ARRAY_AGG(
            (SELECT value.string_value FROM UNNEST(event_params) WHERE key = 'page_location')
            ORDER BY event_timestamp ASC LIMIT 1
        )[OFFSET(0)] AS landing_page
    FROM ` + "`%s.%s.events_*`" + `
    WHERE _TABLE_SUFFIX BETWEEN '%s' AND '%s'
    GROUP BY user_pseudo_id, session_id
)
SELECT
    source,
    medium,
    landing_page,
    COUNT(*) AS session_count
FROM session_data
WHERE landing_page IS NOT NULL
GROUP BY 1, 2, 3
ORDER BY 4 DESC
LIMIT 100
`

// monthlyItemQuery aggregates the export event stream into one row per
// (item name, date) with the revenue and funnel counts the sales dashboard
// consumes: revenue, units purchased, views, add-to-carts.
const monthlyItemQuery = `
SELECT
    items.item_name AS item_name,
    event_date,
    SUM(IFNULL(items.item_revenue, 0)) AS item_revenue,
    SUM(CASE WHEN event_name = 'purchase' THEN items.quantity ELSE 0 END) AS items_purchased,
    COUNTIF(event_name = 'view_item') AS items_viewed,
    COUNTIF(event_name = 'add_to_cart') AS items_added_to_cart
FROM ` + "`%s.%s.events_*`" + `, UNNEST(items) AS items
WHERE _TABLE_SUFFIX BETWEEN '%s' AND '%s'
  AND items.item_name IS NOT NULL
GROUP BY 1, 2
ORDER BY 3 DESC
LIMIT 10000
`

// Client issues BigQuery jobs for one credential.
type Client struct {
	svc    *bqapi.Service
	logger *logrus.Logger
}

// NewClient builds a client from per-credential options.
func NewClient(ctx context.Context, logger *logrus.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := bqapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// QueryHistoricalData runs the session aggregation query over the export
// dataset's events_* tables between two YYYY-MM-DD dates. The caller
// validates the dates; they reach the table suffix as bare digits.
func (c *Client) QueryHistoricalData(ctx context.Context, projectID, datasetID, startDate, endDate string) ([]*bqapi.TableRow, error) {
	query := fmt.Sprintf(historicalQuery,
		projectID, datasetID, tableSuffix(startDate), tableSuffix(endDate))

	c.logger.WithFields(logrus.Fields{
		"project": projectID,
		"dataset": datasetID,
	}).Debug("Executing BigQuery historical query")

	resp, err := c.svc.Jobs.Query(projectID, &bqapi.QueryRequest{
		Query:           query,
		UseLegacySql:    googleapi.Bool(false),
		ForceSendFields: []string{"UseLegacySql"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("querying historical data: %w", err)
	}
	return resp.Rows, nil
}

// QueryMonthlyItemData runs the per-item sales aggregation over the export
// dataset's events_* tables between two YYYY-MM-DD dates.
func (c *Client) QueryMonthlyItemData(ctx context.Context, projectID, datasetID, startDate, endDate string) ([]*bqapi.TableRow, error) {
	query := fmt.Sprintf(monthlyItemQuery,
		projectID, datasetID, tableSuffix(startDate), tableSuffix(endDate))

	c.logger.WithFields(logrus.Fields{
		"project": projectID,
		"dataset": datasetID,
	}).Debug("Executing BigQuery monthly item query")

	resp, err := c.svc.Jobs.Query(projectID, &bqapi.QueryRequest{
		Query:           query,
		UseLegacySql:    googleapi.Bool(false),
		ForceSendFields: []string{"UseLegacySql"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("querying monthly item data: %w", err)
	}
	return resp.Rows, nil
}

// Dataset is a BigQuery dataset reachable by a credential.
type Dataset struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// ListDatasets enumerates the datasets of a project.
func (c *Client) ListDatasets(ctx context.Context, projectID string) ([]Dataset, error) {
	resp, err := c.svc.Datasets.List(projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}

	var datasets []Dataset
	for _, d := range resp.Datasets {
		if d.DatasetReference == nil {
			continue
		}
		location := d.Location
		if location == "" {
			location = "US"
		}
		datasets = append(datasets, Dataset{ID: d.DatasetReference.DatasetId, Location: location})
	}
	return datasets, nil
}

// DatasetExists reports whether a dataset id exists in the project.
func (c *Client) DatasetExists(ctx context.Context, projectID, datasetID string) (bool, error) {
	datasets, err := c.ListDatasets(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, d := range datasets {
		if d.ID == datasetID {
			return true, nil
		}
	}
	return false, nil
}

// ListEventTables returns the date suffixes of the events_* export tables in
// a dataset, sorted ascending, so callers can report the covered date range.
func (c *Client) ListEventTables(ctx context.Context, projectID, datasetID string) ([]string, error) {
	resp, err := c.svc.Tables.List(projectID, datasetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	var dates []string
	for _, t := range resp.Tables {
		if t.TableReference == nil {
			continue
		}
		id := t.TableReference.TableId
		if strings.HasPrefix(id, "events_") {
			dates = append(dates, strings.TrimPrefix(id, "events_"))
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// tableSuffix converts "2026-01-31" to the "20260131" shard suffix.
func tableSuffix(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
