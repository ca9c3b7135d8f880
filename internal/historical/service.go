// Package historical orchestrates one historical traffic-flow job: backend
// selection with BigQuery→GA4 fallback for session rows, concurrent
// best-effort demographics and revenue fetches, graph aggregation, and the
// debug trail tying it all together.
package historical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	bqapi "google.golang.org/api/bigquery/v2"

	"caudal/internal/audit"
	"caudal/internal/bigquery"
	"caudal/internal/flow"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
	"caudal/internal/pkg/async"
)

var (
	// ErrInvalidRequest marks configuration errors: nothing upstream was
	// attempted and the caller should fix the request.
	ErrInvalidRequest = errors.New("invalid historical job request")
	// ErrAllBackendsFailed means every attempted row backend failed; the
	// trail carries the attempts.
	ErrAllBackendsFailed = errors.New("all row data backends failed")
)

// RowSource is the BigQuery-shaped row backend.
type RowSource interface {
	QueryHistoricalData(ctx context.Context, projectID, datasetID, startDate, endDate string) ([]*bqapi.TableRow, error)
}

// ReportSource is the GA4-shaped report backend, used for the row fallback
// and for the demographic/revenue enrichment.
type ReportSource interface {
	RunHistoricalReport(ctx context.Context, propertyID, startDate, endDate string) ([]*analyticsdata.Row, error)
	DemographicBreakdown(ctx context.Context, propertyID string, breakdown ga4.Breakdown, startDate, endDate string) ([]flow.NameValue, error)
	Revenue(ctx context.Context, propertyID, startDate, endDate string) (float64, error)
}

// Request describes one historical job. Credential is already resolved by
// the auth layer; this package never sees tokens.
type Request struct {
	PropertyID string
	DatasetID  string
	StartDate  string
	EndDate    string
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
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidRequest)
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: endDate before startDate", ErrInvalidRequest)
	}
	return nil
}

// Service runs historical jobs. Backends are constructed per request from
// the request's credential, so concurrent jobs with different credentials
// never share clients or state.
type Service struct {
	logger   *logrus.Logger
	pool     *async.Pool
	recorder *audit.Recorder

	newRowSource    func(ctx context.Context, key *gauth.Key) (RowSource, error)
	newReportSource func(ctx context.Context, key *gauth.Key) (ReportSource, error)
}

// NewService wires a service against the real GA4 and BigQuery clients.
// recorder may be nil to disable the job audit log.
func NewService(logger *logrus.Logger, recorder *audit.Recorder) *Service {
	return &Service{
		logger:   logger,
		pool:     async.NewPool(6),
		recorder: recorder,
		newRowSource: func(ctx context.Context, key *gauth.Key) (RowSource, error) {
			return bigquery.NewClient(ctx, logger, key.ClientOptions()...)
		},
		newReportSource: func(ctx context.Context, key *gauth.Key) (ReportSource, error) {
			return ga4.NewClient(ctx, logger, key.ClientOptions()...)
		},
	}
}

type rowFetchOutcome struct {
	rows       []flow.CanonicalRow
	dataSource string
}

// Run executes one job: the row path (BigQuery first when a dataset id is
// present, GA4 Data API otherwise or on failure), four demographic
// breakdowns, and the revenue metric, all settled before returning. The
// returned trail is always non-nil. When every attempted row backend fails
// it returns ErrAllBackendsFailed and no partial result.
func (s *Service) Run(ctx context.Context, req Request) (*flow.Result, *Trail, error) {
	trail := NewTrail()

	if err := req.Validate(); err != nil {
		return nil, trail, err
	}

	reportSource, reportErr := s.newReportSource(ctx, req.Credential)

	tasks := []async.Task{
		{
			Name: "rows",
			Execute: func() (interface{}, error) {
				return s.fetchRows(ctx, req, reportSource, reportErr, trail)
			},
		},
		{
			Name: "revenue",
			Execute: func() (interface{}, error) {
				if reportErr != nil {
					return float64(0), reportErr
				}
				return reportSource.Revenue(ctx, req.PropertyID, req.StartDate, req.EndDate)
			},
		},
	}
	for _, breakdown := range ga4.DemographicBreakdowns {
		b := breakdown
		tasks = append(tasks, async.Task{
			Name: "demographics/" + b.Name,
			Execute: func() (interface{}, error) {
				if reportErr != nil {
					return []flow.NameValue(nil), reportErr
				}
				return reportSource.DemographicBreakdown(ctx, req.PropertyID, b, req.StartDate, req.EndDate)
			},
		})
	}

	results := s.pool.Execute(ctx, tasks)

	demographics := s.collectDemographics(results, trail)
	revenue := s.collectRevenue(results, trail)

	rowResult, ok := results["rows"]
	if !ok {
		s.recordJob(req, trail, nil, audit.StatusFailed)
		return nil, trail, ctx.Err()
	}
	if rowResult.Err != nil {
		s.recordJob(req, trail, nil, audit.StatusFailed)
		return nil, trail, rowResult.Err
	}
	outcome := rowResult.Data.(rowFetchOutcome)
	trail.SetDataSource(outcome.dataSource)

	graph := flow.BuildGraph(outcome.rows)
	result := flow.AssembleResult(graph, demographics, revenue, req.StartDate, req.EndDate)

	s.logger.WithFields(logrus.Fields{
		"property":   req.PropertyID,
		"dataSource": outcome.dataSource,
		"nodes":      len(result.Nodes),
		"edges":      len(result.Edges),
	}).Info("Historical job completed")

	s.recordJob(req, trail, &result, audit.StatusCompleted)
	return &result, trail, nil
}

// fetchRows is the sequential fallback path: BigQuery exactly once when a
// dataset id was supplied, then the GA4 Data API exactly once. Every
// attempt lands in the trail.
func (s *Service) fetchRows(ctx context.Context, req Request, reportSource ReportSource, reportErr error, trail *Trail) (rowFetchOutcome, error) {
	if req.DatasetID != "" {
		rowSource, err := s.newRowSource(ctx, req.Credential)
		if err != nil {
			trail.Failure(SourceBigQuery, err)
			s.logger.WithError(err).Warn("BigQuery client construction failed, falling back to GA4 Data API")
		} else {
			rows, err := rowSource.QueryHistoricalData(ctx, req.Credential.ProjectID, req.DatasetID, req.StartDate, req.EndDate)
			if err == nil {
				canonical := flow.NormalizeBigQueryRows(rows)
				trail.Success(SourceBigQuery, len(canonical))
				return rowFetchOutcome{rows: canonical, dataSource: SourceBigQuery}, nil
			}
			trail.Failure(SourceBigQuery, err)
			s.logger.WithError(err).Warn("BigQuery query failed, falling back to GA4 Data API")
		}
	} else {
		trail.Skip(SourceBigQuery, "no dataset id supplied")
	}

	if reportErr != nil {
		trail.Failure(SourceGA4, reportErr)
		return rowFetchOutcome{}, fmt.Errorf("%w: %v", ErrAllBackendsFailed, reportErr)
	}
	ga4Rows, err := reportSource.RunHistoricalReport(ctx, req.PropertyID, req.StartDate, req.EndDate)
	if err != nil {
		trail.Failure(SourceGA4, err)
		return rowFetchOutcome{}, fmt.Errorf("%w: %v", ErrAllBackendsFailed, err)
	}
	canonical := flow.NormalizeGA4Rows(ga4Rows)
	trail.Success(SourceGA4, len(canonical))
	return rowFetchOutcome{rows: canonical, dataSource: SourceGA4}, nil
}

// collectDemographics assembles the four breakdown results. A failed
// breakdown degrades to an empty series and a trail entry; it never fails
// the job.
func (s *Service) collectDemographics(results map[string]async.Result, trail *Trail) flow.Demographics {
	var demographics flow.Demographics
	for _, breakdown := range ga4.DemographicBreakdowns {
		result := results["demographics/"+breakdown.Name]
		source := "GA4 demographics/" + breakdown.Name
		if result.Err != nil {
			trail.Failure(source, result.Err)
			continue
		}
		series, _ := result.Data.([]flow.NameValue)
		trail.Success(source, len(series))
		switch breakdown.Name {
		case "age":
			demographics.Age = series
		case "gender":
			demographics.Gender = series
		case "geo":
			demographics.Geo = series
		case "device":
			demographics.Device = series
		}
	}
	return demographics
}

// collectRevenue degrades a failed revenue query to 0 with a trail entry.
func (s *Service) collectRevenue(results map[string]async.Result, trail *Trail) float64 {
	result := results["revenue"]
	if result.Err != nil {
		trail.Failure(SourceRevenue, result.Err)
		return 0
	}
	revenue, _ := result.Data.(float64)
	trail.Success(SourceRevenue, 1)
	return revenue
}

func (s *Service) recordJob(req Request, trail *Trail, result *flow.Result, status string) {
	if s.recorder == nil {
		return
	}
	trailJSON, err := json.Marshal(trail)
	if err != nil {
		trailJSON = []byte("{}")
	}
	job := &audit.JobAudit{
		PropertyID: req.PropertyID,
		DatasetID:  req.DatasetID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		DataSource: trail.DataSource,
		Status:     status,
		Trail:      string(trailJSON),
	}
	if result != nil {
		job.NodeCount = len(result.Nodes)
		job.EdgeCount = len(result.Edges)
	}
	s.recorder.Record(job)
}
