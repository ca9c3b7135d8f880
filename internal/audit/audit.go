// Package audit persists the outcome and debug trail of historical jobs so
// the diagnostic console can show what each past job attempted. Aggregated
// graphs are never stored, only the metadata needed for diagnostics.
package audit

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Job statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JobAudit is one historical job's record.
type JobAudit struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string `gorm:"index;not null" json:"propertyId"`
	DatasetID  string `json:"datasetId,omitempty"`
	StartDate  string `gorm:"not null" json:"startDate"`
	EndDate    string `gorm:"not null" json:"endDate"`
	DataSource string `json:"dataSource,omitempty"`
	Status     string `gorm:"index;not null" json:"status"`
	NodeCount  int    `json:"nodeCount"`
	EdgeCount  int    `json:"edgeCount"`
	// Trail holds the job's debug trail as JSON.
	Trail     string    `gorm:"type:text" json:"trail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder writes job audits. Recording is best-effort: a storage failure
// is logged and never fails the job that produced the audit.
type Recorder struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewRecorder(db *gorm.DB, logger *logrus.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record stores one job audit.
func (r *Recorder) Record(job *JobAudit) {
	if r == nil || r.db == nil {
		return
	}
	if err := r.db.Create(job).Error; err != nil {
		r.logger.WithError(err).Warn("Failed to record job audit")
	}
}

// Recent returns the latest job audits, newest first.
func (r *Recorder) Recent(limit int) ([]JobAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []JobAudit
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}
