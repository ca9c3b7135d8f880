package historical

import (
	"sync"
	"time"
)

// Status of one backend attempt in the debug trail.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Trail source names, as shown in the diagnostic console.
const (
	SourceBigQuery = "BigQuery"
	SourceGA4      = "GA4 Data API"
	SourceRealtime = "GA4 Realtime"
	SourceRevenue  = "GA4 revenue"
)

// Entry is one recorded backend attempt: which source, how it went, and —
// when applicable — how many rows it produced or why it failed.
type Entry struct {
	Source string `json:"source"`
	Status Status `json:"status"`
	Rows   int    `json:"rows,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Trail is the structured audit of everything a historical job attempted.
// It is returned to the caller alongside results (or instead of them) so a
// failing backend is always visible, never silently swallowed. Safe for
// concurrent appends from the job's parallel fetches.
type Trail struct {
	mu sync.Mutex

	StartedAt  time.Time `json:"startedAt"`
	DataSource string    `json:"dataSource,omitempty"`
	Entries    []Entry   `json:"entries"`
}

// NewTrail starts an empty trail stamped with the current time.
func NewTrail() *Trail {
	return &Trail{StartedAt: time.Now().UTC(), Entries: []Entry{}}
}

// Success records a successful attempt and the row count it yielded.
func (t *Trail) Success(source string, rows int) {
	t.add(Entry{Source: source, Status: StatusSuccess, Rows: rows})
}

// Failure records a failed attempt with its error message.
func (t *Trail) Failure(source string, err error) {
	entry := Entry{Source: source, Status: StatusFailed}
	if err != nil {
		entry.Error = err.Error()
	}
	t.add(entry)
}

// Skip records a backend that was not attempted and why.
func (t *Trail) Skip(source, reason string) {
	t.add(Entry{Source: source, Status: StatusSkipped, Error: reason})
}

func (t *Trail) add(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, entry)
}

// SetDataSource notes which backend ultimately supplied the session rows.
func (t *Trail) SetDataSource(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.DataSource = source
}
