package entity

import "time"

// SyncKind names the sync operation a summary belongs to
type SyncKind string

const (
	SyncKindCompanies    SyncKind = "companies"
	SyncKindCustomFields SyncKind = "custom_fields"
)

// SyncRunSummary is the outcome of one sync run
type SyncRunSummary struct {
	Kind        SyncKind  `json:"kind"`
	Success     bool      `json:"success"`
	Total       int       `json:"total"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Errors      int       `json:"errors"`
	Pages       int       `json:"pages"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Message     string    `json:"message,omitempty"`
	ErrorClass  string    `json:"error_class,omitempty"`
}

// Status is the short label used for metrics and logs
func (s *SyncRunSummary) Status() string {
	if s.Success {
		return "success"
	}
	if s.Total > 0 {
		return "partial"
	}
	return "failed"
}

// SyncStartedResponse is returned when an asynchronous run was accepted
type SyncStartedResponse struct {
	Kind    SyncKind `json:"kind"`
	Started bool     `json:"started"`
}
