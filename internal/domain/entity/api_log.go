package entity

import "time"

// APILog represents a log entry for API requests to the CRM API
type APILog struct {
	ID           int64     `json:"id" db:"id"`
	Endpoint     string    `json:"endpoint" db:"endpoint"`
	Method       string    `json:"method" db:"method"`
	RequestBody  string    `json:"request_body" db:"request_body"`
	ResponseBody string    `json:"response_body" db:"response_body"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	Duration     int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
