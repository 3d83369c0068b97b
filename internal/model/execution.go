// Package model defines the data structures persisted by the application.
package model

import "time"

// Execution is one recorded run of the execute endpoint.
//
// Status, Output and ExitCode mirror the result record returned to the
// client; Timeout and Duration are stored as milliseconds.
type Execution struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	TimeoutMS  int64     `json:"timeoutMs"`
	Status     string    `json:"status"`
	Output     string    `json:"output"`
	ExitCode   int       `json:"exitCode"`
	DurationMS int64     `json:"durationMs"`
	Subject    string    `json:"subject,omitempty"` // token subject of the caller, empty when auth is off
	CreatedAt  time.Time `json:"createdAt"`
}
