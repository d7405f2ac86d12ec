package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// AnalysisSummary is the listing projection of a persisted run. JSON names
// follow the table's column names.
type AnalysisSummary struct {
	ID                int64     `json:"id"`
	UUID              string    `json:"uuid"`
	CompanyName       string    `json:"company_name"`
	NumberOfEmployees *string   `json:"number_of_employees"`
	CompanyGSTIN      *string   `json:"company_gstin"`
	Model             string    `json:"model"`
	LatencyMs         int64     `json:"latency_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

// Analysis is one persisted pipeline run. Rows are written once and never
// updated.
type Analysis struct {
	AnalysisSummary
	Analysis       string  `json:"analysis"`
	CompanyDetails string  `json:"company_details"`
	Reviews        *string `json:"reviews"`
	// Sources is the JSON-encoded source list.
	Sources *string `json:"sources"`
}
