package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ConsistencyReportDao is a data access object that maps directly to the
// 'consistency_reports' table. Reports are a write-only audit trail of
// validate/reconcile cycles; the engine never reads them back.
type ConsistencyReportDao struct {
	bun.BaseModel     `bun:"table:consistency_reports"`
	ReportID          string     `json:"report_id" bun:"report_id,pk"`
	JobID             string     `json:"job_id" bun:"job_id,notnull"`
	Type              string     `json:"type" bun:"type,notnull"`
	Status            string     `json:"status" bun:"status,notnull"`
	StartedAt         time.Time  `json:"started_at" bun:"started_at,notnull"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" bun:"completed_at"`
	ConflictsFound    int        `json:"conflicts_found" bun:"conflicts_found"`
	ConflictsResolved int        `json:"conflicts_resolved" bun:"conflicts_resolved"`
	ConflictsFailed   int        `json:"conflicts_failed" bun:"conflicts_failed"`
	Strategy          string     `json:"strategy" bun:"strategy"`
	Error             string     `json:"error" bun:"error"`
	Details           string     `json:"details" bun:"details"`
	UpdatedAt         time.Time  `json:"updated_at" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
