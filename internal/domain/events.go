/**
 * @description
 * Event payloads published to the events exchange whenever an FDR changes.
 * Routing keys follow the "fdr.<action>" convention.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoutingKeyFDRCreated       = "fdr.created"
	RoutingKeyFDRUpdated       = "fdr.updated"
	RoutingKeyFDRDeleted       = "fdr.deleted"
	RoutingKeyFDRStatusChanged = "fdr.status_changed"
	RoutingKeyFDRMatured       = "fdr.matured"
	RoutingKeyFDRExpiring      = "fdr.expiring"
	RoutingKeyFDRBulkImported  = "fdr.bulk_imported"
)

// FDREvent is published for single-record changes.
type FDREvent struct {
	FDRID      uuid.UUID `json:"fdr_id"`
	FDRNumber  *string   `json:"fdr_number,omitempty"`
	Category   Category  `json:"category"`
	Status     Status    `json:"status"`
	PrevStatus Status    `json:"prev_status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ExpiringFDREvent notifies downstream consumers that an instrument matures soon.
type ExpiringFDREvent struct {
	FDRID             uuid.UUID `json:"fdr_id"`
	FDRNumber         *string   `json:"fdr_number,omitempty"`
	BankName          string    `json:"bank_name"`
	MaturityDate      time.Time `json:"maturity_date"`
	DaysUntilMaturity int       `json:"days_until_maturity"`
	Timestamp         time.Time `json:"timestamp"`
}

// MaturitySweepEvent summarizes one maturity sweep.
type MaturitySweepEvent struct {
	Updated   int64     `json:"updated"`
	AsOf      time.Time `json:"as_of"`
	Timestamp time.Time `json:"timestamp"`
}

// BulkImportEvent summarizes one spreadsheet import.
type BulkImportEvent struct {
	TotalRows    int       `json:"total_rows"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	SkippedCount int       `json:"skipped_count"`
	Timestamp    time.Time `json:"timestamp"`
}
