/**
 * @description
 * Domain models for Fixed Deposit Receipts (FDRs) and the bank guarantees,
 * security deposits and performance guarantees tracked under the same schema.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category tags the purpose of an instrument.
type Category string

const (
	CategorySecurityDeposit      Category = "SD"
	CategoryPerformanceGuarantee Category = "PG"
	CategoryFixedDeposit         Category = "FD"
	CategoryBankGuarantee        Category = "BG"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurityDeposit, CategoryPerformanceGuarantee, CategoryFixedDeposit, CategoryBankGuarantee:
		return true
	}
	return false
}

// Status is the lifecycle state of an FDR.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusReturned  Status = "RETURNED"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// Terminal reports whether the instrument is no longer live.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusReturned
}

// FDR is the persisted instrument record plus the derived maturity fields.
type FDR struct {
	ID              uuid.UUID        `json:"id"`
	Category        Category         `json:"category"`
	BankName        string           `json:"bank_name"`
	AccountNo       *string          `json:"account_no,omitempty"`
	FDRNumber       *string          `json:"fdr_number,omitempty"`
	AccountName     *string          `json:"account_name,omitempty"`
	DepositAmount   decimal.Decimal  `json:"deposit_amount"`
	MaturityValue   *decimal.Decimal `json:"maturity_value,omitempty"`
	DateOfDeposit   time.Time        `json:"date_of_deposit"`
	MaturityDate    *time.Time       `json:"maturity_date,omitempty"`
	ContractNo      *string          `json:"contract_no,omitempty"`
	ContractDetails *string          `json:"contract_details,omitempty"`
	POC             *string          `json:"poc,omitempty"`
	Location        *string          `json:"location,omitempty"`
	DocumentURL     *string          `json:"document_url,omitempty"`
	ExtractedData   *ExtractedData   `json:"extracted_data,omitempty"`
	Status          Status           `json:"status"`
	Tags            []string         `json:"tags"`
	OfferID         *uuid.UUID       `json:"offer_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Computed on read.
	DaysUntilMaturity *int `json:"days_until_maturity"`
	IsExpired         bool `json:"is_expired"`
}

// ApplyDerived fills DaysUntilMaturity and IsExpired relative to today.
// today must be a calendar date (midnight) in the business timezone.
func (f *FDR) ApplyDerived(today time.Time) {
	f.DaysUntilMaturity = nil
	f.IsExpired = false
	if f.MaturityDate == nil {
		return
	}
	maturity := time.Date(f.MaturityDate.Year(), f.MaturityDate.Month(), f.MaturityDate.Day(), 0, 0, 0, 0, time.UTC)
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(maturity.Sub(base).Hours() / 24)
	f.DaysUntilMaturity = &days
	f.IsExpired = maturity.Before(base)
}

// FDRPage is one page of a filtered listing.
type FDRPage struct {
	Items      []FDR `json:"items"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// UploadedFile is a document received from a client and spooled to disk.
type UploadedFile struct {
	Path         string
	OriginalName string
	ContentType  string
	Size         int64
}
