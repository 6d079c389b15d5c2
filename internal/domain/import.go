/**
 * @description
 * Ephemeral types used by the Excel bulk import. None of these are persisted.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImportRow is one normalized spreadsheet line.
type ImportRow struct {
	Category        string
	BankName        string
	AccountNo       string
	FDRNumber       string
	AccountName     string
	DepositAmount   *decimal.Decimal
	DateOfDeposit   *time.Time
	MaturityValue   *decimal.Decimal
	MaturityDate    *time.Time
	ContractNo      string
	ContractDetails string
	POC             string
	Location        string
	EMD             *decimal.Decimal
	SD              *decimal.Decimal
	Status          string
}

// ImportRowError records why one spreadsheet row was rejected or skipped.
type ImportRowError struct {
	Row       int    `json:"row"`
	FDRNumber string `json:"fdr_number"`
	Error     string `json:"error"`
}

// ImportedFDR is the minimal summary returned for each created record.
type ImportedFDR struct {
	FDRNumber     *string         `json:"fdr_number,omitempty"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	BankName      string          `json:"bank_name"`
	Location      *string         `json:"location,omitempty"`
}

// BulkImportResult is the per-call import report.
type BulkImportResult struct {
	TotalRows    int              `json:"total_rows"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	SkippedCount int              `json:"skipped_count"`
	Errors       []ImportRowError `json:"errors"`
	Created      []ImportedFDR    `json:"created"`
}
