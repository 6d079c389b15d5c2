package app

import (
	"strings"

	"github.com/procura/fdr-service/internal/domain"
)

const (
	msgBankNameRequired      = "Bank name is required"
	msgDepositAmountPositive = "Deposit Amount must be a positive number"
	msgDateOfDepositRequired = "Date of Deposit is required"
)

// ValidateRow checks one normalized import row and returns the first failure
// message, or "" when the row is acceptable. Category and maturity fields are
// never checked here.
func ValidateRow(row domain.ImportRow) string {
	if strings.TrimSpace(row.BankName) == "" {
		return msgBankNameRequired
	}
	if row.DepositAmount == nil || !row.DepositAmount.IsPositive() {
		return msgDepositAmountPositive
	}
	if row.DateOfDeposit == nil || row.DateOfDeposit.IsZero() {
		return msgDateOfDepositRequired
	}
	return ""
}
