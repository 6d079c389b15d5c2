package normalize

import (
	"strings"

	"github.com/procura/fdr-service/internal/domain"
)

// CoerceOrDefault looks key up in table and returns fallback on a miss.
// Import mappers use it so that unknown labels never reject a row.
func CoerceOrDefault[K comparable, V any](table map[K]V, key K, fallback V) V {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

// Excel status labels as they appear in the tracking sheets. Matching is
// exact and case-sensitive.
var statusLabels = map[string]domain.Status{
	"Running":              domain.StatusRunning,
	"Completed":            domain.StatusCompleted,
	"Cancelled":            domain.StatusCancelled,
	"Canceled":             domain.StatusCancelled,
	"Cancelled & Returned": domain.StatusCancelled,
	"Returned":             domain.StatusReturned,
	"returned":             domain.StatusReturned,
	"RUNNING":              domain.StatusRunning,
	"COMPLETED":            domain.StatusCompleted,
	"CANCELLED":            domain.StatusCancelled,
	"RETURNED":             domain.StatusReturned,
}

var categoryLabels = map[string]domain.Category{
	"BG": domain.CategoryBankGuarantee,
}

// MapStatus maps a spreadsheet status label to a lifecycle state, RUNNING on a miss.
func MapStatus(label string) domain.Status {
	return CoerceOrDefault(statusLabels, label, domain.StatusRunning)
}

// MapCategory maps a spreadsheet category label to BG or FD.
func MapCategory(label string) domain.Category {
	return CoerceOrDefault(categoryLabels, strings.ToUpper(strings.TrimSpace(label)), domain.CategoryFixedDeposit)
}
