package normalize

import (
	"testing"

	"github.com/procura/fdr-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	cases := map[string]domain.Status{
		"Running":              domain.StatusRunning,
		"Completed":            domain.StatusCompleted,
		"Cancelled":            domain.StatusCancelled,
		"Canceled":             domain.StatusCancelled,
		"Cancelled & Returned": domain.StatusCancelled,
		"Returned":             domain.StatusReturned,
		"returned":             domain.StatusReturned,
		"COMPLETED":            domain.StatusCompleted,
		"completed":            domain.StatusRunning,
		"":                     domain.StatusRunning,
		"Matured?":             domain.StatusRunning,
	}
	for label, want := range cases {
		assert.Equal(t, want, MapStatus(label), "label %q", label)
	}
}

func TestMapCategory(t *testing.T) {
	assert.Equal(t, domain.CategoryBankGuarantee, MapCategory("BG"))
	assert.Equal(t, domain.CategoryBankGuarantee, MapCategory("  bg "))
	assert.Equal(t, domain.CategoryFixedDeposit, MapCategory("FD"))
	assert.Equal(t, domain.CategoryFixedDeposit, MapCategory("SD"))
	assert.Equal(t, domain.CategoryFixedDeposit, MapCategory(""))
	assert.Equal(t, domain.CategoryFixedDeposit, MapCategory("Bank Guarantee"))
}

func TestMappersAreTotal(t *testing.T) {
	inputs := []string{"", " ", "??", "RUNNING ", "null", "Cancelled&Returned", "\x00", "बैंक"}
	for _, in := range inputs {
		assert.True(t, MapStatus(in).Valid(), "status for %q", in)
		c := MapCategory(in)
		assert.True(t, c == domain.CategoryFixedDeposit || c == domain.CategoryBankGuarantee, "category for %q", in)
	}
}

func TestCoerceOrDefault(t *testing.T) {
	table := map[int]string{1: "one"}
	assert.Equal(t, "one", CoerceOrDefault(table, 1, "none"))
	assert.Equal(t, "none", CoerceOrDefault(table, 2, "none"))
	assert.Equal(t, "none", CoerceOrDefault[int, string](nil, 1, "none"))
}
