/**
 * @description
 * This file defines the `Repository` interface for FDR persistence. The
 * lifecycle service, bulk importer and maturity sweep depend on this interface
 * rather than on PostgreSQL directly so they can be tested with stubs.
 *
 * @dependencies
 * - github.com/google/uuid: record identifiers.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrFDRNotFound = errors.New("fdr not found")

// Repository defines the set of methods for interacting with the fdrs table.
type Repository interface {
	CreateFDR(ctx context.Context, fdr *domain.FDR) error
	FindFDRByID(ctx context.Context, id uuid.UUID) (*domain.FDR, error)
	ListFDRs(ctx context.Context, params ListFDRsParams) ([]domain.FDR, int, error)
	UpdateFDR(ctx context.Context, id uuid.UUID, params UpdateFDRParams) (*domain.FDR, error)
	UpdateFDRStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.FDR, error)
	DeleteFDR(ctx context.Context, id uuid.UUID) error
	FDRNumberExists(ctx context.Context, fdrNumber string) (bool, error)

	// Maturity
	ListExpiringFDRs(ctx context.Context, from, to time.Time) ([]domain.FDR, error)
	CompleteMaturedFDRs(ctx context.Context, before time.Time) (int64, error)
}

// ListFDRsParams filters and pages a listing. Zero values mean "no filter".
type ListFDRsParams struct {
	Search   string
	Category domain.Category
	Status   domain.Status
	OfferID  *uuid.UUID
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// UpdateFDRParams holds a partial update. Only fields with Set are written;
// Null writes SQL NULL.
type UpdateFDRParams struct {
	Category        domain.Field[domain.Category]
	BankName        domain.Field[string]
	AccountNo       domain.Field[string]
	FDRNumber       domain.Field[string]
	AccountName     domain.Field[string]
	DepositAmount   domain.Field[decimal.Decimal]
	MaturityValue   domain.Field[decimal.Decimal]
	DateOfDeposit   domain.Field[time.Time]
	MaturityDate    domain.Field[time.Time]
	ContractNo      domain.Field[string]
	ContractDetails domain.Field[string]
	POC             domain.Field[string]
	Location        domain.Field[string]
	DocumentURL     domain.Field[string]
	ExtractedData   domain.Field[*domain.ExtractedData]
	Status          domain.Field[domain.Status]
	Tags            domain.Field[[]string]
	OfferID         domain.Field[uuid.UUID]
}
