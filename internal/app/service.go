/**
 * @description
 * FDR lifecycle service: create, read, update, delete and status changes for
 * single records, the expiring listing, and the maturity sweep.
 *
 * @notes
 * - Every exported method returns *Error on failure. Persistence and
 *   collaborator errors are logged here and replaced by a fixed message.
 * - Status transitions are not restricted; any of the four states may be set.
 *   Leaving a terminal state is logged at WARN.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/procura/fdr-service/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Config carries per-deployment defaults into the service.
type Config struct {
	DefaultBankName    string
	DefaultCategory    domain.Category
	Location           *time.Location
	ExpiringWindowDays int
	EventsExchange     string
}

// Service provides the business logic for FDR management.
type Service struct {
	repo      store.Repository
	docs      *DocumentPipeline
	publisher EventPublisher
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService creates a new FDR service.
func NewService(repo store.Repository, docs *DocumentPipeline, publisher EventPublisher, logger *slog.Logger, cfg Config) *Service {
	if strings.TrimSpace(cfg.DefaultBankName) == "" {
		cfg.DefaultBankName = "IDBI"
	}
	if !cfg.DefaultCategory.Valid() {
		cfg.DefaultCategory = domain.CategoryFixedDeposit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ExpiringWindowDays <= 0 {
		cfg.ExpiringWindowDays = 30
	}
	if cfg.EventsExchange == "" {
		cfg.EventsExchange = "fdr_events"
	}
	return &Service{
		repo:      repo,
		docs:      docs,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Documents exposes the document pipeline for the extraction endpoints.
func (s *Service) Documents() *DocumentPipeline {
	return s.docs
}

// today is the current calendar date in the business timezone, as midnight UTC.
func (s *Service) today() time.Time {
	local := s.now().In(s.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateFDRInput is a new record as received from a caller. Tags are already
// normalized to a plain list.
type CreateFDRInput struct {
	Category        string
	BankName        string
	AccountNo       *string
	FDRNumber       *string
	AccountName     *string
	DepositAmount   *decimal.Decimal
	MaturityValue   *decimal.Decimal
	DateOfDeposit   *time.Time
	MaturityDate    *time.Time
	ContractNo      *string
	ContractDetails *string
	POC             *string
	Location        *string
	Status          string
	Tags            []string
	OfferID         *uuid.UUID
	ExtractedData   *domain.ExtractedData
	Document        *domain.UploadedFile
}

// Create validates and stores a new FDR. A document, when given, is uploaded
// first and an upload failure aborts the create.
func (s *Service) Create(ctx context.Context, in CreateFDRInput) (*domain.FDR, error) {
	category := s.cfg.DefaultCategory
	if raw := strings.TrimSpace(in.Category); raw != "" {
		category = domain.Category(strings.ToUpper(raw))
		if !category.Valid() {
			return nil, validationError("Invalid category")
		}
	}
	status := domain.StatusRunning
	if raw := strings.TrimSpace(in.Status); raw != "" {
		status = domain.Status(strings.ToUpper(raw))
		if !status.Valid() {
			return nil, validationError("Invalid status")
		}
	}
	if in.DepositAmount == nil {
		return nil, validationError("Deposit amount is required")
	}
	if in.DepositAmount.IsNegative() {
		return nil, validationError("Deposit amount must not be negative")
	}
	if in.MaturityValue != nil && in.MaturityValue.IsNegative() {
		return nil, validationError("Maturity value must not be negative")
	}
	if in.DateOfDeposit == nil || in.DateOfDeposit.IsZero() {
		return nil, validationError("Date of deposit is required")
	}
	bankName := strings.TrimSpace(in.BankName)
	if bankName == "" {
		bankName = s.cfg.DefaultBankName
	}

	fdr := &domain.FDR{
		Category:        category,
		BankName:        bankName,
		AccountNo:       optionalString(in.AccountNo),
		FDRNumber:       optionalString(in.FDRNumber),
		AccountName:     optionalString(in.AccountName),
		DepositAmount:   *in.DepositAmount,
		MaturityValue:   in.MaturityValue,
		DateOfDeposit:   *in.DateOfDeposit,
		MaturityDate:    in.MaturityDate,
		ContractNo:      optionalString(in.ContractNo),
		ContractDetails: optionalString(in.ContractDetails),
		POC:             optionalString(in.POC),
		Location:        optionalString(in.Location),
		ExtractedData:   in.ExtractedData,
		Status:          status,
		Tags:            in.Tags,
		OfferID:         in.OfferID,
	}
	if fdr.Tags == nil {
		fdr.Tags = []string{}
	}

	if in.Document != nil {
		url, err := s.docs.Upload(ctx, *in.Document)
		if err != nil {
			return nil, err
		}
		fdr.DocumentURL = &url
	}

	if err := s.repo.CreateFDR(ctx, fdr); err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError("FDR number already exists", err)
		}
		s.logger.Error("failed to create fdr", "error", err)
		return nil, internalError("Failed to create FDR", err)
	}

	fdr.ApplyDerived(s.today())
	s.publish(ctx, domain.RoutingKeyFDRCreated, s.fdrEvent(fdr, ""))
	s.logger.Info("fdr created", "fdr_id", fdr.ID, "category", fdr.Category)
	return fdr, nil
}

// Get returns one FDR with derived fields.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.FDR, error) {
	fdr, err := s.repo.FindFDRByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id, "Failed to fetch FDR")
	}
	fdr.ApplyDerived(s.today())
	return fdr, nil
}

// ListFDRsInput filters and pages a listing.
type ListFDRsInput struct {
	Search    string
	Category  string
	Status    string
	OfferID   *uuid.UUID
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// List returns one page of FDRs, newest first unless a sort is given.
func (s *Service) List(ctx context.Context, in ListFDRsInput) (*domain.FDRPage, error) {
	params := store.ListFDRsParams{
		Search:  strings.TrimSpace(in.Search),
		OfferID: in.OfferID,
		SortBy:  in.SortBy,
	}
	if raw := strings.TrimSpace(in.Category); raw != "" {
		params.Category = domain.Category(strings.ToUpper(raw))
		if !params.Category.Valid() {
			return nil, validationError("Invalid category filter")
		}
	}
	if raw := strings.TrimSpace(in.Status); raw != "" {
		params.Status = domain.Status(strings.ToUpper(raw))
		if !params.Status.Valid() {
			return nil, validationError("Invalid status filter")
		}
	}
	params.SortDesc = !strings.EqualFold(strings.TrimSpace(in.SortOrder), "asc")

	page := in.Page
	if page < 1 {
		page = 1
	}
	pageSize := in.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize

	items, total, err := s.repo.ListFDRs(ctx, params)
	if err != nil {
		s.logger.Error("failed to list fdrs", "error", err)
		return nil, internalError("Failed to fetch FDRs", err)
	}

	today := s.today()
	for i := range items {
		items[i].ApplyDerived(today)
	}
	return &domain.FDRPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// UpdateFDRInput is a partial update. Fields that are not Set are left alone.
// For optional text fields an empty string is stored as given and null clears
// the column; required fields reject null.
type UpdateFDRInput struct {
	Category        domain.Field[string]
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
	Status          domain.Field[string]
	Tags            domain.Field[[]string]
	OfferID         domain.Field[uuid.UUID]
	ExtractedData   domain.Field[*domain.ExtractedData]
	Document        *domain.UploadedFile
}

// Update applies a partial update to an existing FDR.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateFDRInput) (*domain.FDR, error) {
	params, err := s.buildUpdateParams(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindFDRByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id, "Failed to update FDR")
	}

	if in.Document != nil {
		url, err := s.docs.Upload(ctx, *in.Document)
		if err != nil {
			return nil, err
		}
		params.DocumentURL = domain.NewField(url)
	}

	if params.Status.Set && existing.Status.Terminal() && params.Status.Value != existing.Status {
		s.logger.Warn("fdr leaving terminal status", "fdr_id", id, "from", existing.Status, "to", params.Status.Value)
	}

	updated, err := s.repo.UpdateFDR(ctx, id, params)
	if err != nil {
		if errors.Is(err, store.ErrFDRNotFound) {
			return nil, notFoundError("FDR not found", err)
		}
		if isUniqueViolation(err) {
			return nil, conflictError("FDR number already exists", err)
		}
		s.logger.Error("failed to update fdr", "fdr_id", id, "error", err)
		return nil, internalError("Failed to update FDR", err)
	}

	updated.ApplyDerived(s.today())
	s.publish(ctx, domain.RoutingKeyFDRUpdated, s.fdrEvent(updated, ""))
	if updated.Status != existing.Status {
		s.publish(ctx, domain.RoutingKeyFDRStatusChanged, s.fdrEvent(updated, existing.Status))
	}
	return updated, nil
}

func (s *Service) buildUpdateParams(in UpdateFDRInput) (store.UpdateFDRParams, error) {
	var p store.UpdateFDRParams

	if in.Category.Set {
		if in.Category.Null {
			return p, validationError("Category cannot be cleared")
		}
		category := domain.Category(strings.ToUpper(strings.TrimSpace(in.Category.Value)))
		if !category.Valid() {
			return p, validationError("Invalid category")
		}
		p.Category = domain.NewField(category)
	}
	if in.BankName.Set {
		name := strings.TrimSpace(in.BankName.Value)
		if in.BankName.Null || name == "" {
			return p, validationError("Bank name cannot be empty")
		}
		p.BankName = domain.NewField(name)
	}
	if in.DepositAmount.Set {
		if in.DepositAmount.Null {
			return p, validationError("Deposit amount cannot be cleared")
		}
		if in.DepositAmount.Value.IsNegative() {
			return p, validationError("Deposit amount must not be negative")
		}
		p.DepositAmount = in.DepositAmount
	}
	if in.MaturityValue.Set && !in.MaturityValue.Null && in.MaturityValue.Value.IsNegative() {
		return p, validationError("Maturity value must not be negative")
	}
	p.MaturityValue = in.MaturityValue
	if in.DateOfDeposit.Set && (in.DateOfDeposit.Null || in.DateOfDeposit.Value.IsZero()) {
		return p, validationError("Date of deposit cannot be cleared")
	}
	p.DateOfDeposit = in.DateOfDeposit
	p.MaturityDate = in.MaturityDate
	if in.Status.Set {
		if in.Status.Null {
			return p, validationError("Status cannot be cleared")
		}
		status := domain.Status(strings.ToUpper(strings.TrimSpace(in.Status.Value)))
		if !status.Valid() {
			return p, validationError("Invalid status")
		}
		p.Status = domain.NewField(status)
	}

	p.AccountNo = in.AccountNo
	p.FDRNumber = in.FDRNumber
	p.AccountName = in.AccountName
	p.ContractNo = in.ContractNo
	p.ContractDetails = in.ContractDetails
	p.POC = in.POC
	p.Location = in.Location
	p.Tags = in.Tags
	p.OfferID = in.OfferID
	p.ExtractedData = in.ExtractedData
	return p, nil
}

// Delete removes an FDR permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindFDRByID(ctx, id)
	if err != nil {
		return s.lookupError(err, id, "Failed to delete FDR")
	}
	if err := s.repo.DeleteFDR(ctx, id); err != nil {
		if errors.Is(err, store.ErrFDRNotFound) {
			return notFoundError("FDR not found", err)
		}
		s.logger.Error("failed to delete fdr", "fdr_id", id, "error", err)
		return internalError("Failed to delete FDR", err)
	}
	s.publish(ctx, domain.RoutingKeyFDRDeleted, s.fdrEvent(existing, ""))
	s.logger.Info("fdr deleted", "fdr_id", id)
	return nil
}

// UpdateStatus overwrites the status of an existing FDR.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, rawStatus string) (*domain.FDR, error) {
	status := domain.Status(strings.ToUpper(strings.TrimSpace(rawStatus)))
	if !status.Valid() {
		return nil, validationError("Invalid status")
	}

	existing, err := s.repo.FindFDRByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id, "Failed to update FDR status")
	}
	if existing.Status.Terminal() && existing.Status != status {
		s.logger.Warn("fdr leaving terminal status", "fdr_id", id, "from", existing.Status, "to", status)
	}

	updated, err := s.repo.UpdateFDRStatus(ctx, id, status)
	if err != nil {
		return nil, s.lookupError(err, id, "Failed to update FDR status")
	}

	updated.ApplyDerived(s.today())
	if existing.Status != status {
		s.publish(ctx, domain.RoutingKeyFDRStatusChanged, s.fdrEvent(updated, existing.Status))
	}
	return updated, nil
}

// ListExpiring returns RUNNING FDRs maturing within the next days days,
// today included, soonest first. days <= 0 uses the configured window.
func (s *Service) ListExpiring(ctx context.Context, days int) ([]domain.FDR, error) {
	if days <= 0 {
		days = s.cfg.ExpiringWindowDays
	}
	today := s.today()
	fdrs, err := s.repo.ListExpiringFDRs(ctx, today, today.AddDate(0, 0, days))
	if err != nil {
		s.logger.Error("failed to list expiring fdrs", "days", days, "error", err)
		return nil, internalError("Failed to fetch expiring FDRs", err)
	}
	for i := range fdrs {
		fdrs[i].ApplyDerived(today)
	}
	return fdrs, nil
}

// AutoUpdateExpiredStatuses completes every RUNNING FDR whose maturity date
// is before today and returns how many changed. Running it again the same day
// changes nothing.
func (s *Service) AutoUpdateExpiredStatuses(ctx context.Context) (int64, error) {
	today := s.today()
	updated, err := s.repo.CompleteMaturedFDRs(ctx, today)
	if err != nil {
		s.logger.Error("maturity sweep failed", "error", err)
		return 0, internalError("Failed to update matured FDRs", err)
	}
	if updated > 0 {
		s.publish(ctx, domain.RoutingKeyFDRMatured, domain.MaturitySweepEvent{
			Updated:   updated,
			AsOf:      today,
			Timestamp: s.now().UTC(),
		})
	}
	s.logger.Info("maturity sweep finished", "updated", updated, "as_of", today.Format("2006-01-02"))
	return updated, nil
}

// NotifyExpiring publishes one expiry event per FDR maturing within days and
// returns how many were published.
func (s *Service) NotifyExpiring(ctx context.Context, days int) (int, error) {
	fdrs, err := s.ListExpiring(ctx, days)
	if err != nil {
		return 0, err
	}
	notified := 0
	for _, fdr := range fdrs {
		if fdr.MaturityDate == nil || fdr.DaysUntilMaturity == nil {
			continue
		}
		event := domain.ExpiringFDREvent{
			FDRID:             fdr.ID,
			FDRNumber:         fdr.FDRNumber,
			BankName:          fdr.BankName,
			MaturityDate:      *fdr.MaturityDate,
			DaysUntilMaturity: *fdr.DaysUntilMaturity,
			Timestamp:         s.now().UTC(),
		}
		if s.publish(ctx, domain.RoutingKeyFDRExpiring, event) {
			notified++
		}
	}
	return notified, nil
}

func (s *Service) lookupError(err error, id uuid.UUID, message string) *Error {
	if errors.Is(err, store.ErrFDRNotFound) {
		return notFoundError("FDR not found", err)
	}
	s.logger.Error(strings.ToLower(message), "fdr_id", id, "error", err)
	return internalError(message, err)
}

func (s *Service) fdrEvent(fdr *domain.FDR, prev domain.Status) domain.FDREvent {
	return domain.FDREvent{
		FDRID:      fdr.ID,
		FDRNumber:  fdr.FDRNumber,
		Category:   fdr.Category,
		Status:     fdr.Status,
		PrevStatus: prev,
		Timestamp:  s.now().UTC(),
	}
}

// publish is best effort: a broker failure never fails the operation.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) bool {
	if s.publisher == nil {
		return false
	}
	if err := s.publisher.Publish(ctx, s.cfg.EventsExchange, routingKey, body); err != nil {
		s.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
		return false
	}
	return true
}

func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
