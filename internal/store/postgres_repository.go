/**
 * @description
 * PostgreSQL implementation of the FDR Repository.
 *
 * @notes
 * - Calendar dates are bound as "YYYY-MM-DD" text and cast with ::date so the
 *   server timezone never shifts them.
 * - Money columns are numeric(18,2) and round-trip through shopspring/decimal.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/shopspring/decimal"
)

const fdrColumns = `id, category, bank_name, account_no, fdr_number, account_name,
		deposit_amount, maturity_value, date_of_deposit, maturity_date,
		contract_no, contract_details, poc, location, document_url, extracted_data,
		status, tags, offer_id, created_at, updated_at`

// sortable columns exposed to API callers
var sortColumns = map[string]string{
	"created_at":      "created_at",
	"createdat":       "created_at",
	"updated_at":      "updated_at",
	"updatedat":       "updated_at",
	"maturity_date":   "maturity_date",
	"maturitydate":    "maturity_date",
	"date_of_deposit": "date_of_deposit",
	"dateofdeposit":   "date_of_deposit",
	"deposit_amount":  "deposit_amount",
	"depositamount":   "deposit_amount",
	"maturity_value":  "maturity_value",
	"maturityvalue":   "maturity_value",
	"bank_name":       "bank_name",
	"bankname":        "bank_name",
	"fdr_number":      "fdr_number",
	"fdrnumber":       "fdr_number",
	"status":          "status",
	"category":        "category",
}

// PostgresRepository is the pgx-backed Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository over an open pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFDR(row rowScanner) (*domain.FDR, error) {
	var (
		fdr           domain.FDR
		maturityValue decimal.NullDecimal
		extracted     []byte
		tags          []string
	)
	err := row.Scan(
		&fdr.ID,
		&fdr.Category,
		&fdr.BankName,
		&fdr.AccountNo,
		&fdr.FDRNumber,
		&fdr.AccountName,
		&fdr.DepositAmount,
		&maturityValue,
		&fdr.DateOfDeposit,
		&fdr.MaturityDate,
		&fdr.ContractNo,
		&fdr.ContractDetails,
		&fdr.POC,
		&fdr.Location,
		&fdr.DocumentURL,
		&extracted,
		&fdr.Status,
		&tags,
		&fdr.OfferID,
		&fdr.CreatedAt,
		&fdr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maturityValue.Valid {
		v := maturityValue.Decimal
		fdr.MaturityValue = &v
	}
	if len(extracted) > 0 {
		var data domain.ExtractedData
		// extracted_data is never schema-checked; a bad blob is dropped, not fatal.
		if err := json.Unmarshal(extracted, &data); err == nil {
			fdr.ExtractedData = &data
		}
	}
	if tags == nil {
		tags = []string{}
	}
	fdr.Tags = tags
	return &fdr, nil
}

func scanFDRs(rows pgx.Rows) ([]domain.FDR, error) {
	defer rows.Close()
	fdrs := make([]domain.FDR, 0)
	for rows.Next() {
		fdr, err := scanFDR(rows)
		if err != nil {
			return nil, err
		}
		fdrs = append(fdrs, *fdr)
	}
	return fdrs, rows.Err()
}

// CreateFDR inserts fdr and fills in its generated id and timestamps.
func (r *PostgresRepository) CreateFDR(ctx context.Context, fdr *domain.FDR) error {
	extracted, err := extractedParam(fdr.ExtractedData)
	if err != nil {
		return err
	}
	if fdr.ID == uuid.Nil {
		fdr.ID = uuid.New()
	}
	tags := fdr.Tags
	if tags == nil {
		tags = []string{}
	}
	query := `
		INSERT INTO fdrs (
			id, category, bank_name, account_no, fdr_number, account_name,
			deposit_amount, maturity_value, date_of_deposit, maturity_date,
			contract_no, contract_details, poc, location, document_url, extracted_data,
			status, tags, offer_id
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9::date, $10::date,
			$11, $12, $13, $14, $15, $16::jsonb,
			$17, $18::text[], $19
		)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		fdr.ID,
		fdr.Category,
		fdr.BankName,
		fdr.AccountNo,
		fdr.FDRNumber,
		fdr.AccountName,
		fdr.DepositAmount,
		nullDecimal(fdr.MaturityValue),
		dateParam(fdr.DateOfDeposit),
		nullDateParam(fdr.MaturityDate),
		fdr.ContractNo,
		fdr.ContractDetails,
		fdr.POC,
		fdr.Location,
		fdr.DocumentURL,
		extracted,
		fdr.Status,
		tags,
		fdr.OfferID,
	).Scan(&fdr.CreatedAt, &fdr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert fdr: %w", err)
	}
	fdr.Tags = tags
	return nil
}

// FindFDRByID returns the record or ErrFDRNotFound.
func (r *PostgresRepository) FindFDRByID(ctx context.Context, id uuid.UUID) (*domain.FDR, error) {
	query := `SELECT ` + fdrColumns + ` FROM fdrs WHERE id = $1`
	fdr, err := scanFDR(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFDRNotFound
		}
		return nil, err
	}
	return fdr, nil
}

// ListFDRs returns one page of matching records and the total match count.
func (r *PostgresRepository) ListFDRs(ctx context.Context, params ListFDRsParams) ([]domain.FDR, int, error) {
	where, args := buildListFilter(params)

	var total int
	countQuery := `SELECT COUNT(*) FROM fdrs WHERE 1=1` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fdrs: %w", err)
	}

	argPos := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM fdrs WHERE 1=1%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		fdrColumns, where, orderClause(params.SortBy, params.SortDesc), argPos, argPos+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list fdrs: %w", err)
	}
	fdrs, err := scanFDRs(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan fdrs: %w", err)
	}
	return fdrs, total, nil
}

// buildListFilter returns the " AND ..." suffix and its positional args.
func buildListFilter(params ListFDRsParams) (string, []any) {
	var (
		where  strings.Builder
		args   []any
		argPos = 1
	)
	if params.Category != "" {
		where.WriteString(fmt.Sprintf(" AND category = $%d", argPos))
		args = append(args, params.Category)
		argPos++
	}
	if params.Status != "" {
		where.WriteString(fmt.Sprintf(" AND status = $%d", argPos))
		args = append(args, params.Status)
		argPos++
	}
	if params.OfferID != nil {
		where.WriteString(fmt.Sprintf(" AND offer_id = $%d", argPos))
		args = append(args, *params.OfferID)
		argPos++
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		where.WriteString(fmt.Sprintf(`
			AND (
				bank_name ILIKE '%%' || $%d || '%%'
				OR COALESCE(account_name, '') ILIKE '%%' || $%d || '%%'
				OR COALESCE(fdr_number, '') ILIKE '%%' || $%d || '%%'
				OR COALESCE(location, '') ILIKE '%%' || $%d || '%%'
				OR COALESCE(poc, '') ILIKE '%%' || $%d || '%%'
			)`, argPos, argPos, argPos, argPos, argPos))
		args = append(args, search)
	}
	return where.String(), args
}

func orderClause(sortBy string, desc bool) string {
	key := strings.ToLower(strings.TrimSpace(sortBy))
	column, ok := sortColumns[key]
	if !ok {
		return "created_at DESC, id DESC"
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, id %s", column, direction, direction)
}

// UpdateFDR applies a partial update and returns the stored record.
func (r *PostgresRepository) UpdateFDR(ctx context.Context, id uuid.UUID, params UpdateFDRParams) (*domain.FDR, error) {
	query, args, err := buildUpdateQuery(id, params)
	if err != nil {
		return nil, err
	}
	fdr, err := scanFDR(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFDRNotFound
		}
		return nil, fmt.Errorf("update fdr: %w", err)
	}
	return fdr, nil
}

type setList struct {
	clauses []string
	args    []any
}

func (s *setList) add(column, cast string, set, null bool, value any) {
	if !set {
		return
	}
	if null {
		value = nil
	}
	s.args = append(s.args, value)
	s.clauses = append(s.clauses, fmt.Sprintf("%s = $%d%s", column, len(s.args), cast))
}

func buildUpdateQuery(id uuid.UUID, p UpdateFDRParams) (string, []any, error) {
	var s setList
	s.add("category", "", p.Category.Set, p.Category.Null, p.Category.Value)
	s.add("bank_name", "", p.BankName.Set, p.BankName.Null, p.BankName.Value)
	s.add("account_no", "", p.AccountNo.Set, p.AccountNo.Null, p.AccountNo.Value)
	s.add("fdr_number", "", p.FDRNumber.Set, p.FDRNumber.Null, p.FDRNumber.Value)
	s.add("account_name", "", p.AccountName.Set, p.AccountName.Null, p.AccountName.Value)
	s.add("deposit_amount", "", p.DepositAmount.Set, p.DepositAmount.Null, p.DepositAmount.Value)
	s.add("maturity_value", "", p.MaturityValue.Set, p.MaturityValue.Null, p.MaturityValue.Value)
	s.add("date_of_deposit", "::date", p.DateOfDeposit.Set, p.DateOfDeposit.Null, dateParam(p.DateOfDeposit.Value))
	s.add("maturity_date", "::date", p.MaturityDate.Set, p.MaturityDate.Null, dateParam(p.MaturityDate.Value))
	s.add("contract_no", "", p.ContractNo.Set, p.ContractNo.Null, p.ContractNo.Value)
	s.add("contract_details", "", p.ContractDetails.Set, p.ContractDetails.Null, p.ContractDetails.Value)
	s.add("poc", "", p.POC.Set, p.POC.Null, p.POC.Value)
	s.add("location", "", p.Location.Set, p.Location.Null, p.Location.Value)
	s.add("document_url", "", p.DocumentURL.Set, p.DocumentURL.Null, p.DocumentURL.Value)
	if p.ExtractedData.Set {
		extracted, err := extractedParam(p.ExtractedData.Value)
		if err != nil {
			return "", nil, err
		}
		s.add("extracted_data", "::jsonb", true, p.ExtractedData.Null || extracted == nil, extracted)
	}
	s.add("status", "", p.Status.Set, p.Status.Null, p.Status.Value)
	if p.Tags.Set {
		tags := p.Tags.Value
		if tags == nil {
			tags = []string{}
		}
		s.add("tags", "::text[]", true, false, tags)
	}
	s.add("offer_id", "", p.OfferID.Set, p.OfferID.Null, p.OfferID.Value)

	s.clauses = append(s.clauses, "updated_at = NOW()")
	s.args = append(s.args, id)
	query := fmt.Sprintf(`UPDATE fdrs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(s.clauses, ", "), len(s.args), fdrColumns)
	return query, s.args, nil
}

// UpdateFDRStatus overwrites the status unconditionally.
func (r *PostgresRepository) UpdateFDRStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.FDR, error) {
	query := `UPDATE fdrs SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + fdrColumns
	fdr, err := scanFDR(r.db.QueryRow(ctx, query, status, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFDRNotFound
		}
		return nil, fmt.Errorf("update fdr status: %w", err)
	}
	return fdr, nil
}

// DeleteFDR hard-deletes the record.
func (r *PostgresRepository) DeleteFDR(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM fdrs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete fdr: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFDRNotFound
	}
	return nil
}

// FDRNumberExists reports whether any record carries exactly this instrument number.
func (r *PostgresRepository) FDRNumberExists(ctx context.Context, fdrNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fdrs WHERE fdr_number = $1)`, fdrNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fdr number: %w", err)
	}
	return exists, nil
}

// ListExpiringFDRs returns RUNNING records maturing within [from, to], soonest first.
func (r *PostgresRepository) ListExpiringFDRs(ctx context.Context, from, to time.Time) ([]domain.FDR, error) {
	query := `
		SELECT ` + fdrColumns + `
		FROM fdrs
		WHERE status = $1
		  AND maturity_date IS NOT NULL
		  AND maturity_date >= $2::date
		  AND maturity_date <= $3::date
		ORDER BY maturity_date ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, domain.StatusRunning, dateParam(from), dateParam(to))
	if err != nil {
		return nil, fmt.Errorf("list expiring fdrs: %w", err)
	}
	return scanFDRs(rows)
}

// CompleteMaturedFDRs flips RUNNING records that matured before the given date
// to COMPLETED. Rows already flipped no longer match, so repeated calls are no-ops.
func (r *PostgresRepository) CompleteMaturedFDRs(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE fdrs
		SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND maturity_date IS NOT NULL
		  AND maturity_date < $3::date
	`
	tag, err := r.db.Exec(ctx, query, domain.StatusCompleted, domain.StatusRunning, dateParam(before))
	if err != nil {
		return 0, fmt.Errorf("complete matured fdrs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

func nullDateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateParam(*t)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func extractedParam(data *domain.ExtractedData) (any, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal extracted data: %w", err)
	}
	return string(raw), nil
}
