/**
 * @description
 * Excel bulk import. Rows are processed one at a time through the normalizer,
 * the row validator and the duplicate check; bad rows are reported and never
 * abort the batch.
 *
 * @dependencies
 * - github.com/xuri/excelize/v2: workbook reading.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/procura/fdr-service/internal/domain"
	"github.com/procura/fdr-service/internal/normalize"
	"github.com/xuri/excelize/v2"
)

const msgNoImportData = "No data found in the Excel file"

type importColumn int

const (
	colCategory importColumn = iota
	colBankName
	colAccountNo
	colFDRNumber
	colAccountName
	colDepositAmount
	colDateOfDeposit
	colMaturityValue
	colMaturityDate
	colContractNo
	colContractDetails
	colPOC
	colLocation
	colEMD
	colSD
	colStatus
)

// Header names are compared after lower-casing and dropping everything that
// is not a letter or digit, so "FDR/BG No." and "fdr bg no" both match.
var importHeaders = map[string]importColumn{
	"category":          colCategory,
	"type":              colCategory,
	"fdrbg":             colCategory,
	"bankname":          colBankName,
	"bank":              colBankName,
	"accountno":         colAccountNo,
	"accountnumber":     colAccountNo,
	"acno":              colAccountNo,
	"fdrbgno":           colFDRNumber,
	"fdrno":             colFDRNumber,
	"fdrnumber":         colFDRNumber,
	"bgno":              colFDRNumber,
	"instrumentno":      colFDRNumber,
	"instrumentnumber":  colFDRNumber,
	"accountname":       colAccountName,
	"acname":            colAccountName,
	"accountholder":     colAccountName,
	"accountholdername": colAccountName,
	"depositamount":     colDepositAmount,
	"amount":            colDepositAmount,
	"fdramount":         colDepositAmount,
	"dateofdeposit":     colDateOfDeposit,
	"depositdate":       colDateOfDeposit,
	"maturityvalue":     colMaturityValue,
	"maturityamount":    colMaturityValue,
	"maturitydate":      colMaturityDate,
	"dateofmaturity":    colMaturityDate,
	"contractno":        colContractNo,
	"contractnumber":    colContractNo,
	"contractdetails":   colContractDetails,
	"poc":               colPOC,
	"pointofcontact":    colPOC,
	"location":          colLocation,
	"emd":               colEMD,
	"sd":                colSD,
	"status":            colStatus,
}

func headerKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// mapHeaders returns the cell index for each recognised column. The first
// occurrence of a column wins.
func mapHeaders(header []string) map[importColumn]int {
	cols := make(map[importColumn]int)
	for i, name := range header {
		col, ok := importHeaders[headerKey(name)]
		if !ok {
			continue
		}
		if _, taken := cols[col]; !taken {
			cols[col] = i
		}
	}
	return cols
}

type sheetRow struct {
	cells []string
	cols  map[importColumn]int
}

func (r sheetRow) text(col importColumn) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	v := strings.TrimSpace(r.cells[i])
	if normalize.IsBlank(v) {
		return ""
	}
	return v
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// buildImportRow normalizes one sheet line, defaulting bank and category.
func (s *Service) buildImportRow(r sheetRow) domain.ImportRow {
	row := domain.ImportRow{
		Category:        r.text(colCategory),
		BankName:        r.text(colBankName),
		AccountNo:       r.text(colAccountNo),
		FDRNumber:       r.text(colFDRNumber),
		AccountName:     r.text(colAccountName),
		ContractNo:      r.text(colContractNo),
		ContractDetails: r.text(colContractDetails),
		POC:             r.text(colPOC),
		Location:        r.text(colLocation),
		Status:          r.text(colStatus),
	}
	if row.BankName == "" {
		row.BankName = s.cfg.DefaultBankName
	}
	if row.Category == "" {
		row.Category = string(s.cfg.DefaultCategory)
	}
	if v, ok := normalize.ParseNumber(r.text(colDepositAmount)); ok {
		row.DepositAmount = &v
	}
	if v, ok := normalize.ParseNumber(r.text(colMaturityValue)); ok {
		row.MaturityValue = &v
	}
	if v, ok := normalize.ParseNumber(r.text(colEMD)); ok {
		row.EMD = &v
	}
	if v, ok := normalize.ParseNumber(r.text(colSD)); ok {
		row.SD = &v
	}
	if v, ok := normalize.ParseDateIn(r.text(colDateOfDeposit), s.cfg.Location); ok {
		row.DateOfDeposit = &v
	}
	if v, ok := normalize.ParseDateIn(r.text(colMaturityDate), s.cfg.Location); ok {
		row.MaturityDate = &v
	}
	return row
}

// BulkImport reads the first worksheet of the workbook at path and creates
// one FDR per valid, non-duplicate row. The file is removed afterwards.
func (s *Service) BulkImport(ctx context.Context, path string) (*domain.BulkImportResult, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove import file", "path", path, "error", err)
		}
	}()

	rows, err := readFirstSheet(path)
	if err != nil {
		s.logger.Warn("failed to read workbook", "error", err)
		return nil, validationError("Invalid Excel file")
	}
	if len(rows) < 2 {
		return nil, validationError(msgNoImportData)
	}

	cols := mapHeaders(rows[0])
	result := &domain.BulkImportResult{
		Errors:  []domain.ImportRowError{},
		Created: []domain.ImportedFDR{},
	}
	seen := make(map[string]int)

	for i, cells := range rows[1:] {
		if isBlankRow(cells) {
			continue
		}
		result.TotalRows++
		rowNum := i + 2
		s.importRow(ctx, rowNum, sheetRow{cells: cells, cols: cols}, seen, result)
	}

	if result.TotalRows == 0 {
		return nil, validationError(msgNoImportData)
	}

	s.logger.Info("bulk import finished",
		"total", result.TotalRows,
		"created", result.SuccessCount,
		"failed", result.FailureCount,
		"skipped", result.SkippedCount,
	)
	s.publish(ctx, domain.RoutingKeyFDRBulkImported, domain.BulkImportEvent{
		TotalRows:    result.TotalRows,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		SkippedCount: result.SkippedCount,
		Timestamp:    s.now().UTC(),
	})
	return result, nil
}

func readFirstSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

// importRow processes one line and records its outcome in result. Panics are
// contained to the row.
func (s *Service) importRow(ctx context.Context, rowNum int, r sheetRow, seen map[string]int, result *domain.BulkImportResult) {
	fdrNumber := r.text(colFDRNumber)
	fail := func(message string) {
		label := fdrNumber
		if label == "" {
			label = "N/A"
		}
		result.Errors = append(result.Errors, domain.ImportRowError{Row: rowNum, FDRNumber: label, Error: message})
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while importing row", "row", rowNum, "panic", fmt.Sprint(rec))
			result.FailureCount++
			fail("Unexpected error while processing row")
		}
	}()

	row := s.buildImportRow(r)
	if msg := ValidateRow(row); msg != "" {
		result.FailureCount++
		fail(msg)
		return
	}

	if row.FDRNumber != "" {
		if firstRow, dup := seen[row.FDRNumber]; dup {
			result.SkippedCount++
			fail(fmt.Sprintf("FDR with number %s already appears in row %d", row.FDRNumber, firstRow))
			return
		}
		exists, err := s.repo.FDRNumberExists(ctx, row.FDRNumber)
		if err != nil {
			s.logger.Error("duplicate check failed", "row", rowNum, "error", err)
			result.FailureCount++
			fail("Failed to check for an existing FDR")
			return
		}
		if exists {
			result.SkippedCount++
			fail(fmt.Sprintf("FDR with number %s already exists", row.FDRNumber))
			return
		}
	}

	category := normalize.MapCategory(row.Category)
	fdr := &domain.FDR{
		Category:        category,
		BankName:        row.BankName,
		AccountNo:       nonEmpty(row.AccountNo),
		FDRNumber:       nonEmpty(row.FDRNumber),
		AccountName:     nonEmpty(row.AccountName),
		DepositAmount:   *row.DepositAmount,
		MaturityValue:   row.MaturityValue,
		DateOfDeposit:   *row.DateOfDeposit,
		MaturityDate:    row.MaturityDate,
		ContractNo:      nonEmpty(row.ContractNo),
		ContractDetails: nonEmpty(row.ContractDetails),
		POC:             nonEmpty(row.POC),
		Location:        nonEmpty(row.Location),
		Status:          normalize.MapStatus(row.Status),
		Tags:            []string{string(category)},
	}
	if err := s.repo.CreateFDR(ctx, fdr); err != nil {
		s.logger.Error("failed to save imported row", "row", rowNum, "error", err)
		result.FailureCount++
		fail("Failed to save FDR")
		return
	}

	if row.FDRNumber != "" {
		seen[row.FDRNumber] = rowNum
	}
	result.SuccessCount++
	result.Created = append(result.Created, domain.ImportedFDR{
		FDRNumber:     fdr.FDRNumber,
		DepositAmount: fdr.DepositAmount,
		BankName:      fdr.BankName,
		Location:      fdr.Location,
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
