package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/procura/fdr-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var importHeaderRow = []interface{}{
	"FDR/BG", "Bank Name", "Account No", "FDR/BG No.", "Account Name",
	"Deposit Amount", "Date of Deposit", "Maturity Value", "Maturity Date",
	"Contract No", "POC", "Location", "Status",
}

func writeWorkbook(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &rows[i]); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "import.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func findByNumber(repo *repoStub, number string) *domain.FDR {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, fdr := range repo.fdrs {
		if fdr.FDRNumber != nil && *fdr.FDRNumber == number {
			copied := *fdr
			return &copied
		}
	}
	return nil
}

func TestBulkImport_PartialBatch(t *testing.T) {
	repo := newRepoStub()
	pub := &publisherStub{}
	svc := newTestService(t, repo, pub, nil)

	path := writeWorkbook(t,
		importHeaderRow,
		[]interface{}{"BG", "SBI", "1001", "BG-1", "M/S Acme", "₹1,50,000", "15-03-2023", "1,65,000", "15/03/2024", "C-9", "Ravi", "Pune", "Cancelled & Returned"},
		[]interface{}{"FD", "IDBI", "1002", "FDR-2", "Acme", 0, "01-04-2023", "", "", "", "", "", "Running"},
		[]interface{}{"", "", "", "FDR-3", "", 25000, 45366, "", "-", "", "", "", ""},
	)

	result, err := svc.BulkImport(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRows != 3 || result.SuccessCount != 2 || result.FailureCount != 1 || result.SkippedCount != 0 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 || result.Errors[0].FDRNumber != "FDR-2" || result.Errors[0].Error != msgDepositAmountPositive {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected 2 created summaries, got %d", len(result.Created))
	}

	bg := findByNumber(repo, "BG-1")
	if bg == nil {
		t.Fatal("expected BG-1 imported")
	}
	if bg.Category != domain.CategoryBankGuarantee || len(bg.Tags) != 1 || bg.Tags[0] != "BG" {
		t.Fatalf("unexpected category/tags %s %v", bg.Category, bg.Tags)
	}
	if bg.Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", bg.Status)
	}
	if !bg.DepositAmount.Equal(decimal.NewFromInt(150000)) || bg.MaturityValue == nil || !bg.MaturityValue.Equal(decimal.NewFromInt(165000)) {
		t.Fatalf("unexpected amounts %s %v", bg.DepositAmount, bg.MaturityValue)
	}
	if !bg.DateOfDeposit.Equal(day(2023, time.March, 15)) || !bg.MaturityDate.Equal(day(2024, time.March, 15)) {
		t.Fatalf("unexpected dates %s %v", bg.DateOfDeposit, bg.MaturityDate)
	}

	defaulted := findByNumber(repo, "FDR-3")
	if defaulted == nil {
		t.Fatal("expected FDR-3 imported")
	}
	if defaulted.BankName != "IDBI" || defaulted.Category != domain.CategoryFixedDeposit || defaulted.Status != domain.StatusRunning {
		t.Fatalf("expected defaults applied, got %+v", defaulted)
	}
	if !defaulted.DateOfDeposit.Equal(day(2024, time.March, 15)) {
		t.Fatalf("expected serial 45366 to be 2024-03-15, got %s", defaulted.DateOfDeposit)
	}
	if defaulted.MaturityDate != nil {
		t.Fatalf("expected placeholder maturity date to be empty, got %v", defaulted.MaturityDate)
	}

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workbook removed, stat err = %v", err)
	}
	if keys := pub.keys(); len(keys) != 1 || keys[0] != domain.RoutingKeyFDRBulkImported {
		t.Fatalf("expected bulk import event, got %v", keys)
	}
}

func TestBulkImport_SkipsExistingFDRNumber(t *testing.T) {
	repo := newRepoStub()
	repo.put(domain.FDR{FDRNumber: ptr("FDR-100"), BankName: "IDBI", Status: domain.StatusRunning})
	svc := newTestService(t, repo, nil, nil)

	path := writeWorkbook(t,
		importHeaderRow,
		[]interface{}{"FD", "IDBI", "", "FDR-100", "", 5000, "10-01-2023"},
	)
	result, err := svc.BulkImport(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SkippedCount != 1 || result.SuccessCount != 0 || result.FailureCount != 0 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Errors[0].Error != "FDR with number FDR-100 already exists" {
		t.Fatalf("unexpected message %q", result.Errors[0].Error)
	}
	if repo.created != 0 {
		t.Fatal("expected no rows created")
	}
}

func TestBulkImport_SkipsDuplicateWithinFile(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(t, repo, nil, nil)

	path := writeWorkbook(t,
		importHeaderRow,
		[]interface{}{"FD", "IDBI", "", "FDR-7", "", 5000, "10-01-2023"},
		[]interface{}{"FD", "IDBI", "", "FDR-7", "", 6000, "11-01-2023"},
	)
	result, err := svc.BulkImport(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if got := result.Errors[0]; got.Row != 3 || got.Error != "FDR with number FDR-7 already appears in row 2" {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestBulkImport_DuplicateCheckFailureIsRowFailure(t *testing.T) {
	repo := newRepoStub()
	repo.existsErr = errStub
	svc := newTestService(t, repo, nil, nil)

	path := writeWorkbook(t,
		importHeaderRow,
		[]interface{}{"FD", "IDBI", "", "FDR-8", "", 5000, "10-01-2023"},
		[]interface{}{"FD", "IDBI", "", "", "", 5000, "10-01-2023"},
	)
	result, err := svc.BulkImport(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FailureCount != 1 || result.SuccessCount != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
}

func TestBulkImport_SaveFailure(t *testing.T) {
	repo := newRepoStub()
	repo.createErr = errStub
	svc := newTestService(t, repo, nil, nil)

	path := writeWorkbook(t,
		importHeaderRow,
		[]interface{}{"FD", "IDBI", "", "", "", 5000, "10-01-2023"},
	)
	result, err := svc.BulkImport(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FailureCount != 1 || result.Errors[0].FDRNumber != "N/A" || result.Errors[0].Error != "Failed to save FDR" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestBulkImport_NoData(t *testing.T) {
	svc := newTestService(t, newRepoStub(), nil, nil)

	headerOnly := writeWorkbook(t, importHeaderRow)
	if _, err := svc.BulkImport(context.Background(), headerOnly); MessageOf(err) != msgNoImportData {
		t.Fatalf("expected no-data error, got %v", err)
	}

	blankRows := writeWorkbook(t, importHeaderRow, []interface{}{"", " ", ""})
	if _, err := svc.BulkImport(context.Background(), blankRows); MessageOf(err) != msgNoImportData {
		t.Fatalf("expected no-data error for blank rows, got %v", err)
	}
}

func TestBulkImport_InvalidWorkbook(t *testing.T) {
	svc := newTestService(t, newRepoStub(), nil, nil)
	path := writeFile(t, "import.xlsx", []byte("not a workbook"))

	_, err := svc.BulkImport(context.Background(), path)
	if KindOf(err) != KindValidation || MessageOf(err) != "Invalid Excel file" {
		t.Fatalf("expected invalid file error, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected file removed after failure")
	}
}

func TestMapHeaders(t *testing.T) {
	cols := mapHeaders([]string{"Sr No", "FDR / BG No.", "BANK", "Amount", "Deposit Amount"})
	if cols[colFDRNumber] != 1 || cols[colBankName] != 2 {
		t.Fatalf("unexpected mapping %v", cols)
	}
	if cols[colDepositAmount] != 3 {
		t.Fatalf("expected first deposit column to win, got %d", cols[colDepositAmount])
	}
	if _, ok := cols[colStatus]; ok {
		t.Fatal("expected status column absent")
	}
}
