package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/app"
	"github.com/procura/fdr-service/internal/domain"
)

type serviceStub struct {
	err error

	createIn  app.CreateFDRInput
	updateID  uuid.UUID
	updateIn  app.UpdateFDRInput
	listIn    app.ListFDRsInput
	status    string
	days      int
	importErr error

	importPath    string
	importExisted bool
	docExisted    bool
	swept         int64
	notified      int
}

func (s *serviceStub) Create(ctx context.Context, in app.CreateFDRInput) (*domain.FDR, error) {
	s.createIn = in
	if in.Document != nil {
		_, statErr := os.Stat(in.Document.Path)
		s.docExisted = statErr == nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FDR{ID: uuid.New(), BankName: in.BankName, Tags: in.Tags, Status: domain.StatusRunning}, nil
}

func (s *serviceStub) Get(ctx context.Context, id uuid.UUID) (*domain.FDR, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FDR{ID: id, BankName: "IDBI", Status: domain.StatusRunning, Tags: []string{}}, nil
}

func (s *serviceStub) List(ctx context.Context, in app.ListFDRsInput) (*domain.FDRPage, error) {
	s.listIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FDRPage{Items: []domain.FDR{}, Page: 1, PageSize: 20}, nil
}

func (s *serviceStub) Update(ctx context.Context, id uuid.UUID, in app.UpdateFDRInput) (*domain.FDR, error) {
	s.updateID = id
	s.updateIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FDR{ID: id, Tags: []string{}}, nil
}

func (s *serviceStub) Delete(ctx context.Context, id uuid.UUID) error {
	return s.err
}

func (s *serviceStub) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.FDR, error) {
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FDR{ID: id, Status: domain.Status(status), Tags: []string{}}, nil
}

func (s *serviceStub) ListExpiring(ctx context.Context, days int) ([]domain.FDR, error) {
	s.days = days
	return []domain.FDR{}, s.err
}

func (s *serviceStub) AutoUpdateExpiredStatuses(ctx context.Context) (int64, error) {
	return s.swept, s.err
}

func (s *serviceStub) NotifyExpiring(ctx context.Context, days int) (int, error) {
	s.days = days
	return s.notified, s.err
}

func (s *serviceStub) BulkImport(ctx context.Context, path string) (*domain.BulkImportResult, error) {
	s.importPath = path
	_, statErr := os.Stat(path)
	s.importExisted = statErr == nil
	if s.importErr != nil {
		return nil, s.importErr
	}
	return &domain.BulkImportResult{TotalRows: 1, SuccessCount: 1, Errors: []domain.ImportRowError{}, Created: []domain.ImportedFDR{}}, nil
}

type extractorStub struct {
	text string
	path string
	err  error
}

func (e *extractorStub) ExtractFromText(ctx context.Context, text string) (*domain.ExtractedData, error) {
	e.text = text
	if e.err != nil {
		return nil, e.err
	}
	return &domain.ExtractedData{FDRNumber: "FDR-1", RawText: text}, nil
}

func (e *extractorStub) ExtractFromFile(ctx context.Context, doc domain.UploadedFile) (*domain.ExtractedData, error) {
	e.path = doc.Path
	if e.err != nil {
		return nil, e.err
	}
	return &domain.ExtractedData{DepositAmount: "1000"}, nil
}

type limiterStub struct {
	decision app.RateDecision
	err      error
	scopes   []string
	subjects []string
}

func (l *limiterStub) Allow(ctx context.Context, scope, subject string) (app.RateDecision, error) {
	l.scopes = append(l.scopes, scope)
	l.subjects = append(l.subjects, subject)
	return l.decision, l.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contextWithUser(r *http.Request, userID string) context.Context {
	return context.WithValue(r.Context(), UserIDContextKey, userID)
}
