package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/procura/fdr-service/internal/store"
)

// repoStub is an in-memory store.Repository.
type repoStub struct {
	mu        sync.Mutex
	fdrs      map[uuid.UUID]*domain.FDR
	createErr error
	findErr   error
	existsErr error
	created   int
}

func newRepoStub() *repoStub {
	return &repoStub{fdrs: make(map[uuid.UUID]*domain.FDR)}
}

func (r *repoStub) put(fdr domain.FDR) *domain.FDR {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fdr.ID == uuid.Nil {
		fdr.ID = uuid.New()
	}
	if fdr.Tags == nil {
		fdr.Tags = []string{}
	}
	copied := fdr
	r.fdrs[fdr.ID] = &copied
	return &copied
}

func (r *repoStub) get(id uuid.UUID) *domain.FDR {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fdrs[id]
}

func (r *repoStub) CreateFDR(ctx context.Context, fdr *domain.FDR) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fdr.ID = uuid.New()
	fdr.CreatedAt = time.Now()
	fdr.UpdatedAt = fdr.CreatedAt
	copied := *fdr
	r.fdrs[fdr.ID] = &copied
	r.created++
	return nil
}

func (r *repoStub) FindFDRByID(ctx context.Context, id uuid.UUID) (*domain.FDR, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fdr, ok := r.fdrs[id]
	if !ok {
		return nil, store.ErrFDRNotFound
	}
	copied := *fdr
	return &copied, nil
}

func (r *repoStub) ListFDRs(ctx context.Context, params store.ListFDRsParams) ([]domain.FDR, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FDR
	for _, fdr := range r.fdrs {
		if params.Status != "" && fdr.Status != params.Status {
			continue
		}
		if params.Category != "" && fdr.Category != params.Category {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(fdr.BankName), strings.ToLower(params.Search)) {
			continue
		}
		out = append(out, *fdr)
	}
	total := len(out)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Offset >= len(out) {
		return []domain.FDR{}, total, nil
	}
	out = out[params.Offset:]
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, total, nil
}

func setString(dst **string, f domain.Field[string]) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}

func (r *repoStub) UpdateFDR(ctx context.Context, id uuid.UUID, p store.UpdateFDRParams) (*domain.FDR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fdr, ok := r.fdrs[id]
	if !ok {
		return nil, store.ErrFDRNotFound
	}
	if p.Category.Set {
		fdr.Category = p.Category.Value
	}
	if p.BankName.Set {
		fdr.BankName = p.BankName.Value
	}
	setString(&fdr.AccountNo, p.AccountNo)
	setString(&fdr.FDRNumber, p.FDRNumber)
	setString(&fdr.AccountName, p.AccountName)
	setString(&fdr.ContractNo, p.ContractNo)
	setString(&fdr.ContractDetails, p.ContractDetails)
	setString(&fdr.POC, p.POC)
	setString(&fdr.Location, p.Location)
	setString(&fdr.DocumentURL, p.DocumentURL)
	if p.DepositAmount.Set {
		fdr.DepositAmount = p.DepositAmount.Value
	}
	if p.MaturityValue.Set {
		if p.MaturityValue.Null {
			fdr.MaturityValue = nil
		} else {
			v := p.MaturityValue.Value
			fdr.MaturityValue = &v
		}
	}
	if p.DateOfDeposit.Set {
		fdr.DateOfDeposit = p.DateOfDeposit.Value
	}
	if p.MaturityDate.Set {
		if p.MaturityDate.Null {
			fdr.MaturityDate = nil
		} else {
			v := p.MaturityDate.Value
			fdr.MaturityDate = &v
		}
	}
	if p.Status.Set {
		fdr.Status = p.Status.Value
	}
	if p.Tags.Set {
		fdr.Tags = p.Tags.Value
	}
	copied := *fdr
	return &copied, nil
}

func (r *repoStub) UpdateFDRStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.FDR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fdr, ok := r.fdrs[id]
	if !ok {
		return nil, store.ErrFDRNotFound
	}
	fdr.Status = status
	copied := *fdr
	return &copied, nil
}

func (r *repoStub) DeleteFDR(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fdrs[id]; !ok {
		return store.ErrFDRNotFound
	}
	delete(r.fdrs, id)
	return nil
}

func (r *repoStub) FDRNumberExists(ctx context.Context, fdrNumber string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fdr := range r.fdrs {
		if fdr.FDRNumber != nil && *fdr.FDRNumber == fdrNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoStub) ListExpiringFDRs(ctx context.Context, from, to time.Time) ([]domain.FDR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FDR
	for _, fdr := range r.fdrs {
		if fdr.Status != domain.StatusRunning || fdr.MaturityDate == nil {
			continue
		}
		if fdr.MaturityDate.Before(from) || fdr.MaturityDate.After(to) {
			continue
		}
		out = append(out, *fdr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaturityDate.Before(*out[j].MaturityDate) })
	return out, nil
}

func (r *repoStub) CompleteMaturedFDRs(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, fdr := range r.fdrs {
		if fdr.Status == domain.StatusRunning && fdr.MaturityDate != nil && fdr.MaturityDate.Before(before) {
			fdr.Status = domain.StatusCompleted
			n++
		}
	}
	return n, nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

type blobStub struct {
	keys []string
	err  error
}

func (b *blobStub) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	b.keys = append(b.keys, key)
	return "https://storage.example.com/bucket/" + key, nil
}

type ocrStub struct {
	text string
	err  error
	path string
}

func (o *ocrStub) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	o.path = path
	return o.text, o.err
}

type llmStub struct {
	configured bool
	reply      string
	err        error
	prompt     string
}

func (l *llmStub) Configured() bool { return l.configured }

func (l *llmStub) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.prompt = userPrompt
	return l.reply, l.err
}

var errStub = errors.New("stub failure")

// fixedNow is 10:00 IST on 10 March 2024.
var fixedNow = time.Date(2024, time.March, 10, 4, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo *repoStub, pub *publisherStub, docs *DocumentPipeline) *Service {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	var publisher EventPublisher
	if pub != nil {
		publisher = pub
	}
	svc := NewService(repo, docs, publisher, testLogger(), Config{
		DefaultBankName:    "IDBI",
		DefaultCategory:    domain.CategoryFixedDeposit,
		Location:           loc,
		ExpiringWindowDays: 30,
		EventsExchange:     "fdr_events",
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
