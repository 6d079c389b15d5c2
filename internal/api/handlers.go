/**
 * @description
 * HTTP handlers for the FDR API. Every response uses the
 * {status, message, data} envelope.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/app"
	"github.com/procura/fdr-service/internal/domain"
)

// FDRService is the application surface the handlers depend on.
type FDRService interface {
	Create(ctx context.Context, in app.CreateFDRInput) (*domain.FDR, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.FDR, error)
	List(ctx context.Context, in app.ListFDRsInput) (*domain.FDRPage, error)
	Update(ctx context.Context, id uuid.UUID, in app.UpdateFDRInput) (*domain.FDR, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.FDR, error)
	ListExpiring(ctx context.Context, days int) ([]domain.FDR, error)
	AutoUpdateExpiredStatuses(ctx context.Context) (int64, error)
	NotifyExpiring(ctx context.Context, days int) (int, error)
	BulkImport(ctx context.Context, path string) (*domain.BulkImportResult, error)
}

// DocumentExtractor turns documents into candidate FDR fields.
type DocumentExtractor interface {
	ExtractFromText(ctx context.Context, text string) (*domain.ExtractedData, error)
	ExtractFromFile(ctx context.Context, doc domain.UploadedFile) (*domain.ExtractedData, error)
}

// Handler holds the services that handlers will interact with.
type Handler struct {
	service        FDRService
	extractor      DocumentExtractor
	logger         *slog.Logger
	maxUploadBytes int64
	location       *time.Location
}

// NewHandler creates a new Handler. maxUploadMB bounds every request body and
// location is the business timezone used to date submitted timestamps.
func NewHandler(service FDRService, extractor DocumentExtractor, logger *slog.Logger, maxUploadMB int64, location *time.Location) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		service:        service,
		extractor:      extractor,
		logger:         logger,
		maxUploadBytes: maxUploadMB << 20,
		location:       location,
	}
}

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithData(w http.ResponseWriter, code int, message string, data interface{}) {
	respondWithJSON(w, code, envelope{Status: "success", Message: message, Data: data})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, envelope{Status: "error", Message: message})
}

var statusByKind = map[app.ErrorKind]int{
	app.KindValidation: http.StatusBadRequest,
	app.KindNotFound:   http.StatusNotFound,
	app.KindConflict:   http.StatusConflict,
	app.KindExternal:   http.StatusInternalServerError,
	app.KindInternal:   http.StatusInternalServerError,
}

// respondWithServiceError maps an error to its status code and caller-safe message.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		respondWithError(w, reqErr.status, reqErr.message)
		return
	}
	var appErr *app.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error", "error", err)
	}
	code, ok := statusByKind[app.KindOf(err)]
	if !ok {
		code = http.StatusInternalServerError
	}
	respondWithError(w, code, app.MessageOf(err))
}

func parseFDRID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("Invalid FDR ID")
	}
	return id, nil
}

func (h *Handler) handleCreateFDR(w http.ResponseWriter, r *http.Request) {
	fields, doc, err := h.readFDRBody(w, r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer removeUpload(doc, h.logger)

	fdr, err := h.service.Create(r.Context(), fields.createInput(doc))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, "FDR created successfully", fdr)
}

func (h *Handler) handleListFDRs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := app.ListFDRsInput{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	var err error
	if in.Page, err = queryInt(q.Get("page")); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	if in.PageSize, err = queryInt(q.Get("pageSize")); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid page size")
		return
	}
	if raw := strings.TrimSpace(q.Get("offerId")); raw != "" {
		offerID, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid offer ID")
			return
		}
		in.OfferID = &offerID
	}

	page, err := h.service.List(r.Context(), in)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "", page)
}

func queryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query().Get("days"))
	if err != nil || days < 0 {
		respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	fdrs, err := h.service.ListExpiring(r.Context(), days)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "", fdrs)
}

func (h *Handler) handleGetFDR(w http.ResponseWriter, r *http.Request) {
	id, err := parseFDRID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	fdr, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "", fdr)
}

func (h *Handler) handleUpdateFDR(w http.ResponseWriter, r *http.Request) {
	id, err := parseFDRID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	fields, doc, err := h.readFDRBody(w, r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer removeUpload(doc, h.logger)

	fdr, err := h.service.Update(r.Context(), id, fields.updateInput(doc))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "FDR updated successfully", fdr)
}

func (h *Handler) handleDeleteFDR(w http.ResponseWriter, r *http.Request) {
	id, err := parseFDRID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "FDR deleted successfully", nil)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseFDRID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	var req updateStatusRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fdr, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "FDR status updated successfully", fdr)
}

func (h *Handler) handleMaturitySweep(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.AutoUpdateExpiredStatuses(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "Maturity sweep completed", map[string]int64{"updated": updated})
}

func (h *Handler) handleNotifyExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query().Get("days"))
	if err != nil || days < 0 {
		respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	notified, err := h.service.NotifyExpiring(r.Context(), days)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "Expiry notices published", map[string]int{"notified": notified})
}
