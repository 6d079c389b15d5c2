/**
 * @description
 * Handlers for the document endpoints: AI field extraction and the Excel
 * bulk import. Uploaded files are spooled to disk and always removed.
 */

package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
)

var importExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

type extractTextRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var req extractTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	data, err := h.extractor.ExtractFromText(r.Context(), req.Text)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "", data)
}

func (h *Handler) handleExtractFile(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	doc, err := spoolFormFile(r, "file", true)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer removeUpload(doc, h.logger)

	data, err := h.extractor.ExtractFromFile(r.Context(), *doc)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, "", data)
}

func (h *Handler) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	doc, err := spoolFormFile(r, "file", true)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	defer removeUpload(doc, h.logger)

	if !importExtensions[strings.ToLower(filepath.Ext(doc.OriginalName))] {
		respondWithError(w, http.StatusBadRequest, "Only .xlsx files are supported")
		return
	}

	result, err := h.service.BulkImport(r.Context(), doc.Path)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.logger.Info("bulk import request finished", "file", doc.OriginalName, "created", result.SuccessCount)
	respondWithData(w, http.StatusOK, "Bulk import completed", result)
}
