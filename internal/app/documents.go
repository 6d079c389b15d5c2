/**
 * @description
 * Document pipeline: stores uploaded receipts in object storage and turns
 * scanned documents into candidate FDR fields via OCR followed by an LLM.
 *
 * @notes
 * - Extraction output is returned verbatim. Dates stay as DD-MM-YYYY strings
 *   and callers run them through the normalizer themselves.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/domain"
)

const (
	msgDocumentFailed         = "Failed to process document"
	msgUnsupportedDocument    = "Unsupported document type"
	msgExtractionFailed       = "AI extraction failed"
	msgExtractionUnconfigured = "AI extraction is not configured"
	msgTextRequired           = "Text is required"
	msgNoTextRecognised       = "No text could be read from the document"
)

var errNotConfigured = errors.New("collaborator not configured")

// BlobStore uploads an object and returns its public URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// TextExtractor runs OCR over a PDF or image file.
type TextExtractor interface {
	ExtractText(ctx context.Context, path, contentType string) (string, error)
}

// FieldCompleter sends a prompt to a hosted model that answers with JSON.
type FieldCompleter interface {
	Configured() bool
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DocumentPipeline groups the collaborators used for document handling.
// Any of them may be nil when the deployment does not configure it.
type DocumentPipeline struct {
	blobs  BlobStore
	ocr    TextExtractor
	llm    FieldCompleter
	folder string
	logger *slog.Logger
}

// NewDocumentPipeline creates a document pipeline writing under folder.
func NewDocumentPipeline(blobs BlobStore, ocr TextExtractor, llm FieldCompleter, folder string, logger *slog.Logger) *DocumentPipeline {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "fdr-documents"
	}
	return &DocumentPipeline{blobs: blobs, ocr: ocr, llm: llm, folder: folder, logger: logger}
}

var documentTypesByExt = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// detectDocumentType sniffs the file content and falls back to the extension
// for formats the sniffer does not know (TIFF).
func detectDocumentType(path, originalName string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	sniffed := http.DetectContentType(head[:n])
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed == "application/pdf" || strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	if byExt, ok := documentTypesByExt[strings.ToLower(filepath.Ext(originalName))]; ok && sniffed == "application/octet-stream" {
		return byExt, nil
	}
	return "", nil
}

// StorageKey builds "<folder>/<uuid><ext>" for an uploaded file name.
func (p *DocumentPipeline) StorageKey(originalName string) string {
	return fmt.Sprintf("%s/%s%s", p.folder, uuid.NewString(), strings.ToLower(filepath.Ext(originalName)))
}

// Upload stores the document and returns its URL. The source file is left in
// place; the caller owns it.
func (p *DocumentPipeline) Upload(ctx context.Context, doc domain.UploadedFile) (string, error) {
	if p == nil || p.blobs == nil {
		return "", externalError(msgDocumentFailed, fmt.Errorf("document storage: %w", errNotConfigured))
	}

	contentType, err := detectDocumentType(doc.Path, doc.OriginalName)
	if err != nil {
		p.logger.Error("failed to read uploaded document", "file", doc.OriginalName, "error", err)
		return "", externalError(msgDocumentFailed, err)
	}
	if contentType == "" {
		return "", validationError(msgUnsupportedDocument)
	}

	file, err := os.Open(doc.Path)
	if err != nil {
		p.logger.Error("failed to open uploaded document", "file", doc.OriginalName, "error", err)
		return "", externalError(msgDocumentFailed, err)
	}
	defer file.Close()

	key := p.StorageKey(doc.OriginalName)
	url, err := p.blobs.Upload(ctx, key, file, contentType)
	if err != nil {
		p.logger.Error("failed to upload document", "key", key, "error", err)
		return "", externalError(msgDocumentFailed, err)
	}
	p.logger.Info("document uploaded", "key", key, "content_type", contentType)
	return url, nil
}

// ExtractFromFile runs OCR then AI field extraction. The temp file at
// doc.Path is removed on every path.
func (p *DocumentPipeline) ExtractFromFile(ctx context.Context, doc domain.UploadedFile) (*domain.ExtractedData, error) {
	defer func() {
		if err := os.Remove(doc.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("failed to remove temp upload", "path", doc.Path, "error", err)
		}
	}()

	if p.ocr == nil {
		return nil, externalError(msgExtractionUnconfigured, fmt.Errorf("ocr: %w", errNotConfigured))
	}

	contentType, err := detectDocumentType(doc.Path, doc.OriginalName)
	if err != nil {
		p.logger.Error("failed to read document for extraction", "file", doc.OriginalName, "error", err)
		return nil, externalError(msgExtractionFailed, err)
	}
	if contentType == "" {
		return nil, validationError(msgUnsupportedDocument)
	}

	text, err := p.ocr.ExtractText(ctx, doc.Path, contentType)
	if err != nil {
		p.logger.Error("ocr failed", "file", doc.OriginalName, "error", err)
		return nil, externalError(msgExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, validationError(msgNoTextRecognised)
	}

	return p.ExtractFromText(ctx, text)
}

const extractionSystemPrompt = "You extract fields from Indian bank fixed deposit receipts and bank guarantees. Reply with a single JSON object and nothing else."

const extractionPromptTemplate = `Extract the following fields from the document text below and return them as a JSON object with exactly these keys:

- "deposit_amount": the principal amount deposited, digits only with an optional decimal point
- "maturity_value": the amount payable at maturity, digits only with an optional decimal point
- "maturity_date": the maturity date formatted as DD-MM-YYYY
- "date_of_deposit": the deposit or issue date formatted as DD-MM-YYYY
- "account_no": the account number
- "fdr_number": the FDR, receipt or guarantee number
- "account_name": the account holder name with prefixes such as "A/C OF", "A/C:" or "M/S" removed
- "bank_name": the issuing bank

Use null for any field that is not present. Do not guess.

Document text:
"""
%s
"""`

// ExtractFromText asks the model for the eight FDR fields found in text.
func (p *DocumentPipeline) ExtractFromText(ctx context.Context, text string) (*domain.ExtractedData, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validationError(msgTextRequired)
	}
	if p.llm == nil || !p.llm.Configured() {
		return nil, externalError(msgExtractionUnconfigured, fmt.Errorf("llm: %w", errNotConfigured))
	}

	completion, err := p.llm.CompleteJSON(ctx, extractionSystemPrompt, fmt.Sprintf(extractionPromptTemplate, text))
	if err != nil {
		p.logger.Error("llm extraction request failed", "error", err)
		return nil, externalError(msgExtractionFailed, err)
	}

	var data domain.ExtractedData
	if err := json.Unmarshal([]byte(stripCodeFence(completion)), &data); err != nil {
		p.logger.Error("llm returned unparseable JSON", "error", err, "completion", truncate(completion, 500))
		return nil, externalError(msgExtractionFailed, err)
	}
	data.RawText = text
	return &data, nil
}

// stripCodeFence removes a surrounding Markdown code fence, with or without a
// language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
