/**
 * @description
 * Request decoding for FDR create and update. JSON bodies and multipart forms
 * are both reduced to a map of raw JSON values, then each field is parsed
 * through the normalizer so amounts and dates accept the same loose formats
 * as the bulk import.
 *
 * @notes
 * - Keys are accepted in snake_case or camelCase.
 * - In multipart forms the literal value "null" clears a field.
 */

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procura/fdr-service/internal/app"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/procura/fdr-service/internal/normalize"
	"github.com/shopspring/decimal"
)

const multipartMemory = 8 << 20

// requestError is a client error detected before the service is called.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...interface{}) *requestError {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

type rawFields map[string]json.RawMessage

func (f rawFields) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := f[k]; ok {
			return raw, true
		}
	}
	return nil, false
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// fdrFields is the decoded, normalized form of a create or update body.
type fdrFields struct {
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
}

// decodeFDRFields normalizes a raw body. Timestamps with an offset are dated
// in loc.
func decodeFDRFields(f rawFields, loc *time.Location, logger *slog.Logger) (fdrFields, error) {
	var (
		out fdrFields
		err error
	)
	text := func(dst *domain.Field[string], label string, keys ...string) {
		if err == nil {
			*dst, err = textField(f, label, keys...)
		}
	}
	text(&out.Category, "category", "category")
	text(&out.BankName, "bank name", "bank_name", "bankName")
	text(&out.AccountNo, "account number", "account_no", "accountNo")
	text(&out.FDRNumber, "FDR number", "fdr_number", "fdrNumber")
	text(&out.AccountName, "account name", "account_name", "accountName")
	text(&out.ContractNo, "contract number", "contract_no", "contractNo")
	text(&out.ContractDetails, "contract details", "contract_details", "contractDetails")
	text(&out.POC, "POC", "poc")
	text(&out.Location, "location", "location")
	text(&out.Status, "status", "status")
	if err != nil {
		return out, err
	}

	if out.DepositAmount, err = amountField(f, "deposit amount", "deposit_amount", "depositAmount"); err != nil {
		return out, err
	}
	if out.MaturityValue, err = amountField(f, "maturity value", "maturity_value", "maturityValue"); err != nil {
		return out, err
	}
	if out.DateOfDeposit, err = dateField(f, loc, "date of deposit", "date_of_deposit", "dateOfDeposit"); err != nil {
		return out, err
	}
	if out.MaturityDate, err = dateField(f, loc, "maturity date", "maturity_date", "maturityDate"); err != nil {
		return out, err
	}
	if out.OfferID, err = uuidField(f, "offer_id", "offerId"); err != nil {
		return out, err
	}
	if out.ExtractedData, err = extractedField(f, "extracted_data", "extractedData"); err != nil {
		return out, err
	}
	out.Tags = tagsField(f, logger, "tags")
	return out, nil
}

func textField(f rawFields, label string, keys ...string) (domain.Field[string], error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[string]{}, nil
	}
	if isNullJSON(raw) {
		return domain.NullField[string](), nil
	}
	var v domain.LooseString
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Field[string]{}, badRequest("Invalid %s", label)
	}
	return domain.NewField(string(v)), nil
}

// decodeScalar decodes raw keeping numbers as json.Number. A blank or
// placeholder string reports ok=false.
func decodeScalar(raw json.RawMessage) (v interface{}, ok bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false, err
	}
	if s, isString := v.(string); isString && normalize.IsBlank(strings.TrimSpace(s)) {
		return nil, false, nil
	}
	return v, true, nil
}

func amountField(f rawFields, label string, keys ...string) (domain.Field[decimal.Decimal], error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[decimal.Decimal]{}, nil
	}
	if isNullJSON(raw) {
		return domain.NullField[decimal.Decimal](), nil
	}
	v, present, err := decodeScalar(raw)
	if err != nil {
		return domain.Field[decimal.Decimal]{}, badRequest("Invalid %s", label)
	}
	if !present {
		return domain.NullField[decimal.Decimal](), nil
	}
	d, ok := normalize.ParseNumber(v)
	if !ok {
		return domain.Field[decimal.Decimal]{}, badRequest("Invalid %s", label)
	}
	return domain.NewField(d), nil
}

func dateField(f rawFields, loc *time.Location, label string, keys ...string) (domain.Field[time.Time], error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[time.Time]{}, nil
	}
	if isNullJSON(raw) {
		return domain.NullField[time.Time](), nil
	}
	v, present, err := decodeScalar(raw)
	if err != nil {
		return domain.Field[time.Time]{}, badRequest("Invalid %s", label)
	}
	if !present {
		return domain.NullField[time.Time](), nil
	}
	if n, isNumber := v.(json.Number); isNumber {
		v = n.String()
	}
	t, ok := normalize.ParseDateIn(v, loc)
	if !ok {
		return domain.Field[time.Time]{}, badRequest("Invalid %s", label)
	}
	return domain.NewField(t), nil
}

func uuidField(f rawFields, keys ...string) (domain.Field[uuid.UUID], error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[uuid.UUID]{}, nil
	}
	if isNullJSON(raw) {
		return domain.NullField[uuid.UUID](), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Field[uuid.UUID]{}, badRequest("Invalid offer ID")
	}
	if strings.TrimSpace(s) == "" {
		return domain.NullField[uuid.UUID](), nil
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return domain.Field[uuid.UUID]{}, badRequest("Invalid offer ID")
	}
	return domain.NewField(id), nil
}

// extractedField accepts an object, or a string holding one (multipart).
func extractedField(f rawFields, keys ...string) (domain.Field[*domain.ExtractedData], error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[*domain.ExtractedData]{}, nil
	}
	if isNullJSON(raw) {
		return domain.NullField[*domain.ExtractedData](), nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if strings.TrimSpace(encoded) == "" {
			return domain.NullField[*domain.ExtractedData](), nil
		}
		raw = json.RawMessage(encoded)
	}
	var data domain.ExtractedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Field[*domain.ExtractedData]{}, badRequest("Invalid extracted data")
	}
	return domain.NewField(&data), nil
}

func tagsField(f rawFields, logger *slog.Logger, keys ...string) domain.Field[[]string] {
	raw, ok := f.lookup(keys...)
	if !ok {
		return domain.Field[[]string]{}
	}
	tags, ok := NormalizeTags(raw)
	if !ok {
		logger.Warn("ignoring malformed tags", "tags", string(raw))
	}
	return domain.NewField(tags)
}

// NormalizeTags accepts a JSON array of strings or a string holding a
// JSON-encoded array. Anything else yields no tags and ok=false.
func NormalizeTags(raw json.RawMessage) (tags []string, ok bool) {
	if isNullJSON(raw) {
		return []string{}, true
	}
	if err := json.Unmarshal(raw, &tags); err == nil {
		return cleanTags(tags), true
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return []string{}, false
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return []string{}, true
	}
	if err := json.Unmarshal([]byte(encoded), &tags); err != nil {
		return []string{}, false
	}
	return cleanTags(tags), true
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func optional[T any](f domain.Field[T]) *T {
	if !f.Set || f.Null {
		return nil
	}
	v := f.Value
	return &v
}

func (f fdrFields) createInput(doc *domain.UploadedFile) app.CreateFDRInput {
	in := app.CreateFDRInput{
		Category:        f.Category.Value,
		BankName:        f.BankName.Value,
		AccountNo:       optional(f.AccountNo),
		FDRNumber:       optional(f.FDRNumber),
		AccountName:     optional(f.AccountName),
		DepositAmount:   optional(f.DepositAmount),
		MaturityValue:   optional(f.MaturityValue),
		DateOfDeposit:   optional(f.DateOfDeposit),
		MaturityDate:    optional(f.MaturityDate),
		ContractNo:      optional(f.ContractNo),
		ContractDetails: optional(f.ContractDetails),
		POC:             optional(f.POC),
		Location:        optional(f.Location),
		Status:          f.Status.Value,
		Tags:            f.Tags.Value,
		OfferID:         optional(f.OfferID),
		Document:        doc,
	}
	if f.ExtractedData.Set && !f.ExtractedData.Null {
		in.ExtractedData = f.ExtractedData.Value
	}
	return in
}

func (f fdrFields) updateInput(doc *domain.UploadedFile) app.UpdateFDRInput {
	return app.UpdateFDRInput{
		Category:        f.Category,
		BankName:        f.BankName,
		AccountNo:       f.AccountNo,
		FDRNumber:       f.FDRNumber,
		AccountName:     f.AccountName,
		DepositAmount:   f.DepositAmount,
		MaturityValue:   f.MaturityValue,
		DateOfDeposit:   f.DateOfDeposit,
		MaturityDate:    f.MaturityDate,
		ContractNo:      f.ContractNo,
		ContractDetails: f.ContractDetails,
		POC:             f.POC,
		Location:        f.Location,
		Status:          f.Status,
		Tags:            f.Tags,
		OfferID:         f.OfferID,
		ExtractedData:   f.ExtractedData,
		Document:        doc,
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readFDRBody decodes a JSON or multipart body. For multipart the optional
// "document" file is spooled to a temp file the caller must remove.
func (h *Handler) readFDRBody(w http.ResponseWriter, r *http.Request) (fdrFields, *domain.UploadedFile, error) {
	raw := rawFields{}
	var doc *domain.UploadedFile

	if isMultipart(r) {
		if err := h.parseMultipart(w, r); err != nil {
			return fdrFields{}, nil, err
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) == 0 {
				continue
			}
			if values[0] == "null" {
				raw[key] = json.RawMessage("null")
				continue
			}
			encoded, _ := json.Marshal(values[0])
			raw[key] = encoded
		}
		var err error
		doc, err = spoolFormFile(r, "document", false)
		r.MultipartForm.RemoveAll()
		if err != nil {
			return fdrFields{}, nil, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return fdrFields{}, nil, badRequest("Invalid request body")
		}
	}

	fields, err := decodeFDRFields(raw, h.location, h.logger)
	if err != nil {
		removeUpload(doc, h.logger)
		return fdrFields{}, nil, err
	}
	return fields, doc, nil
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{status: http.StatusRequestEntityTooLarge, message: "File too large"}
		}
		return badRequest("Invalid multipart form")
	}
	return nil
}

// spoolFormFile copies the named form file to a temp file.
func spoolFormFile(r *http.Request, field string, required bool) (*domain.UploadedFile, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		return nil, badRequest("File is required")
	}
	defer file.Close()

	return spool(file, header)
}

func spool(src multipart.File, header *multipart.FileHeader) (*domain.UploadedFile, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "fdr-upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	return &domain.UploadedFile{
		Path:         tmp.Name(),
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         size,
	}, nil
}

func removeUpload(doc *domain.UploadedFile, logger *slog.Logger) {
	if doc == nil {
		return
	}
	if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove temp upload", "path", doc.Path, "error", err)
	}
}
