// imports.go — загрузка CSV и история загрузок /api/v1/imports.
// Файл передаётся полем file multipart/form-data или телом text/csv.
package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

const defaultUploadName = "upload.csv"

// ListImports — GET /api/v1/imports.
func (h *APIHandler) ListImports(w http.ResponseWriter, r *http.Request, params PageParams) {
	limit, offset := paginationDefaults(params.Limit, params.Offset)

	runs, total, err := h.ingestion.ListRuns(r.Context(), limit, offset)
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}

	items := make([]IngestionRun, len(runs))
	for i, run := range runs {
		items[i] = mapRun(run)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// ImportFile — POST /api/v1/imports.
// Ошибки строк не меняют статус: 200 с итогом. Ошибки уровня файла — 422.
func (h *APIHandler) ImportFile(w http.ResponseWriter, r *http.Request, params ImportFileParams) {
	body, name, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer body.Close()

	if params.FileName != nil && *params.FileName != "" {
		name = filepath.Base(*params.FileName)
	}

	result, err := h.ingestion.Ingest(r.Context(), body, name)
	if err != nil {
		if isTooLarge(err) {
			apierrors.PayloadTooLarge(w, "Размер файла превышает допустимый")
			return
		}
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

// ValidateFile — POST /api/v1/imports/validate. Проверяет файл без записи.
func (h *APIHandler) ValidateFile(w http.ResponseWriter, r *http.Request) {
	body, _, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer body.Close()

	writeJSON(w, http.StatusOK, mapValidation(h.ingestion.ValidateFile(r.Context(), body)))
}

// openUpload возвращает тело загружаемого файла с ограничением размера.
func (h *APIHandler) openUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	if h.maxUploadSize > 0 {
		if r.ContentLength > h.maxUploadSize {
			apierrors.PayloadTooLarge(w, "Размер файла превышает допустимый")
			return nil, "", false
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		apierrors.ValidationError(w, "Ожидается Content-Type multipart/form-data или text/csv")
		return nil, "", false
	}

	switch mediaType {
	case "text/csv", "text/plain", "application/octet-stream":
		return r.Body, defaultUploadName, true

	case "multipart/form-data":
		mr, err := r.MultipartReader()
		if err != nil {
			apierrors.ValidationError(w, "Некорректное multipart тело: "+err.Error())
			return nil, "", false
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				apierrors.ValidationError(w, "Отсутствует поле file")
				return nil, "", false
			}
			if err != nil {
				if isTooLarge(err) {
					apierrors.PayloadTooLarge(w, "Размер файла превышает допустимый")
				} else {
					apierrors.ValidationError(w, "Некорректное multipart тело: "+err.Error())
				}
				return nil, "", false
			}
			if part.FormName() != "file" {
				_ = part.Close()
				continue
			}
			name := defaultUploadName
			if fn := part.FileName(); fn != "" {
				name = filepath.Base(fn)
			}
			return part, name, true
		}

	default:
		apierrors.ValidationError(w, "Неподдерживаемый Content-Type: "+mediaType)
		return nil, "", false
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
