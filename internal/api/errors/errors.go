// Пакет errors — стандартные ответы с ошибками Catalog Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError или WriteFailure.
package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidFile     = "INVALID_FILE"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeBusy            = "BUSY"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// failureResponse — HTTP-представление вида ошибки.
type failureResponse struct {
	status  int
	code    string
	message string // сообщение по умолчанию, если у ошибки нет Detail
}

// failureResponses — единственное место перевода failure.Kind в HTTP-ответ.
var failureResponses = map[failure.Kind]failureResponse{
	failure.KindUnreadable:     {http.StatusUnprocessableEntity, CodeInvalidFile, "файл не удалось прочитать"},
	failure.KindMissingHeader:  {http.StatusUnprocessableEntity, CodeInvalidFile, "в файле отсутствует строка заголовка"},
	failure.KindMissingColumns: {http.StatusUnprocessableEntity, CodeInvalidFile, "в заголовке отсутствуют обязательные колонки"},
	failure.KindValidation:     {http.StatusBadRequest, CodeValidationError, "некорректные входные данные"},
	failure.KindNotFound:       {http.StatusNotFound, CodeNotFound, "ресурс не найден"},
	failure.KindConflict:       {http.StatusConflict, CodeConflict, "ресурс уже существует"},
	failure.KindBusy:           {http.StatusConflict, CodeBusy, "операция уже выполняется"},
	failure.KindStore:          {http.StatusServiceUnavailable, CodeUnavailable, "хранилище временно недоступно"},
	failure.KindCanceled:       {http.StatusServiceUnavailable, CodeUnavailable, "операция отменена"},
	failure.KindInternal:       {http.StatusInternalServerError, CodeInternalError, "внутренняя ошибка сервера"},
}

// StatusOf возвращает HTTP-статус для ошибки.
func StatusOf(err error) int {
	return responseOf(failure.KindOf(err)).status
}

func responseOf(kind failure.Kind) failureResponse {
	if resp, ok := failureResponses[kind]; ok {
		return resp
	}
	return failureResponses[failure.KindInternal]
}

// WriteFailure записывает ответ для ошибки сервисного слоя.
// Клиент получает только Detail; ошибки хранилища и внутренние ошибки
// логируются полностью и отдаются обезличенным сообщением.
func WriteFailure(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := failure.KindOf(err)
	resp := responseOf(kind)

	message := resp.message
	switch kind {
	case failure.KindStore, failure.KindInternal, failure.KindCanceled:
		logger.Error("Ошибка обработки запроса",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	default:
		if detail := failure.DetailOf(err); detail != "" {
			message = detail
		}
	}

	WriteError(w, resp.status, resp.code, message)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// TooManyRequests — 429 превышен лимит запросов.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// PayloadTooLarge — 413 тело запроса превышает лимит.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
