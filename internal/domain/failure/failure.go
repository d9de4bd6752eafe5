// Пакет failure — закрытый набор видов ошибок Catalog Module.
//
// Каждый компонент возвращает *Error с конкретным Kind. Перевод вида ошибки
// в HTTP-статус и сообщение для клиента выполняется в одном месте -
// internal/api/errors.WriteFailure.
package failure

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки.
type Kind int

// Виды ошибок.
const (
	KindInternal Kind = iota
	// KindUnreadable — файл не читается
	KindUnreadable
	// KindMissingHeader — отсутствует строка заголовка
	KindMissingHeader
	// KindMissingColumns — в заголовке нет обязательных колонок
	KindMissingColumns
	// KindValidation — некорректные входные данные
	KindValidation
	// KindNotFound — запись не найдена
	KindNotFound
	// KindConflict — нарушение уникальности
	KindConflict
	// KindBusy — операция уже выполняется
	KindBusy
	// KindStore — ошибка хранилища
	KindStore
	// KindCanceled — операция отменена
	KindCanceled
)

var kindNames = map[Kind]string{
	KindInternal:       "internal",
	KindUnreadable:     "unreadable",
	KindMissingHeader:  "missing_header",
	KindMissingColumns: "missing_columns",
	KindValidation:     "validation",
	KindNotFound:       "not_found",
	KindConflict:       "conflict",
	KindBusy:           "busy",
	KindStore:          "store",
	KindCanceled:       "canceled",
}

// String возвращает машиночитаемое имя вида.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FileLevel сообщает, относится ли вид к ошибкам уровня файла.
func (k Kind) FileLevel() bool {
	return k == KindUnreadable || k == KindMissingHeader || k == KindMissingColumns
}

// Error — ошибка с видом, операцией и безопасным описанием.
// Detail можно показывать клиенту, Err — только в логах.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

// New создаёт ошибку без причины.
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap создаёт ошибку с причиной.
func Wrap(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is совпадает с *Error того же вида, у которого не задана операция
// (sentinel-значения вида ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Err == nil && e.Kind == t.Kind
}

// KindOf возвращает вид ошибки. Для ошибок вне пакета — KindInternal,
// для nil — KindInternal тоже, вызывающий код проверяет nil сам.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf возвращает безопасное описание ошибки или пустую строку.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
