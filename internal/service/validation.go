// validation.go — проверка входных данных API через validator/v10.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
)

// inputValidator — обёртка над go-playground/validator с переводом ошибок в failure.
type inputValidator struct {
	v *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New()

	// Имена полей в сообщениях — из json-тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &inputValidator{v: v}
}

// validate проверяет структуру. Ошибка — KindValidation с перечнем полей.
func (iv *inputValidator) validate(op string, s any) error {
	err := iv.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return failure.Wrap(failure.KindInternal, op, "ошибка проверки данных", err)
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Field()+": "+friendlyMessage(e))
	}
	sort.Strings(msgs)
	return failure.New(failure.KindValidation, op, strings.Join(msgs, "; "))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "обязательное поле"
	case "max":
		return fmt.Sprintf("не длиннее %s символов", e.Param())
	case "gt":
		return "должно быть больше " + e.Param()
	case "gte":
		return "должно быть не меньше " + e.Param()
	case "lte":
		return "должно быть не больше " + e.Param()
	default:
		return "некорректное значение"
	}
}
