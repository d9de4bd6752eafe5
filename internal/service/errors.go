// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

var (
	// ErrNotFound — фильм не найден.
	ErrNotFound = failure.New(failure.KindNotFound, "", "фильм не найден")
	// ErrConflict — фильм с таким movie_id уже существует.
	ErrConflict = failure.New(failure.KindConflict, "", "фильм с таким movie_id уже существует")
	// ErrSweepInProgress — проверка качества данных уже выполняется.
	ErrSweepInProgress = failure.New(failure.KindBusy, "", "проверка качества данных уже выполняется")
)

// storeError переводит ошибку репозитория в *failure.Error.
// Исходная ошибка сохраняется в Err и попадает только в логи.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return failure.Wrap(failure.KindNotFound, op, ErrNotFound.Detail, err)
	case errors.Is(err, repository.ErrConflict):
		return failure.Wrap(failure.KindConflict, op, ErrConflict.Detail, err)
	case errors.Is(err, repository.ErrInvalidValue):
		return failure.Wrap(failure.KindValidation, op, "значение не помещается в ограничения хранилища", err)
	default:
		return failure.Wrap(failure.KindStore, op, "ошибка хранилища", err)
	}
}
