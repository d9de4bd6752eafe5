// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrInvalidValue — значение нарушает ограничения схемы (длина, диапазон, CHECK).
	ErrInvalidValue = errors.New("значение нарушает ограничения схемы")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner — DBTX, умеющий открывать транзакцию.
// У *pgxpool.Pool Begin открывает транзакцию, у pgx.Tx — savepoint.
type beginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store объединяет репозитории, привязанные к одному подключению или транзакции.
type Store interface {
	Movies() MovieRepository
	Runs() IngestionRunRepository
	JobState() JobStateRepository
	// InTx выполняет fn в транзакции. Внутри транзакции InTx открывает
	// savepoint: ошибка fn откатывает только его.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// pgStore — реализация Store поверх pgx.
type pgStore struct {
	db beginner
}

// NewStore создаёт Store поверх пула подключений.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool}
}

func (s *pgStore) Movies() MovieRepository {
	return NewMovieRepository(s.db)
}

func (s *pgStore) Runs() IngestionRunRepository {
	return NewIngestionRunRepository(s.db)
}

func (s *pgStore) JobState() JobStateRepository {
	return NewJobStateRepository(s.db)
}

// InTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (s *pgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isDataViolation проверяет, нарушает ли значение ограничения схемы:
// 22001 string_data_right_truncation, 22003 numeric_value_out_of_range,
// 23502 not_null_violation, 23514 check_violation.
func isDataViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22001", "22003", "23502", "23514":
			return true
		}
	}
	return false
}
