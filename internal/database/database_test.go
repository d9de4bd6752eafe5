package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/catalog-module/internal/config"
)

// startPostgres поднимает PostgreSQL в контейнере и возвращает конфиг для него.
func startPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("catalog_test"),
		postgres.WithUsername("catalog"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("CM_DB_HOST", host)
	t.Setenv("CM_DB_PORT", port.Port())
	t.Setenv("CM_DB_NAME", "catalog_test")
	t.Setenv("CM_DB_USER", "catalog")
	t.Setenv("CM_DB_PASSWORD", "test-password")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestMigrateAndConnect(t *testing.T) {
	cfg := startPostgres(t)
	logger := testLogger()
	ctx := context.Background()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — ErrNoChange не является ошибкой
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"movies", "ingestion_runs", "job_state"} {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	var stateID int
	if err := pool.QueryRow(ctx, `SELECT id FROM job_state`).Scan(&stateID); err != nil {
		t.Fatalf("Начальная запись job_state не найдена: %v", err)
	}

	// Оценка вне 0-100 допустима на уровне схемы
	_, err = pool.Exec(ctx, `
		INSERT INTO movies (id, movie_id, film, genre, studio, score, year)
		VALUES (gen_random_uuid(), 1, 'X', 'Drama', 'S', 150, 1700)`)
	if err != nil {
		t.Errorf("вставка записи вне диапазона отклонена схемой: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO movies (id, movie_id, film, genre, studio, score, year)
		VALUES (gen_random_uuid(), 1, 'Y', 'Drama', 'S', 10, 2000)`)
	if err == nil {
		t.Error("дубликат movie_id должен нарушать уникальность")
	}

	status, msg := NewReadinessChecker(pool).CheckReady(ctx)
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидали ok", status, msg)
	}

	pool.Close()
	if err := MigrateDown(cfg, logger); err != nil {
		t.Fatalf("MigrateDown() вернул ошибку: %v", err)
	}
}
