// catalogctl — CLI обслуживания Catalog Module: миграции, загрузка
// и проверка CSV-файлов, ручной запуск проверки качества данных.
// Конфигурация берётся из тех же переменных окружения CM_*.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Коды завершения.
const (
	exitError    = 1
	exitRejected = 2 // хотя бы один файл отклонён или загружен с ошибками
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Ошибка:", err)

	if errors.Is(err, errRejected) {
		os.Exit(exitRejected)
	}
	os.Exit(exitError)
}
