package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Подкаталоги входящего каталога.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Пауза перед повтором после сбоя хранилища: удваивается с каждой попыткой.
const (
	DefaultRetryBase = 5 * time.Second
	DefaultRetryMax  = 5 * time.Minute
)

// DirWatcher следит за каталогом и загружает появившиеся *.csv, когда файл
// перестаёт меняться. Загруженный файл переносится в processed/, отклонённый
// целиком — в failed/. Рядом пишется отчёт <имя>.result.json.
// При сбое хранилища файл остаётся на месте и загружается повторно с нарастающей паузой.
type DirWatcher struct {
	dir       string
	settle    time.Duration
	retryBase time.Duration
	retryMax  time.Duration
	ingester  Ingester
	now       func() time.Time
	logger    *slog.Logger

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*pendingFile
	failures map[string]int

	queue chan string
	done  chan struct{}
	wg    sync.WaitGroup
}

// pendingFile — файл, который, возможно, ещё дописывается.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// report — содержимое <имя>.result.json.
type report struct {
	Source string                 `json:"source"`
	Result *model.IngestionResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// NewDirWatcher создаёт наблюдатель каталога dir. Подкаталоги processed/ и
// failed/ создаются при необходимости.
func NewDirWatcher(dir string, settle time.Duration, ingester Ingester, logger *slog.Logger) (*DirWatcher, error) {
	dir = filepath.Clean(dir)
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("создание каталога %s: %w", sub, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("создание fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("наблюдение за каталогом %s: %w", dir, err)
	}

	return &DirWatcher{
		dir:       dir,
		settle:    settle,
		retryBase: DefaultRetryBase,
		retryMax:  DefaultRetryMax,
		ingester:  ingester,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "inbox_dir"), slog.String("dir", dir)),
		watcher:   watcher,
		pending:   make(map[string]*pendingFile),
		failures:  make(map[string]int),
		queue:     make(chan string, 100),
		done:      make(chan struct{}),
	}, nil
}

// Run обрабатывает события до отмены ctx. Файлы, уже лежащие в каталоге,
// загружаются при старте.
func (w *DirWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.wg.Add(1)
	go w.worker(ctx)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("Ошибка чтения входящего каталога", slog.String("error", err.Error()))
	}
	for _, e := range entries {
		if !e.IsDir() && isCSV(e.Name()) {
			w.startSettling(filepath.Join(w.dir, e.Name()))
		}
	}

	w.logger.Info("Наблюдение за входящим каталогом запущено",
		slog.Duration("settle_delay", w.settle),
	)

	defer func() {
		close(w.done)
		w.cancelPending()
		w.wg.Wait()
		w.logger.Info("Наблюдение за входящим каталогом остановлено")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Ошибка fsnotify", slog.String("error", err.Error()))
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir || !isCSV(event.Name) {
		return
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancel(event.Name)
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		w.startSettling(event.Name)
	}
}

// startSettling (пере)запускает таймер ожидания для файла.
func (w *DirWatcher) startSettling(path string) {
	w.settleAfter(path, w.settle)
}

// settleAfter проверяет файл через delay.
func (w *DirWatcher) settleAfter(path string, delay time.Duration) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(delay, func() { w.checkSettled(path) })
	w.pending[path] = p
}

// scheduleRetry ставит повтор загрузки после сбоя хранилища и возвращает паузу.
func (w *DirWatcher) scheduleRetry(path string) time.Duration {
	w.mu.Lock()
	w.failures[path]++
	n := w.failures[path]
	w.mu.Unlock()

	delay := w.retryBase
	for i := 1; i < n && delay < w.retryMax; i++ {
		delay *= 2
	}
	delay = min(delay, w.retryMax)

	select {
	case <-w.done:
	default:
		w.settleAfter(path, delay)
	}
	return delay
}

func (w *DirWatcher) resetFailures(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.failures, path)
}

// checkSettled ставит файл в очередь, если размер и mtime не изменились.
func (w *DirWatcher) checkSettled(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.settle, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case w.queue <- path:
	case <-w.done:
	}
}

func (w *DirWatcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
	delete(w.failures, path)
}

func (w *DirWatcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// worker загружает файлы из очереди по одному.
func (w *DirWatcher) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

// process загружает файл и переносит его в processed/ или failed/.
func (w *DirWatcher) process(ctx context.Context, path string) {
	name := filepath.Base(path)
	source := "inbox:" + name
	logger := w.logger.With(slog.String("file_name", name))

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Файл недоступен", slog.String("error", err.Error()))
		return
	}
	result, ingestErr := w.ingester.IngestSource(ctx, f, name, source)
	f.Close()

	if ingestErr != nil && !failure.KindOf(ingestErr).FileLevel() {
		delay := w.scheduleRetry(path)
		logger.Error("Загрузка не выполнена, повтор",
			slog.Duration("retry_in", delay),
			slog.String("error", ingestErr.Error()),
		)
		return
	}
	if result != nil && result.Canceled {
		// Остановка: файл загрузится заново при следующем запуске
		logger.Warn("Загрузка прервана, файл остаётся во входящем каталоге",
			slog.Int("processed", result.TotalRecords),
		)
		return
	}
	w.resetFailures(path)

	destDir := ProcessedDir
	rep := report{Source: source, Result: result}
	if ingestErr != nil {
		destDir = FailedDir
		rep.Error = failure.DetailOf(ingestErr)
	}

	dest := filepath.Join(w.dir, destDir, w.now().UTC().Format("20060102T150405.000")+"-"+name)
	if err := os.Rename(path, dest); err != nil {
		logger.Error("Не удалось переместить файл", slog.String("error", err.Error()))
		return
	}
	if err := writeReport(dest+".result.json", rep); err != nil {
		logger.Error("Не удалось записать отчёт", slog.String("error", err.Error()))
	}
	if err := w.ingester.MarkInboxScan(ctx, w.now()); err != nil {
		logger.Warn("Не удалось обновить время опроса", slog.String("error", err.Error()))
	}

	logger.Info("Входящий файл обработан", slog.String("moved_to", dest))
}

func writeReport(path string, rep report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
