package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/catalog-module/internal/app"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/database"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// errRejected — файлы обработаны, но часть отклонена или содержит ошибки.
var errRejected = errors.New("часть файлов отклонена или загружена с ошибками")

// cli — общее состояние команд.
type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	jsonOut bool

	// newCore создаёт компоненты с подключением к БД (подменяется в тестах).
	newCore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.Core, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{newCore: app.New}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Обслуживание каталога фильмов",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "validate" {
				// Проверка файла не требует подключения к БД
				c.cfg = &config.Config{LogLevel: slog.LevelWarn, LogFormat: "text"}
			} else {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				c.cfg = cfg
			}
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: c.cfg.LogLevel}))
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "вывод в формате JSON")

	root.AddCommand(c.migrateCmd(), c.ingestCmd(), c.validateCmd(), c.sweepCmd())
	return root
}

func (c *cli) migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы БД",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down {
				return database.MigrateDown(c.cfg, c.logger)
			}
			return database.Migrate(c.cfg, c.logger)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "откатить все миграции")
	return cmd
}

// fileOutcome — итог загрузки одного файла.
type fileOutcome struct {
	Path   string                 `json:"path"`
	Result *model.IngestionResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func (o fileOutcome) ok() bool {
	return o.Error == "" && o.Result != nil && o.Result.ErrorCount == 0 && !o.Result.Canceled
}

func (c *cli) ingestCmd() *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Загрузить CSV-файлы в каталог",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.newCore(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer core.Close()

			outcomes := ingestFiles(cmd.Context(), core.Ingestion, args, parallel)
			if err := output(c.jsonOut, cmd.OutOrStdout(), outcomes, printOutcomes); err != nil {
				return err
			}
			for _, o := range outcomes {
				if !o.ok() {
					return errRejected
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "количество файлов, загружаемых одновременно")
	return cmd
}

// fileIngester — загрузка из CLI.
type fileIngester interface {
	IngestSource(ctx context.Context, r io.Reader, fileName, source string) (*model.IngestionResult, error)
}

// ingestFiles загружает файлы не более чем по parallel одновременно.
// Результаты возвращаются в порядке аргументов.
func ingestFiles(ctx context.Context, ing fileIngester, paths []string, parallel int) []fileOutcome {
	outcomes := make([]fileOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))

	var mu sync.Mutex
	for i, path := range paths {
		g.Go(func() error {
			o := ingestFile(gctx, ing, path)
			mu.Lock()
			outcomes[i] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func ingestFile(ctx context.Context, ing fileIngester, path string) fileOutcome {
	out := fileOutcome{Path: path}

	f, err := os.Open(path)
	if err != nil {
		out.Error = "файл не найден или недоступен для чтения"
		return out
	}
	defer f.Close()

	result, err := ing.IngestSource(ctx, f, filepath.Base(path), service.SourceCLI)
	if err != nil {
		out.Error = failure.DetailOf(err)
		if out.Error == "" {
			out.Error = err.Error()
		}
		return out
	}
	out.Result = result
	return out
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Проверить CSV-файл без записи в каталог",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := service.NewIngestionService(nil, nil, nil, nil, c.logger)
			result := svc.ValidateFilePath(cmd.Context(), args[0])
			if err := output(c.jsonOut, cmd.OutOrStdout(), result, printValidation); err != nil {
				return err
			}
			if !result.IsValid {
				return errRejected
			}
			return nil
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Выполнить проверку качества данных",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := c.newCore(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer core.Close()

			result, err := core.Sweep.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if err := output(c.jsonOut, cmd.OutOrStdout(), result, printSweep); err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.ErrorMessage)
			}
			return nil
		},
	}
}

// output выводит v как JSON или текстом через text.
func output[T any](jsonOut bool, w io.Writer, v T, text func(io.Writer, T)) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w, v)
	return nil
}

func printOutcomes(w io.Writer, outcomes []fileOutcome) {
	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "%s: отклонён: %s\n", o.Path, o.Error)
			continue
		}
		r := o.Result
		fmt.Fprintf(w, "%s: создано %d, обновлено %d, без изменений %d, отклонено %d, ошибок записи %d, пропущено строк %d\n",
			o.Path, r.CreatedCount, r.UpdatedCount, r.UnchangedCount, r.RejectedCount, r.FailedCount, r.SkippedLines)
		if r.Canceled {
			fmt.Fprintf(w, "  загрузка прервана\n")
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

func printValidation(w io.Writer, r *model.FileValidationResult) {
	if r.IsValid {
		fmt.Fprintf(w, "файл корректен, строк данных: %d\n", r.RecordCount)
		return
	}
	fmt.Fprintln(w, "файл некорректен:")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func printSweep(w io.Writer, r *model.SweepResult) {
	fmt.Fprintf(w, "удалено дубликатов %d, исправлено оценок %d, исправлено годов %d\n",
		r.DuplicatesRemoved, r.ScoresCorrected, r.YearsCorrected)
	if r.ErrorMessage != "" {
		fmt.Fprintln(w, r.ErrorMessage)
	}
}
