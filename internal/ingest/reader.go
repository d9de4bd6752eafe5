package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
)

// RawRow — одна строка данных CSV по логическим колонкам.
// Отсутствующие в строке поля содержат пустую строку.
type RawRow struct {
	// Line — номер строки файла (с 1, заголовок — строка 1)
	Line   int
	Values map[Field]string
}

// Get возвращает значение колонки.
func (r RawRow) Get(f Field) string {
	return r.Values[f]
}

// Reader читает строки данных CSV после обязательного заголовка.
//
// Синтаксически битые строки (кавычки) логируются и пропускаются,
// пустые строки пропускаются молча, разное количество полей допускается.
type Reader struct {
	csv     *csv.Reader
	columns Columns
	logger  *slog.Logger

	headerRead bool
	skipped    int
}

// NewReader создаёт Reader поверх потока UTF-8.
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &Reader{
		csv:    cr,
		logger: logger,
	}
}

// ReadHeader читает и проверяет строку заголовка.
// Ошибки: KindMissingHeader (пустой файл или ни одной известной колонки),
// KindMissingColumns (не все обязательные колонки), KindUnreadable.
func (r *Reader) ReadHeader() (Columns, error) {
	const op = "csv.header"
	r.headerRead = true

	for {
		header, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return nil, failure.New(failure.KindMissingHeader, op, "файл пуст: отсутствует строка заголовка")
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, failure.Wrap(failure.KindMissingHeader, op, "строка заголовка повреждена", err)
			}
			return nil, failure.Wrap(failure.KindUnreadable, op, "файл не удалось прочитать", err)
		}
		if blank(header) {
			continue
		}

		cols, missing := ResolveHeader(header)
		if len(cols) == 0 {
			return nil, failure.New(failure.KindMissingHeader, op, "отсутствует строка заголовка с именами колонок")
		}
		if len(missing) > 0 {
			return nil, failure.New(failure.KindMissingColumns, op,
				"в заголовке отсутствуют обязательные колонки: "+FieldNames(missing))
		}
		r.columns = cols
		return cols, nil
	}
}

// Next возвращает следующую строку данных или io.EOF.
// Ошибка ввода-вывода возвращается как KindUnreadable.
func (r *Reader) Next() (RawRow, error) {
	if !r.headerRead {
		if _, err := r.ReadHeader(); err != nil {
			return RawRow{}, err
		}
	}
	if r.columns == nil {
		return RawRow{}, failure.New(failure.KindMissingHeader, "csv.next", "заголовок не прочитан")
	}

	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return RawRow{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && !errors.Is(perr.Err, csv.ErrFieldCount) {
				r.skipped++
				r.logger.Warn("Пропущена повреждённая строка CSV",
					slog.Int("line", perr.StartLine),
					slog.String("error", perr.Err.Error()),
				)
				continue
			}
			return RawRow{}, failure.Wrap(failure.KindUnreadable, "csv.next", "файл не удалось прочитать", err)
		}
		if blank(record) {
			continue
		}

		line, _ := r.csv.FieldPos(0)
		row := RawRow{Line: line, Values: make(map[Field]string, len(Fields))}
		for f, idx := range r.columns {
			if idx < len(record) {
				row.Values[f] = record[idx]
			} else {
				row.Values[f] = ""
			}
		}
		return row, nil
	}
}

// Skipped возвращает количество пропущенных повреждённых строк.
func (r *Reader) Skipped() int {
	return r.skipped
}

// blank сообщает, что все поля записи пустые или состоят из пробелов.
func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
