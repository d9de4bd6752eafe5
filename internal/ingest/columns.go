// Пакет ingest — разбор CSV-файлов каталога: чтение строк, нормализация
// и проверка отдельных записей. Пакет не обращается к хранилищу.
package ingest

import (
	"strings"
)

// Field — логическая колонка CSV.
type Field int

// Логические колонки в порядке вывода.
const (
	FieldID Field = iota
	FieldFilm
	FieldGenre
	FieldStudio
	FieldScore
	FieldYear
)

// Fields — все обязательные колонки.
var Fields = []Field{FieldID, FieldFilm, FieldGenre, FieldStudio, FieldScore, FieldYear}

var fieldNames = [...]string{"id", "film", "genre", "studio", "score", "year"}

// String возвращает имя колонки для сообщений об ошибках.
func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

// headerAliases — допустимые заголовки для каждой колонки (сравнение без учёта регистра).
var headerAliases = map[string]Field{
	"id":     FieldID,
	"film":   FieldFilm,
	"movie":  FieldFilm,
	"title":  FieldFilm,
	"genre":  FieldGenre,
	"studio": FieldStudio,
	"score":  FieldScore,
	"rating": FieldScore,
	"year":   FieldYear,
}

// Columns — сопоставление логических колонок с индексами в записи CSV.
type Columns map[Field]int

// ResolveHeader сопоставляет заголовок с логическими колонками.
// Если колонка встречается несколько раз, используется первое вхождение.
// Возвращает найденные колонки и список отсутствующих в порядке Fields.
func ResolveHeader(header []string) (Columns, []Field) {
	cols := make(Columns, len(Fields))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		f, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := cols[f]; !dup {
			cols[f] = i
		}
	}

	var missing []Field
	for _, f := range Fields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	return cols, missing
}

// FieldNames возвращает имена колонок через запятую.
func FieldNames(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
