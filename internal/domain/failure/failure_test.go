package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	sentinel := New(KindNotFound, "", "фильм не найден")
	err := fmt.Errorf("обёртка: %w", Wrap(KindNotFound, "movies.get", "фильм не найден", errors.New("no rows")))

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is должен совпадать по виду ошибки")
	}
	if errors.Is(err, New(KindConflict, "", "")) {
		t.Error("errors.Is не должен совпадать для другого вида")
	}
	if errors.Is(Wrap(KindNotFound, "a", "", nil), Wrap(KindNotFound, "b", "", nil)) {
		t.Error("ошибка с операцией не является sentinel")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"прямая ошибка", New(KindMissingHeader, "csv", ""), KindMissingHeader},
		{"обёрнутая", fmt.Errorf("x: %w", New(KindBusy, "", "")), KindBusy},
		{"посторонняя ошибка", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindUnreadable, "ingest", "файл не читается", errors.New("permission denied"))
	want := "ingest: файл не читается: permission denied"
	if err.Error() != want {
		t.Errorf("Error() = %q, ожидалось %q", err.Error(), want)
	}
	if DetailOf(err) != "файл не читается" {
		t.Errorf("DetailOf() = %q", DetailOf(err))
	}
	if !KindMissingColumns.FileLevel() || KindValidation.FileLevel() {
		t.Error("FileLevel() вернул неверное значение")
	}
}
