package inbox

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// fakeBucket — мок ObjectSource.
type fakeBucket struct {
	objects []ObjectInfo
	bodies  map[string]string
	listErr error
	opened  []string
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []ObjectInfo
	for _, o := range b.objects {
		if strings.HasPrefix(o.Name, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *fakeBucket) Open(_ context.Context, name string, _ int64) (io.ReadCloser, error) {
	b.opened = append(b.opened, name)
	body, ok := b.bodies[name]
	if !ok {
		return nil, errors.New("объект не найден")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestGCSPoller_PollOnce(t *testing.T) {
	bucket := &fakeBucket{
		objects: []ObjectInfo{
			{Name: "incoming/", Generation: 1},
			{Name: "incoming/a.csv", Generation: 10},
			{Name: "incoming/b.csv", Generation: 20},
			{Name: "incoming/readme.md", Generation: 30},
			{Name: "archive/c.csv", Generation: 40},
		},
		bodies: map[string]string{
			"incoming/a.csv": validCSV,
			"incoming/b.csv": "garbage\n",
		},
	}
	ing := newFakeIngester()
	p := NewGCSPoller(bucket, "catalog-inbox", "incoming/", time.Minute, ing, testLogger())
	ctx := context.Background()

	n, err := p.PollOnce(ctx)
	if err != nil {
		t.Fatalf("PollOnce() ошибка: %v", err)
	}
	// Отклонённый целиком файл тоже считается обработанным
	if n != 2 {
		t.Errorf("PollOnce() = %d, ожидали 2", n)
	}
	want := []string{"gs://catalog-inbox/incoming/a.csv#10", "gs://catalog-inbox/incoming/b.csv#20"}
	if calls := ing.calls(); len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("источники = %v, ожидали %v", calls, want)
	}
	if ing.scans != 1 {
		t.Errorf("MarkInboxScan вызван %d раз", ing.scans)
	}

	// Повторный опрос: всё уже загружено
	if n, _ := p.PollOnce(ctx); n != 0 {
		t.Errorf("повторный PollOnce() = %d, ожидали 0", n)
	}

	// Новое поколение объекта загружается заново
	bucket.objects[1].Generation = 11
	if n, _ := p.PollOnce(ctx); n != 1 {
		t.Errorf("PollOnce() после перезаписи = %d, ожидали 1", n)
	}
}

func TestGCSPoller_ListError(t *testing.T) {
	bucket := &fakeBucket{listErr: errors.New("permission denied")}
	p := NewGCSPoller(bucket, "b", "", time.Minute, newFakeIngester(), testLogger())

	if _, err := p.PollOnce(context.Background()); err == nil {
		t.Error("ошибка списка объектов должна возвращаться")
	}
}

func TestGCSPoller_OpenErrorRetried(t *testing.T) {
	bucket := &fakeBucket{
		objects: []ObjectInfo{{Name: "x.csv", Generation: 1}},
		bodies:  map[string]string{},
	}
	ing := newFakeIngester()
	p := NewGCSPoller(bucket, "b", "", time.Minute, ing, testLogger())

	if n, _ := p.PollOnce(context.Background()); n != 0 {
		t.Errorf("PollOnce() = %d, ожидали 0", n)
	}
	bucket.bodies["x.csv"] = validCSV
	if n, _ := p.PollOnce(context.Background()); n != 1 {
		t.Errorf("после восстановления PollOnce() = %d, ожидали 1", n)
	}
}

func TestGCSPoller_RunStopsOnCancel(t *testing.T) {
	p := NewGCSPoller(&fakeBucket{}, "b", "", time.Hour, newFakeIngester(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() не завершился после отмены")
	}
}

func TestGCSPoller_CanceledRunRetried(t *testing.T) {
	bucket := &fakeBucket{
		objects: []ObjectInfo{{Name: "movies.csv", Generation: 3}},
		bodies:  map[string]string{"movies.csv": validCSV},
	}
	ing := newFakeIngester()
	ing.cancelRuns = true
	p := NewGCSPoller(bucket, "b", "", time.Minute, ing, testLogger())

	if n, _ := p.PollOnce(context.Background()); n != 0 {
		t.Errorf("PollOnce() с прерванной загрузкой = %d, ожидали 0", n)
	}

	ing.mu.Lock()
	ing.cancelRuns = false
	ing.mu.Unlock()
	if n, _ := p.PollOnce(context.Background()); n != 1 {
		t.Errorf("PollOnce() после прерванной загрузки = %d, ожидали 1", n)
	}
	if calls := ing.calls(); len(calls) != 2 {
		t.Errorf("IngestSource вызван %d раз, ожидали 2", len(calls))
	}
}

func TestGCSPoller_NonPositiveInterval(t *testing.T) {
	p := NewGCSPoller(&fakeBucket{}, "b", "", 0, newFakeIngester(), testLogger())
	if p.interval != DefaultGCSPollInterval {
		t.Errorf("interval = %s, ожидали %s", p.interval, DefaultGCSPollInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() не завершился после отмены")
	}
}
