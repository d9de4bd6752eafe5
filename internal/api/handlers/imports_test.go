package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

const csvBody = "id,film,genre,studio,score,year\n1,Alien,Horror,Fox,97,1979\n"

func multipartBody(t *testing.T, field, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("comment", "ночная выгрузка")
	fw, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

// recordingIngestion запоминает имя файла и содержимое.
func recordingIngestion(gotName, gotBody *string, result *model.IngestionResult, err error) *mockIngestion {
	return &mockIngestion{
		ingestFn: func(_ context.Context, r io.Reader, fileName string) (*model.IngestionResult, error) {
			data, _ := io.ReadAll(r)
			*gotName, *gotBody = fileName, string(data)
			return result, err
		},
	}
}

func TestImportFile_Multipart(t *testing.T) {
	var name, body string
	ing := recordingIngestion(&name, &body, &model.IngestionResult{CreatedCount: 1, Success: true}, nil)
	h := newTestRouter(nil, ing, nil, 1<<20)

	buf, ct := multipartBody(t, "file", "../../etc/movies.csv", csvBody)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", buf)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if name != "movies.csv" {
		t.Errorf("имя файла = %q", name)
	}
	if body != csvBody {
		t.Errorf("содержимое = %q", body)
	}

	var res model.IngestionResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.CreatedCount != 1 || res.Errors == nil {
		t.Errorf("итог = %+v", res)
	}
}

func TestImportFile_RawCSV(t *testing.T) {
	var name, body string
	ing := recordingIngestion(&name, &body, &model.IngestionResult{
		RejectedCount: 1,
		Errors:        []string{"строка 2: score не является целым числом"},
	}, nil)
	h := newTestRouter(nil, ing, nil, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports?file_name=nightly.csv", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Ошибки строк не меняют статус
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if name != "nightly.csv" || body != csvBody {
		t.Errorf("имя = %q, тело = %q", name, body)
	}
}

func TestImportFile_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		err         error
		status      int
		code        string
	}{
		{"нет заголовка", "text/csv", "1,2,3\n", failure.New(failure.KindMissingHeader, "csv.header", "отсутствует строка заголовка с именами колонок"),
			http.StatusUnprocessableEntity, "INVALID_FILE"},
		{"нет колонок", "text/csv", "id,film\n", failure.New(failure.KindMissingColumns, "csv.header", "в заголовке отсутствуют обязательные колонки: genre"),
			http.StatusUnprocessableEntity, "INVALID_FILE"},
		{"без Content-Type", "", csvBody, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"JSON вместо CSV", "application/json", `{}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"слишком большой", "text/csv", strings.Repeat("x", 2048), nil, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &mockIngestion{
				ingestFn: func(_ context.Context, r io.Reader, _ string) (*model.IngestionResult, error) {
					_, _ = io.ReadAll(r)
					return nil, tt.err
				},
			}
			h := newTestRouter(nil, ing, nil, 1024)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидали %d, тело: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("код = %s, ожидали %s", code, tt.code)
			}
		})
	}
}

func TestImportFile_MissingField(t *testing.T) {
	h := newTestRouter(nil, &mockIngestion{}, nil, 1<<20)

	buf, ct := multipartBody(t, "document", "movies.csv", csvBody)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", buf)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d", rec.Code)
	}
}

func TestValidateFile(t *testing.T) {
	ing := &mockIngestion{
		validateFn: func(_ context.Context, r io.Reader) *model.FileValidationResult {
			data, _ := io.ReadAll(r)
			if string(data) != csvBody {
				t.Errorf("содержимое = %q", data)
			}
			return &model.FileValidationResult{IsValid: true, RecordCount: 1}
		},
	}
	h := newTestRouter(nil, ing, nil, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/validate", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	want := `{"is_valid":true,"record_count":1,"errors":[]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("тело = %s, ожидали %s", got, want)
	}
}

func TestListImports(t *testing.T) {
	ing := &mockIngestion{
		listRunsFn: func(_ context.Context, limit, offset int) ([]*model.IngestionRun, int, error) {
			if limit != 10 || offset != 0 {
				t.Errorf("limit/offset = %d/%d", limit, offset)
			}
			return []*model.IngestionRun{{ID: "r1", Source: service.SourceUpload}}, 11, nil
		},
	}
	rec := do(t, newTestRouter(nil, ing, nil, 0), http.MethodGet, "/api/v1/imports?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}

	var resp struct {
		Items []struct {
			ID     string   `json:"id"`
			Source string   `json:"source"`
			Errors []string `json:"errors"`
		} `json:"items"`
		HasMore bool `json:"has_more"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Source != "upload" || resp.Items[0].Errors == nil || !resp.HasMore {
		t.Errorf("ответ = %+v", resp)
	}
}

func TestRunSweep(t *testing.T) {
	sw := &mockSweep{
		runFn: func(context.Context) (*model.SweepResult, error) {
			return &model.SweepResult{Success: true, DuplicatesRemoved: 2}, nil
		},
	}
	rec := do(t, newTestRouter(nil, nil, sw, 0), http.MethodPost, "/api/v1/maintenance/sweep", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"duplicates_removed":2`) {
		t.Errorf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}

	busy := &mockSweep{
		runFn: func(context.Context) (*model.SweepResult, error) {
			return nil, service.ErrSweepInProgress
		},
	}
	rec = do(t, newTestRouter(nil, nil, busy, 0), http.MethodPost, "/api/v1/maintenance/sweep", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "BUSY" {
		t.Errorf("занято: статус = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(nil, nil, nil, 0)
	if rec := do(t, h, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live: статус = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready: статус = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/openapi.yaml", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "openapi: 3") {
		t.Errorf("openapi: статус = %d", rec.Code)
	}

	tests := []struct {
		name   string
		checks map[string]ReadinessChecker
		status int
		want   string
	}{
		{"все ok", map[string]ReadinessChecker{"postgresql": mockChecker{status: "ok"}}, http.StatusOK, "ok"},
		{"degraded", map[string]ReadinessChecker{
			"postgresql": mockChecker{status: "ok"},
			"gcs":        mockChecker{status: "degraded"},
		}, http.StatusOK, "degraded"},
		{"fail", map[string]ReadinessChecker{"postgresql": mockChecker{status: "fail", message: "connection refused"}}, http.StatusServiceUnavailable, "fail"},
		{"nil-проверка", map[string]ReadinessChecker{"postgresql": nil}, http.StatusServiceUnavailable, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks).HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидали %d", rec.Code, tt.status)
			}
			var body healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Некорректный JSON: %v", err)
			}
			if body.Status != tt.want || len(body.Checks) != len(tt.checks) {
				t.Errorf("ответ = %+v, ожидали статус %q", body, tt.want)
			}
		})
	}
}

