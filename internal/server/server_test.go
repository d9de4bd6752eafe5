package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/catalog-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
)

// stubServer отвечает 200 на все операции.
type stubServer struct{}

func ok(w http.ResponseWriter) { w.WriteHeader(http.StatusOK) }

func (stubServer) HealthLive(w http.ResponseWriter, _ *http.Request)  { ok(w) }
func (stubServer) HealthReady(w http.ResponseWriter, _ *http.Request) { ok(w) }
func (stubServer) GetMetrics(w http.ResponseWriter, _ *http.Request)  { ok(w) }
func (stubServer) GetOpenAPI(w http.ResponseWriter, _ *http.Request)  { ok(w) }
func (stubServer) ListMovies(w http.ResponseWriter, _ *http.Request, _ handlers.ListMoviesParams) {
	ok(w)
}
func (stubServer) CreateMovie(w http.ResponseWriter, _ *http.Request)        { ok(w) }
func (stubServer) GetMovieStats(w http.ResponseWriter, _ *http.Request)      { ok(w) }
func (stubServer) GetMovie(w http.ResponseWriter, _ *http.Request, _ int)    { ok(w) }
func (stubServer) UpdateMovie(w http.ResponseWriter, _ *http.Request, _ int) { ok(w) }
func (stubServer) DeleteMovie(w http.ResponseWriter, _ *http.Request, _ int) { ok(w) }
func (stubServer) ListImports(w http.ResponseWriter, _ *http.Request, _ handlers.PageParams) {
	ok(w)
}
func (stubServer) ImportFile(w http.ResponseWriter, _ *http.Request, _ handlers.ImportFileParams) {
	ok(w)
}
func (stubServer) ValidateFile(w http.ResponseWriter, _ *http.Request) { ok(w) }
func (stubServer) RunSweep(w http.ResponseWriter, _ *http.Request)     { ok(w) }

const testIssuer = "https://idp.test/realms/catalog"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuth(t *testing.T) (*middleware.JWTAuth, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jwks, _ := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA", "kid": "k1", "use": "sig", "alg": "RS256",
			"n": base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		t.Fatal(err)
	}
	return middleware.NewJWTAuthWithKeyfunc(kf, testIssuer,
		[]string{"catalog-admins"}, []string{"catalog-viewers"}, testLogger()), key
}

func token(t *testing.T, key *rsa.PrivateKey, group string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":    "user-" + group,
		"iss":    testIssuer,
		"groups": []string{group},
		"exp":    jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

func TestRouter_Auth(t *testing.T) {
	auth, key := testAuth(t)
	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{CORSAllowedOrigins: []string{"https://catalog.example.com"}}
	router, err := newRouter(cfg, testLogger(), stubServer{}, Options{
		JWTAuth:       auth,
		OpenAPI:       doc,
		ImportLimiter: middleware.NewKeyedRateLimiter(0.001, 1),
	})
	if err != nil {
		t.Fatalf("newRouter() вернул ошибку: %v", err)
	}

	admin := token(t, key, "catalog-admins")
	viewer := token(t, key, "catalog-viewers")
	movieJSON := `{"movie_id":1,"film":"A","genre":"Drama","studio":"S","score":1,"year":2000}`

	tests := []struct {
		name        string
		method      string
		path        string
		auth        string
		contentType string
		body        string
		want        int
	}{
		{"health без токена", http.MethodGet, "/health/live", "", "", "", http.StatusOK},
		{"метрики без токена", http.MethodGet, "/metrics", "", "", "", http.StatusOK},
		{"API без токена", http.MethodGet, "/api/v1/movies", "", "", "", http.StatusUnauthorized},
		{"viewer читает", http.MethodGet, "/api/v1/movies/5", viewer, "", "", http.StatusOK},
		{"viewer не создаёт", http.MethodPost, "/api/v1/movies", viewer, "application/json", movieJSON, http.StatusForbidden},
		{"admin создаёт", http.MethodPost, "/api/v1/movies", admin, "application/json", movieJSON, http.StatusOK},
		{"admin с некорректным телом", http.MethodPost, "/api/v1/movies", admin, "application/json", `{"movie_id":"x"}`, http.StatusBadRequest},
		{"viewer не запускает проверку", http.MethodPost, "/api/v1/maintenance/sweep", viewer, "", "", http.StatusForbidden},
		{"admin загружает", http.MethodPost, "/api/v1/imports", admin, "text/csv", "id\n", http.StatusOK},
		{"admin сверх лимита", http.MethodPost, "/api/v1/imports", admin, "text/csv", "id\n", http.StatusTooManyRequests},
		{"неизвестный путь", http.MethodGet, "/api/v1/unknown", admin, "", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("статус = %d, ожидали %d, тело: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"https://catalog.example.com"}}
	router, err := newRouter(cfg, testLogger(), stubServer{}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/movies", nil)
	req.Header.Set("Origin", "https://catalog.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://catalog.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_NoAuth(t *testing.T) {
	router, err := newRouter(&config.Config{}, testLogger(), stubServer{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("без аутентификации: статус = %d", rec.Code)
	}
}
