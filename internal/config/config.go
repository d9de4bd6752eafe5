// Пакет config — загрузка и валидация конфигурации Catalog Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Catalog Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8010-8019)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Разрешённые CORS origins (пусто — CORS выключен)
	CORSAllowedOrigins []string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int
	// Сколько ждать доступности PostgreSQL при старте
	DBConnectTimeout time.Duration

	// --- Загрузка CSV ---

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Путь к YAML-файлу с дополнительными исправлениями жанров (опционально)
	GenreCorrectionsFile string
	// Лимит запросов на загрузку в секунду на клиента (0 — без лимита)
	ImportRateLimit float64
	// Размер всплеска для лимита загрузок
	ImportRateBurst int

	// --- Входящие файлы ---

	// Каталог для автоматической загрузки CSV (опционально)
	InboxDir string
	// Задержка перед обработкой файла после последнего изменения
	InboxSettleDelay time.Duration
	// Бакет GCS для опроса (опционально)
	GCSBucket string
	// Префикс объектов в бакете
	GCSPrefix string
	// Путь к ключу сервисного аккаунта GCS (опционально, иначе ADC)
	GCSCredentialsFile string
	// Интервал опроса бакета
	GCSPollInterval time.Duration

	// --- Проверка качества данных ---

	// Интервал периодической проверки
	SweepInterval time.Duration
	// Запускать проверку сразу при старте
	SweepOnStart bool

	// --- Кэш ---

	// Максимальное количество фильмов в кэше
	CacheSize int
	// Время жизни записи кэша
	CacheTTL time.Duration

	// --- JWT (опционально; без JWKS URL аутентификация выключена) ---

	// URL JWKS endpoint
	JWTJWKSURL string
	// Ожидаемый issuer JWT
	JWTIssuer string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration

	// --- Маппинг групп → ролей ---

	// Группы, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы, дающие роль readonly (через запятую)
	RoleReadonlyGroups []string

	// --- topologymetrics ---

	// Имя группы в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CM_PORT — порт HTTP-сервера (по умолчанию 8010)
	cfg.Port, err = getEnvInt("CM_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("CM_PORT: %w", err)
	}
	if cfg.Port < 8010 || cfg.Port > 8019 {
		return nil, fmt.Errorf("CM_PORT: значение %d вне допустимого диапазона 8010-8019", cfg.Port)
	}

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("CM_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("CM_HTTP_READ_TIMEOUT: %w", err)
	}
	// Загрузка большого CSV идёт в рамках одного запроса
	if cfg.HTTPWriteTimeout, err = getEnvDuration("CM_HTTP_WRITE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("CM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("CM_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("CM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("CM_CORS_ALLOWED_ORIGINS", ""))

	// --- PostgreSQL ---

	// CM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// CM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_PORT: %w", err)
	}

	// CM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// CM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CM_DB_USER")
	if err != nil {
		return nil, err
	}

	// CM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// CM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMaxConns, err = getEnvInt("CM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("CM_DB_MAX_CONNS: должно быть не меньше 1, получено %d", cfg.DBMaxConns)
	}

	cfg.DBConnectTimeout, err = getEnvPositiveDuration("CM_DB_CONNECT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_CONNECT_TIMEOUT: %w", err)
	}

	// --- Загрузка CSV ---

	// CM_MAX_UPLOAD_SIZE — в байтах (по умолчанию 32 MiB)
	maxUpload, err := getEnvInt("CM_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("CM_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("CM_MAX_UPLOAD_SIZE: значение %d должно быть положительным", maxUpload)
	}
	cfg.MaxUploadSize = int64(maxUpload)

	cfg.GenreCorrectionsFile = getEnvDefault("CM_GENRE_CORRECTIONS_FILE", "")

	// CM_IMPORT_RATE_LIMIT — запросов в секунду (по умолчанию 1, 0 — без лимита)
	cfg.ImportRateLimit, err = getEnvFloat("CM_IMPORT_RATE_LIMIT", 1)
	if err != nil {
		return nil, fmt.Errorf("CM_IMPORT_RATE_LIMIT: %w", err)
	}
	if cfg.ImportRateLimit < 0 {
		return nil, fmt.Errorf("CM_IMPORT_RATE_LIMIT: значение %v не может быть отрицательным", cfg.ImportRateLimit)
	}
	cfg.ImportRateBurst, err = getEnvInt("CM_IMPORT_RATE_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("CM_IMPORT_RATE_BURST: %w", err)
	}

	// --- Входящие файлы ---

	cfg.InboxDir = getEnvDefault("CM_INBOX_DIR", "")
	cfg.InboxSettleDelay, err = getEnvDuration("CM_INBOX_SETTLE_DELAY", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_INBOX_SETTLE_DELAY: %w", err)
	}

	cfg.GCSBucket = getEnvDefault("CM_GCS_BUCKET", "")
	cfg.GCSPrefix = getEnvDefault("CM_GCS_PREFIX", "")
	cfg.GCSCredentialsFile = getEnvDefault("CM_GCS_CREDENTIALS_FILE", "")
	cfg.GCSPollInterval, err = getEnvPositiveDuration("CM_GCS_POLL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_GCS_POLL_INTERVAL: %w", err)
	}

	// --- Проверка качества данных ---

	// CM_SWEEP_INTERVAL — интервал проверки (по умолчанию 24h)
	cfg.SweepInterval, err = getEnvPositiveDuration("CM_SWEEP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepOnStart, err = getEnvBool("CM_SWEEP_ON_START", false)
	if err != nil {
		return nil, fmt.Errorf("CM_SWEEP_ON_START: %w", err)
	}

	// --- Кэш ---

	cfg.CacheSize, err = getEnvInt("CM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("CM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 || cfg.CacheSize > 1000000 {
		return nil, fmt.Errorf("CM_CACHE_SIZE: значение %d вне допустимого диапазона 1-1000000", cfg.CacheSize)
	}
	cfg.CacheTTL, err = getEnvDuration("CM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("CM_JWT_JWKS_URL", "")
	if cfg.JWTJWKSURL != "" {
		if u, parseErr := url.Parse(cfg.JWTJWKSURL); parseErr != nil || u.Host == "" {
			return nil, fmt.Errorf("CM_JWT_JWKS_URL: некорректный URL %q", cfg.JWTJWKSURL)
		}
	}
	cfg.JWTIssuer = getEnvDefault("CM_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("CM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvPositiveDuration("CM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- Маппинг групп → ролей ---

	// CM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "catalog-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("CM_ROLE_ADMIN_GROUPS", "catalog-admins"))

	// CM_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "catalog-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("CM_ROLE_READONLY_GROUPS", "catalog-viewers"))

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "catalog")
	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// CM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// AuthEnabled сообщает, включена ли проверка JWT.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvPositiveDuration — getEnvDuration, но нулевой или отрицательный интервал — ошибка.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("интервал должен быть положительным, получено %s", d)
	}
	return d, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
