// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Load it once at startup using Load().
type Config struct {
	SalesAPI SalesAPIConfig

	// ReferenceURI locates the targets workbook (local path or gs:// URI).
	ReferenceURI string

	// DatasetURI locates the persisted enriched dataset.
	DatasetURI string

	// LegacyWorkbookURI locates the historical multi-sheet export.
	LegacyWorkbookURI string

	BigQuery BigQueryConfig
	Postgres PostgresConfig
	Server   ServerConfig
	Log      LogConfig
}

// SalesAPIConfig holds the upstream sales API settings.
type SalesAPIConfig struct {
	URL     string
	Token   string
	Timeout time.Duration

	// MaxAttempts bounds the fetch attempts per request window.
	MaxAttempts int

	// Backoff is the fixed wait between attempts.
	Backoff time.Duration

	// StartDate is the first day fetched by the daily run.
	StartDate civil.Date

	// ChunkMonthly splits the fetch range into calendar months.
	ChunkMonthly bool
}

// BigQueryConfig holds the warehouse destination.
type BigQueryConfig struct {
	ProjectID string
	Dataset   string
	Table     string
}

// Enabled reports whether a BigQuery destination is configured.
func (c BigQueryConfig) Enabled() bool {
	return c.ProjectID != "" && c.Dataset != "" && c.Table != ""
}

// PostgresConfig holds the relational destination.
type PostgresConfig struct {
	DSN   string
	Table string
}

// Enabled reports whether a Postgres destination is configured.
func (c PostgresConfig) Enabled() bool {
	return c.DSN != ""
}

// ServerConfig holds the dashboard API settings.
type ServerConfig struct {
	Port string

	// User and Password enable HTTP basic auth when both are set.
	User     string
	Password string

	// CORSOrigin is the origin allowed to call the API; empty allows any.
	CORSOrigin string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultStartDate is the first day of sales history fetched by the daily run.
var DefaultStartDate = civil.Date{Year: 2021, Month: time.January, Day: 1}

// Load reads configuration from the environment, after loading .env if present.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		SalesAPI: SalesAPIConfig{
			URL:          getEnv("SALES_API_URL", ""),
			Token:        getEnv("SALES_API_TOKEN", ""),
			Timeout:      getEnvDuration("SALES_API_TIMEOUT", 60*time.Second),
			MaxAttempts:  getEnvInt("FETCH_MAX_ATTEMPTS", 5),
			Backoff:      getEnvDuration("FETCH_BACKOFF", 2*time.Second),
			StartDate:    getEnvDate("FETCH_START_DATE", DefaultStartDate),
			ChunkMonthly: getEnvBool("FETCH_CHUNK_MONTHLY", false),
		},
		ReferenceURI:      getEnv("REFERENCE_URI", "metas.xlsx"),
		DatasetURI:        getEnv("DATASET_URI", "df_sales.csv"),
		LegacyWorkbookURI: getEnv("LEGACY_WORKBOOK_URI", "ventas_historicas.xlsx"),
		BigQuery: BigQueryConfig{
			ProjectID: getEnv("GCP_PROJECT", ""),
			Dataset:   getEnv("BIGQUERY_DATASET", ""),
			Table:     getEnv("BIGQUERY_TABLE", "ventas"),
		},
		Postgres: PostgresConfig{
			DSN:   getEnv("DATABASE_URL", ""),
			Table: getEnv("POSTGRES_TABLE", "public.ventas"),
		},
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			User:       getEnv("DASHBOARD_USER", ""),
			Password:   getEnv("DASHBOARD_PASSWORD", ""),
			CORSOrigin: getEnv("CORS_ORIGIN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDate(key string, defaultValue civil.Date) civil.Date {
	value, err := civil.ParseDate(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
