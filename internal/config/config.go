// Package config содержит логику чтения конфигурации сервиса учёта ОП.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса учёта ОП.
type Config struct {
	RunAddress    string        `env:"RUN_ADDRESS"`
	DatabaseURI   string        `env:"DATABASE_URI"`
	SheetsAPIURL  string        `env:"SHEETS_API_URL"`
	SheetsToken   string        `env:"SHEETS_TOKEN"`
	SpreadsheetID string        `env:"SPREADSHEET_ID"`
	AuthSecret    string        `env:"AUTH_SECRET"`
	SyncInterval  time.Duration `env:"SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из файла .env (если есть), переменных
// окружения и флагов командной строки. Переменные окружения имеют приоритет
// над флагами.
func Parse() (*Config, error) {
	// .env необязателен, локальное удобство для разработки.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSheetsAPIURL := cfg.SheetsAPIURL
	envSpreadsheetID := cfg.SpreadsheetID
	envSyncInterval := cfg.SyncInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SheetsAPIURL, "s", "https://sheets.googleapis.com", "sheets API base URL")
	flag.StringVar(&cfg.SpreadsheetID, "id", "", "spreadsheet id")
	flag.DurationVar(&cfg.SyncInterval, "i", time.Minute, "background sync interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSheetsAPIURL != "" {
		cfg.SheetsAPIURL = envSheetsAPIURL
	}
	if envSpreadsheetID != "" {
		cfg.SpreadsheetID = envSpreadsheetID
	}
	if envSyncInterval != 0 {
		cfg.SyncInterval = envSyncInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = time.Minute
	}

	return cfg, nil
}
