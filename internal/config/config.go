package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// SourceBaseURL is the root listing the year directories.
	SourceBaseURL string `validate:"required,url"`
	UserAgent     string
	HTTPTimeout   time.Duration `validate:"gt=0"`
	// FetchMaxRetries is the number of retries after a failed page fetch.
	FetchMaxRetries int `validate:"gte=0,lte=10"`

	DBPath string `validate:"required"`
	// StoreStrategy selects how events are inserted: "session" or "direct".
	StoreStrategy string `validate:"oneof=session direct"`

	// ScrapeInterval controls how often an ingestion run starts.
	ScrapeInterval time.Duration `validate:"gte=1s"`
	ScrapeOnStart  bool
	RunTimeout     time.Duration `validate:"gt=0"`

	// Recency window: how many of the newest years, and months per year, each run visits.
	RecentYears  int `validate:"gte=1"`
	RecentMonths int `validate:"gte=1"`

	MinMagnitude float64

	LoadVolcanoesOnStart bool

	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=json console"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{
		Port:          getenvDefault("PORT", "8080"),
		SourceBaseURL: getenvDefault("SOURCE_BASE_URL", "http://hraun.vedur.is/ja/Mpgv/"),
		UserAgent:     getenvDefault("USER_AGENT", "quake-monitor/1.0"),
		DBPath:        getenvDefault("DB_PATH", "./data/earthquakes.db"),
		StoreStrategy: getenvDefault("STORE_STRATEGY", "session"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFormat:     getenvDefault("LOG_FORMAT", "json"),
	}

	var err error
	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"HTTP_TIMEOUT", "20s", &cfg.HTTPTimeout},
		{"SCRAPE_INTERVAL", "3m", &cfg.ScrapeInterval},
		{"RUN_TIMEOUT", "2m", &cfg.RunTimeout},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = time.ParseDuration(getenvDefault(d.key, d.def)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if cfg.FetchMaxRetries, err = getenvInt("FETCH_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.RecentYears, err = getenvInt("RECENT_YEARS", 1); err != nil {
		return nil, err
	}
	if cfg.RecentMonths, err = getenvInt("RECENT_MONTHS", 2); err != nil {
		return nil, err
	}
	if cfg.MinMagnitude, err = getenvFloat("MIN_MAGNITUDE", 3.0); err != nil {
		return nil, err
	}
	if cfg.ScrapeOnStart, err = getenvBool("SCRAPE_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.LoadVolcanoesOnStart, err = getenvBool("LOAD_VOLCANOES_ON_START", true); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
