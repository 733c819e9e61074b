package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port     string `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Timezone string `env:"TIMEZONE" env-default:"Europe/Warsaw"`

	StoreDriver string `env:"STORE_DRIVER" env-default:"sqlite"`
	DBPath      string `env:"DB_PATH" env-default:"exchange_rates.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	NBPBaseURL   string        `env:"NBP_BASE_URL" env-default:"https://api.nbp.pl"`
	NBPTimeout   time.Duration `env:"NBP_TIMEOUT" env-default:"10s"`
	FetchWorkers int           `env:"FETCH_WORKERS" env-default:"4"`
	ChunkWorkers int           `env:"CHUNK_WORKERS" env-default:"2"`

	// TableThreshold is the number of currencies sharing a gap before the
	// whole table is fetched in one query; 0 disables table queries.
	TableThreshold int `env:"TABLE_THRESHOLD" env-default:"2"`

	MetricsTextfile string `env:"METRICS_TEXTFILE"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.FetchWorkers < 1 || c.ChunkWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS and CHUNK_WORKERS must be positive")
	}
	if c.TableThreshold < 0 {
		return fmt.Errorf("TABLE_THRESHOLD must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone "today" is evaluated in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
