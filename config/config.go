package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pivolan/go_utils"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DataPath          string `env:"DATA_PATH" validate:"required"`
	DataEncoding      string `env:"DATA_ENCODING"`
	DataSheet         string `env:"DATA_SHEET"`
	CategoryColumn    string `env:"CATEGORY_COLUMN" validate:"required"`
	SubcategoryColumn string `env:"SUBCATEGORY_COLUMN" validate:"required"`

	TopN         int    `env:"TOP_N" validate:"min=1"`
	ChartLibrary string `env:"CHART_LIBRARY"`
	FontStrategy string `env:"FONT_STRATEGY"`
	FontPath     string `env:"FONT_PATH"`

	AnomalyDetection     bool    `env:"ANOMALY_DETECTION"`
	AnomalyMethod        string  `env:"ANOMALY_METHOD"`
	AnomalyContamination float64 `env:"ANOMALY_CONTAMINATION" validate:"gt=0,lt=1"`
	AnomalySeed          int64   `env:"ANOMALY_SEED"`

	HttpAddr string `env:"HTTP_ADDR" validate:"required"`
	TgToken  string `env:"TG_TOKEN"`
	DbDsn    string `env:"DB_DSN"`
	LogLevel string `env:"LOG_LEVEL"`
}

var (
	config *Config
	once   sync.Once
)

var (
	encodings     = []string{"auto", "utf-8", "utf8", "cp949", "euc-kr", "euckr"}
	chartLibs     = []string{"echarts", "gochart"}
	fontStrategy  = []string{"system", "bundled"}
	anomalyMethod = []string{"isolation", "zscore"}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// GetConfig возвращает singleton экземпляр конфигурации
func GetConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Warn().Err(err).Msg("no .env file, using environment only")
		}

		cfg, err := Load()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}
		config = cfg
	})
	return config
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		DataPath:             "data/crime.csv",
		DataEncoding:         "auto",
		CategoryColumn:       "범죄대분류",
		SubcategoryColumn:    "범죄중분류",
		TopN:                 10,
		ChartLibrary:         "echarts",
		FontStrategy:         "system",
		FontPath:             "assets/NanumGothic.ttf",
		AnomalyMethod:        "isolation",
		AnomalyContamination: 0.1,
		AnomalySeed:          42,
		HttpAddr:             ":8005",
		LogLevel:             "info",
	}
}

// Load reads the process environment over Default and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	var err error

	setString(&cfg.DataPath, "DATA_PATH")
	setString(&cfg.DataEncoding, "DATA_ENCODING")
	setString(&cfg.DataSheet, "DATA_SHEET")
	setString(&cfg.CategoryColumn, "CATEGORY_COLUMN")
	setString(&cfg.SubcategoryColumn, "SUBCATEGORY_COLUMN")
	setString(&cfg.ChartLibrary, "CHART_LIBRARY")
	setString(&cfg.FontStrategy, "FONT_STRATEGY")
	setString(&cfg.FontPath, "FONT_PATH")
	setString(&cfg.AnomalyMethod, "ANOMALY_METHOD")
	setString(&cfg.HttpAddr, "HTTP_ADDR")
	setString(&cfg.TgToken, "TG_TOKEN")
	setString(&cfg.DbDsn, "DB_DSN")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if v, ok := lookup("TOP_N"); ok {
		if cfg.TopN, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("TOP_N: %w", err)
		}
	}
	if v, ok := lookup("ANOMALY_DETECTION"); ok {
		if cfg.AnomalyDetection, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("ANOMALY_DETECTION: %w", err)
		}
	}
	if v, ok := lookup("ANOMALY_CONTAMINATION"); ok {
		if cfg.AnomalyContamination, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("ANOMALY_CONTAMINATION: %w", err)
		}
	}
	if v, ok := lookup("ANOMALY_SEED"); ok {
		if cfg.AnomalySeed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("ANOMALY_SEED: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags first, then the enumerated settings.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Field(), e.Tag(), e.Param()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"DATA_ENCODING", strings.ToLower(c.DataEncoding), encodings},
		{"CHART_LIBRARY", c.ChartLibrary, chartLibs},
		{"FONT_STRATEGY", c.FontStrategy, fontStrategy},
		{"ANOMALY_METHOD", c.AnomalyMethod, anomalyMethod},
		{"LOG_LEVEL", c.LogLevel, logLevels},
	}
	for _, ch := range checks {
		if !go_utils.InArray(ch.value, ch.allowed) {
			return fmt.Errorf("config: %s=%q, expected one of %s", ch.key, ch.value, strings.Join(ch.allowed, ", "))
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
