package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"prometeo-backend/utils"
)

// Data sources the scoring service can read raw tables from.
const (
	SourceDB   = "db"
	SourceCSV  = "csv"
	SourceHTTP = "http"
)

type Config struct {
	Port            string
	DBUrl           string
	LogLevel        string
	ModelPath       string
	TransformsPath  string
	Threshold       float64
	ReferenceDate   time.Time
	DataSource      string
	DataDir         string
	MockBaseURL     string
	RescoreSchedule string
	CORSOrigins     []string
}

// Load reads .env (if present), an optional config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MODEL_PATH", "model.json")
	v.SetDefault("TRANSFORMS_PATH", "transforms.json")
	v.SetDefault("THRESHOLD", 0.5)
	v.SetDefault("REFERENCE_DATE", "2024-01-01")
	v.SetDefault("DATA_SOURCE", SourceDB)
	v.SetDefault("DATA_DIR", "data/raw")
	v.SetDefault("MOCK_BASE_URL", "http://localhost:3002")
	v.SetDefault("RESCORE_SCHEDULE", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	ref, err := utils.ParseDate(v.GetString("REFERENCE_DATE"))
	if err != nil {
		return nil, fmt.Errorf("REFERENCE_DATE: %w", err)
	}
	threshold := v.GetFloat64("THRESHOLD")
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("THRESHOLD must be within [0, 1], got %v", threshold)
	}
	source := strings.ToLower(v.GetString("DATA_SOURCE"))
	switch source {
	case SourceDB, SourceCSV, SourceHTTP:
	default:
		return nil, fmt.Errorf("DATA_SOURCE must be one of db, csv, http, got %q", source)
	}

	var origins []string
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Port:            v.GetString("PORT"),
		DBUrl:           v.GetString("DB_URL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ModelPath:       v.GetString("MODEL_PATH"),
		TransformsPath:  v.GetString("TRANSFORMS_PATH"),
		Threshold:       threshold,
		ReferenceDate:   ref,
		DataSource:      source,
		DataDir:         v.GetString("DATA_DIR"),
		MockBaseURL:     v.GetString("MOCK_BASE_URL"),
		RescoreSchedule: v.GetString("RESCORE_SCHEDULE"),
		CORSOrigins:     origins,
	}, nil
}
