package services

import (
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"prometeo-backend/features"
)

// NewSource picks where raw tables are read from: db, csv (a directory of CSV files) or
// http (the mock data endpoints).
func NewSource(kind, dataDir, baseURL string, db *gorm.DB) (features.Source, error) {
	switch kind {
	case "db":
		if db == nil {
			return nil, fmt.Errorf("db source needs a database connection")
		}
		return DBSource{DB: db}, nil
	case "csv":
		return features.CSVDirSource{Dir: dataDir}, nil
	case "http":
		return features.HTTPSource{BaseURL: baseURL, Client: &http.Client{Timeout: 30 * time.Second}}, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", kind)
	}
}
