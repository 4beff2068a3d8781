package db

import (
	"context"
	"fmt"
	"strings"

	"chest-xray-pipeline/models"
	"chest-xray-pipeline/utils"
)

// DBClient stores analysis run history
type DBClient interface {
	Close() error
	StoreRun(ctx context.Context, run *models.AnalysisRun) error
	GetRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error)
	GetRun(ctx context.Context, id string) (models.AnalysisRun, bool, error)
}

const (
	DefaultSQLitePath = "db/pipeline.sqlite3"
	DefaultMongoURI   = "mongodb://localhost:27017"
	DefaultMongoDB    = "xray_pipeline"
)

// NewDBClient opens the backend named by DB_TYPE (sqlite or mongo).
func NewDBClient(ctx context.Context) (DBClient, error) {
	dbType := strings.ToLower(utils.GetEnv("DB_TYPE", "sqlite"))

	switch dbType {
	case "mongo", "mongodb":
		return NewMongoClient(ctx, utils.GetEnv("MONGO_URI", DefaultMongoURI), utils.GetEnv("MONGO_DB", DefaultMongoDB))
	case "sqlite", "sqlite3":
		return NewSQLiteClient(utils.GetEnv("SQLITE_PATH", DefaultSQLitePath))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
