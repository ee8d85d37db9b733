package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Ward catalog
	SaveWard(ctx context.Context, ward *Ward) error
	GetWard(ctx context.Context, code string) (*Ward, error)
	ListWards(ctx context.Context) ([]*Ward, error)

	// Historical training corpus
	SaveHistoricalRecords(ctx context.Context, records []*HistoricalRecord) error
	ListHistoricalRecords(ctx context.Context) ([]*HistoricalRecord, error)
	CountHistoricalRecords(ctx context.Context) (int, error)

	// Assessment results
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)

	// Alert rule configuration
	SaveAlertRule(ctx context.Context, rule *AlertRule) error
	GetAlertRule(ctx context.Context, id string) (*AlertRule, error)
	ListAlertRules(ctx context.Context) ([]*AlertRule, error)
	DeleteAlertRule(ctx context.Context, id string) error

	// Versioned model artifact bundles (opaque to the repository)
	SaveModelArtifact(ctx context.Context, version string, bundle []byte) error
	GetModelArtifact(ctx context.Context, version string) ([]byte, error)
	GetLatestModelArtifact(ctx context.Context) (version string, bundle []byte, err error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
