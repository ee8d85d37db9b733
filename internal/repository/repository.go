// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urbanrisk/floodwatch/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveWard upserts a ward catalog entry.
func (r *SQLRepository) SaveWard(ctx context.Context, ward *domain.Ward) error {
	if ward == nil || ward.Code == "" {
		return fmt.Errorf("%w: ward code is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO wards (
			code, name, latitude, longitude,
			elevation_category, drainage_category, density_category
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_category = excluded.elevation_category,
			drainage_category = excluded.drainage_category,
			density_category = excluded.density_category
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ward.Code, ward.Name, ward.Latitude, ward.Longitude,
		ward.ElevationCategory, ward.DrainageCategory, ward.DensityCategory,
	)
	return err
}

// GetWard retrieves a ward by code.
func (r *SQLRepository) GetWard(ctx context.Context, code string) (*domain.Ward, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: ward code is required", ErrInvalidInput)
	}

	query := `
		SELECT code, name, latitude, longitude,
			   elevation_category, drainage_category, density_category
		FROM wards
		WHERE code = ?
	`

	var w domain.Ward
	err := r.db.QueryRowContext(ctx, r.rebind(query), code).Scan(
		&w.Code, &w.Name, &w.Latitude, &w.Longitude,
		&w.ElevationCategory, &w.DrainageCategory, &w.DensityCategory,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWards returns every ward ordered by code.
func (r *SQLRepository) ListWards(ctx context.Context) ([]*domain.Ward, error) {
	query := `
		SELECT code, name, latitude, longitude,
			   elevation_category, drainage_category, density_category
		FROM wards
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []*domain.Ward
	for rows.Next() {
		var w domain.Ward
		if err := rows.Scan(
			&w.Code, &w.Name, &w.Latitude, &w.Longitude,
			&w.ElevationCategory, &w.DrainageCategory, &w.DensityCategory,
		); err != nil {
			return nil, err
		}
		wards = append(wards, &w)
	}
	return wards, rows.Err()
}

// SaveHistoricalRecords stores a batch of corpus rows in one transaction.
func (r *SQLRepository) SaveHistoricalRecords(ctx context.Context, records []*domain.HistoricalRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO historical_records (
			id, ward_code, ward_name,
			rainfall_mm, rainfall_24hr_mm, tide_level_m,
			temperature_c, humidity_pct, wind_speed_kmh,
			season, observed_at,
			elevation_category, drainage_category, density_category,
			flood_occurred, flood_risk_level
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.WardCode == "" {
			return fmt.Errorf("%w: historical record has no ward code", ErrInvalidInput)
		}
		var observedAt any
		if !rec.Observation.ObservedAt.IsZero() {
			observedAt = rec.Observation.ObservedAt
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.WardCode, rec.WardName,
			rec.Observation.RainfallMM, rec.Observation.Rainfall24hMM, rec.Observation.TideLevelM,
			rec.Observation.TemperatureC, rec.Observation.HumidityPct, rec.Observation.WindSpeedKmh,
			rec.Observation.Season, observedAt,
			rec.ElevationCategory, rec.DrainageCategory, rec.DensityCategory,
			boolToInt(rec.FloodOccurred), rec.FloodRiskLevel,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListHistoricalRecords returns the full training corpus.
func (r *SQLRepository) ListHistoricalRecords(ctx context.Context) ([]*domain.HistoricalRecord, error) {
	query := `
		SELECT ward_code, ward_name,
			   rainfall_mm, rainfall_24hr_mm, tide_level_m,
			   temperature_c, humidity_pct, wind_speed_kmh,
			   season, observed_at,
			   elevation_category, drainage_category, density_category,
			   flood_occurred, flood_risk_level
		FROM historical_records
		ORDER BY ward_code, observed_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.HistoricalRecord
	for rows.Next() {
		var rec domain.HistoricalRecord
		var (
			rain, rain24, tide, temp, humidity, wind sql.NullFloat64
			observedAt                                sql.NullTime
			flooded                                   int
		)
		if err := rows.Scan(
			&rec.WardCode, &rec.WardName,
			&rain, &rain24, &tide,
			&temp, &humidity, &wind,
			&rec.Observation.Season, &observedAt,
			&rec.ElevationCategory, &rec.DrainageCategory, &rec.DensityCategory,
			&flooded, &rec.FloodRiskLevel,
		); err != nil {
			return nil, err
		}
		rec.Observation.RainfallMM = nullableFloat(rain)
		rec.Observation.Rainfall24hMM = nullableFloat(rain24)
		rec.Observation.TideLevelM = nullableFloat(tide)
		rec.Observation.TemperatureC = nullableFloat(temp)
		rec.Observation.HumidityPct = nullableFloat(humidity)
		rec.Observation.WindSpeedKmh = nullableFloat(wind)
		if observedAt.Valid {
			rec.Observation.ObservedAt = observedAt.Time
		}
		rec.FloodOccurred = flooded == 1
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountHistoricalRecords returns the corpus size.
func (r *SQLRepository) CountHistoricalRecords(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_records`).Scan(&count)
	return count, err
}

// SaveAssessment stores one assessment result.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO assessments (
			id, ward_code, ward_risk_zone, risk_level, will_flood,
			prob_low, prob_medium, prob_high,
			flood_probability, fusion_mode, combined_high_risk,
			confidence_level, confidence_score,
			rainfall_category, tide_category, season,
			model_version, assessed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.WardCode, a.WardRiskZone, a.RiskLevel, boolToInt(a.WillFlood),
		a.RiskProbabilities.Low, a.RiskProbabilities.Medium, a.RiskProbabilities.High,
		a.FloodProbability, a.FusionMode, boolToInt(a.CombinedHighRisk),
		a.ConfidenceLevel, a.ConfidenceScore,
		a.RainfallCategory, a.TideCategory, a.Season,
		a.ModelVersion, a.AssessedAt,
	)
	return err
}

// GetAssessment retrieves an assessment by id.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, ward_code, ward_risk_zone, risk_level, will_flood,
			   prob_low, prob_medium, prob_high,
			   flood_probability, fusion_mode, combined_high_risk,
			   confidence_level, confidence_score,
			   rainfall_category, tide_category, season,
			   model_version, assessed_at
		FROM assessments
		WHERE id = ?
	`

	var a domain.Assessment
	var willFlood, combined int
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.WardCode, &a.WardRiskZone, &a.RiskLevel, &willFlood,
		&a.RiskProbabilities.Low, &a.RiskProbabilities.Medium, &a.RiskProbabilities.High,
		&a.FloodProbability, &a.FusionMode, &combined,
		&a.ConfidenceLevel, &a.ConfidenceScore,
		&a.RainfallCategory, &a.TideCategory, &a.Season,
		&a.ModelVersion, &a.AssessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.WillFlood = willFlood == 1
	a.CombinedHighRisk = combined == 1
	return &a, nil
}

// SaveAlertRule upserts an alert rule.
func (r *SQLRepository) SaveAlertRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: alert rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO alert_rules (
			id, name, description, expression, severity, threshold, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			threshold = excluded.threshold,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Severity, rule.Threshold, boolToInt(rule.Enabled),
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetAlertRule retrieves an alert rule by id.
func (r *SQLRepository) GetAlertRule(ctx context.Context, id string) (*domain.AlertRule, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: alert rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, expression, severity, threshold, enabled, created_at, updated_at
		FROM alert_rules
		WHERE id = ?
	`

	var rule domain.AlertRule
	var enabled int
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
		&rule.Severity, &rule.Threshold, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListAlertRules returns every alert rule ordered by name.
func (r *SQLRepository) ListAlertRules(ctx context.Context) ([]*domain.AlertRule, error) {
	query := `
		SELECT id, name, description, expression, severity, threshold, enabled, created_at, updated_at
		FROM alert_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AlertRule
	for rows.Next() {
		var rule domain.AlertRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&rule.Severity, &rule.Threshold, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// DeleteAlertRule removes an alert rule.
func (r *SQLRepository) DeleteAlertRule(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: alert rule id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM alert_rules WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveModelArtifact stores a versioned model bundle. Bundles are immutable,
// so saving an existing version is rejected.
func (r *SQLRepository) SaveModelArtifact(ctx context.Context, version string, bundle []byte) error {
	if version == "" || len(bundle) == 0 {
		return fmt.Errorf("%w: version and bundle are required", ErrInvalidInput)
	}

	query := `INSERT INTO model_artifacts (version, bundle, created_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query), version, bundle, time.Now().UTC())
	return err
}

// GetModelArtifact retrieves a bundle by version.
func (r *SQLRepository) GetModelArtifact(ctx context.Context, version string) ([]byte, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidInput)
	}

	var bundle []byte
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT bundle FROM model_artifacts WHERE version = ?`), version).Scan(&bundle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// GetLatestModelArtifact retrieves the most recently stored bundle.
func (r *SQLRepository) GetLatestModelArtifact(ctx context.Context) (string, []byte, error) {
	var version string
	var bundle []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT version, bundle
		FROM model_artifacts
		ORDER BY created_at DESC, version DESC
		LIMIT 1
	`).Scan(&version, &bundle)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	return version, bundle, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
