package repository

// Schema definitions for the FloodWatch database.
// Compatible with both SQLite and PostgreSQL.

const schemaWards = `
CREATE TABLE IF NOT EXISTS wards (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    latitude REAL NOT NULL DEFAULT 0,
    longitude REAL NOT NULL DEFAULT 0,
    elevation_category TEXT,
    drainage_category TEXT,
    density_category TEXT
);
`

const schemaHistoricalRecords = `
CREATE TABLE IF NOT EXISTS historical_records (
    id TEXT PRIMARY KEY,
    ward_code TEXT NOT NULL,
    ward_name TEXT,
    rainfall_mm REAL,
    rainfall_24hr_mm REAL,
    tide_level_m REAL,
    temperature_c REAL,
    humidity_pct REAL,
    wind_speed_kmh REAL,
    season TEXT NOT NULL,
    observed_at TIMESTAMP,
    elevation_category TEXT,
    drainage_category TEXT,
    density_category TEXT,
    flood_occurred INTEGER NOT NULL DEFAULT 0,
    flood_risk_level INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_historical_ward ON historical_records(ward_code);
CREATE INDEX IF NOT EXISTS idx_historical_season ON historical_records(season);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    ward_code TEXT NOT NULL,
    ward_risk_zone TEXT NOT NULL,
    risk_level INTEGER NOT NULL,
    will_flood INTEGER NOT NULL,
    prob_low REAL NOT NULL,
    prob_medium REAL NOT NULL,
    prob_high REAL NOT NULL,
    flood_probability REAL NOT NULL,
    fusion_mode TEXT NOT NULL,
    combined_high_risk INTEGER NOT NULL,
    confidence_level TEXT NOT NULL,
    confidence_score REAL NOT NULL,
    rainfall_category TEXT NOT NULL,
    tide_category TEXT NOT NULL,
    season TEXT NOT NULL,
    model_version TEXT NOT NULL,
    assessed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_ward ON assessments(ward_code);
CREATE INDEX IF NOT EXISTS idx_assessments_time ON assessments(assessed_at);
`

const schemaAlertRules = `
CREATE TABLE IF NOT EXISTS alert_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    threshold REAL NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaModelArtifacts = `
CREATE TABLE IF NOT EXISTS model_artifacts (
    version TEXT PRIMARY KEY,
    bundle BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_artifacts_time ON model_artifacts(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaWards,
		schemaHistoricalRecords,
		schemaAssessments,
		schemaAlertRules,
		schemaModelArtifacts,
	}
}
