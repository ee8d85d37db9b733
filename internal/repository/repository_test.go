package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestSQLiteRepository(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "floodwatch-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetWard", func(t *testing.T) {
		ward := &domain.Ward{
			Code:              "COL",
			Name:              "Colaba",
			Latitude:          18.9067,
			Longitude:         72.8147,
			ElevationCategory: "Low",
			DrainageCategory:  "Poor",
			DensityCategory:   "High",
		}
		if err := repo.SaveWard(ctx, ward); err != nil {
			t.Fatalf("SaveWard failed: %v", err)
		}

		retrieved, err := repo.GetWard(ctx, "COL")
		if err != nil {
			t.Fatalf("GetWard failed: %v", err)
		}
		if retrieved.Name != "Colaba" || retrieved.DrainageCategory != "Poor" {
			t.Errorf("retrieved ward does not match: %+v", retrieved)
		}

		// Upsert overwrites
		ward.DrainageCategory = "Moderate"
		if err := repo.SaveWard(ctx, ward); err != nil {
			t.Fatalf("SaveWard upsert failed: %v", err)
		}
		retrieved, _ = repo.GetWard(ctx, "COL")
		if retrieved.DrainageCategory != "Moderate" {
			t.Errorf("upsert did not overwrite, got %q", retrieved.DrainageCategory)
		}
	})

	t.Run("GetWardNotFound", func(t *testing.T) {
		if _, err := repo.GetWard(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("HistoricalRecords", func(t *testing.T) {
		records := []*domain.HistoricalRecord{
			{
				WardCode:          "COL",
				WardName:          "Colaba",
				ElevationCategory: "Low",
				DrainageCategory:  "Poor",
				FloodOccurred:     true,
				FloodRiskLevel:    2,
				Observation: domain.Observation{
					RainfallMM: f(85.5),
					TideLevelM: f(4.2),
					Season:     domain.SeasonMonsoon,
					ObservedAt: time.Date(2023, 7, 14, 6, 0, 0, 0, time.UTC),
				},
			},
			{
				WardCode:       "AND",
				WardName:       "Andheri",
				FloodRiskLevel: 0,
				Observation: domain.Observation{
					RainfallMM: f(4),
					TideLevelM: f(1.5),
					Season:     domain.SeasonWinter,
				},
			},
		}
		if err := repo.SaveHistoricalRecords(ctx, records); err != nil {
			t.Fatalf("SaveHistoricalRecords failed: %v", err)
		}

		count, err := repo.CountHistoricalRecords(ctx)
		if err != nil {
			t.Fatalf("CountHistoricalRecords failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 records, got %d", count)
		}

		listed, err := repo.ListHistoricalRecords(ctx)
		if err != nil {
			t.Fatalf("ListHistoricalRecords failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 records, got %d", len(listed))
		}

		// Ordered by ward code: AND first.
		and := listed[0]
		if and.WardCode != "AND" {
			t.Fatalf("expected AND first, got %s", and.WardCode)
		}
		if and.Observation.TemperatureC != nil {
			t.Error("expected missing temperature to stay nil")
		}
		col := listed[1]
		if !col.FloodOccurred || col.FloodRiskLevel != 2 {
			t.Errorf("flood outcome lost: %+v", col)
		}
		if col.Observation.RainfallMM == nil || *col.Observation.RainfallMM != 85.5 {
			t.Errorf("rainfall lost: %+v", col.Observation.RainfallMM)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		a := &domain.Assessment{
			ID:                "as-001",
			WardCode:          "COL",
			WardRiskZone:      domain.ZoneVeryHigh,
			RiskLevel:         2,
			WillFlood:         true,
			RiskProbabilities: domain.RiskProbabilities{Low: 0.1, Medium: 0.2, High: 0.7},
			FloodProbability:  0.81,
			FusionMode:        "network",
			CombinedHighRisk:  true,
			ConfidenceLevel:   domain.ConfidenceMedium,
			ConfidenceScore:   0.755,
			RainfallCategory:  "High",
			TideCategory:      "High",
			Season:            domain.SeasonMonsoon,
			ModelVersion:      "v1",
			AssessedAt:        time.Now().UTC(),
		}
		if err := repo.SaveAssessment(ctx, a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		retrieved, err := repo.GetAssessment(ctx, "as-001")
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if retrieved.WardRiskZone != domain.ZoneVeryHigh {
			t.Errorf("expected zone %q, got %q", domain.ZoneVeryHigh, retrieved.WardRiskZone)
		}
		if !retrieved.CombinedHighRisk || !retrieved.WillFlood {
			t.Errorf("boolean flags lost: %+v", retrieved)
		}
		if retrieved.RiskProbabilities.High != 0.7 {
			t.Errorf("probabilities lost: %+v", retrieved.RiskProbabilities)
		}
	})

	t.Run("AlertRuleCRUD", func(t *testing.T) {
		rule := &domain.AlertRule{
			ID:         "rule-001",
			Name:       "High Probability",
			Expression: "flood_probability > 0.7",
			Severity:   domain.SeverityWarning,
			Enabled:    true,
		}
		if err := repo.SaveAlertRule(ctx, rule); err != nil {
			t.Fatalf("SaveAlertRule failed: %v", err)
		}

		retrieved, err := repo.GetAlertRule(ctx, "rule-001")
		if err != nil {
			t.Fatalf("GetAlertRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression || !retrieved.Enabled {
			t.Errorf("retrieved rule does not match: %+v", retrieved)
		}

		rules, err := repo.ListAlertRules(ctx)
		if err != nil {
			t.Fatalf("ListAlertRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}

		if err := repo.DeleteAlertRule(ctx, "rule-001"); err != nil {
			t.Fatalf("DeleteAlertRule failed: %v", err)
		}
		if err := repo.DeleteAlertRule(ctx, "rule-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("ModelArtifacts", func(t *testing.T) {
		if err := repo.SaveModelArtifact(ctx, "v1", []byte(`{"version":"v1"}`)); err != nil {
			t.Fatalf("SaveModelArtifact failed: %v", err)
		}
		if err := repo.SaveModelArtifact(ctx, "v2", []byte(`{"version":"v2"}`)); err != nil {
			t.Fatalf("SaveModelArtifact failed: %v", err)
		}

		bundle, err := repo.GetModelArtifact(ctx, "v1")
		if err != nil {
			t.Fatalf("GetModelArtifact failed: %v", err)
		}
		if string(bundle) != `{"version":"v1"}` {
			t.Errorf("bundle corrupted: %s", bundle)
		}

		version, latest, err := repo.GetLatestModelArtifact(ctx)
		if err != nil {
			t.Fatalf("GetLatestModelArtifact failed: %v", err)
		}
		if version != "v2" || string(latest) != `{"version":"v2"}` {
			t.Errorf("expected latest v2, got %s: %s", version, latest)
		}

		if _, err := repo.GetModelArtifact(ctx, "v9"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}
