package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"testing"

	"github.com/urbanrisk/floodwatch/internal/alerts"
	"github.com/urbanrisk/floodwatch/internal/bus"
	"github.com/urbanrisk/floodwatch/internal/cache"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/repository"
)

func f(v float64) *float64 { return &v }

// stubProvider serves canned observations for a fixed ward set.
type stubProvider struct {
	observations map[string]*domain.Observation
}

func (p *stubProvider) Current(_ context.Context, wardCode string) (*domain.Observation, *domain.Ward, error) {
	obs, ok := p.observations[wardCode]
	if !ok {
		return nil, nil, fmt.Errorf("ward %q not covered", wardCode)
	}
	return obs, &domain.Ward{Code: wardCode, Name: wardCode}, nil
}

func (p *stubProvider) Wards() []string {
	codes := make([]string, 0, len(p.observations))
	for code := range p.observations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func syntheticCorpus() []*domain.HistoricalRecord {
	wards := []string{"COL", "AND", "DAD", "BOR"}
	seasons := []string{domain.SeasonMonsoon, domain.SeasonWinter, domain.SeasonSummer}

	var records []*domain.HistoricalRecord
	for wi, code := range wards {
		for i := 0; i < 30; i++ {
			rain := float64(5 + i*4 + wi*3)
			level := domain.RiskLow
			if rain > 40 {
				level = domain.RiskMedium
			}
			if rain > 80 {
				level = domain.RiskHigh
			}
			records = append(records, &domain.HistoricalRecord{
				WardCode:          code,
				WardName:          code,
				ElevationCategory: "Low",
				DrainageCategory:  "Poor",
				FloodOccurred:     rain > 60 && wi < 2,
				FloodRiskLevel:    level,
				Observation: domain.Observation{
					RainfallMM: f(rain),
					TideLevelM: f(1 + float64(i%5)),
					Season:     seasons[i%3],
				},
			})
		}
	}
	return records
}

func heavyRainObs() domain.Observation {
	return domain.Observation{
		RainfallMM: f(95),
		TideLevelM: f(4.5),
		Season:     domain.SeasonMonsoon,
	}
}

func testRepo(t *testing.T) domain.Repository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "floodwatch-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// createTestServer wires a server against a trained engine, a temp SQLite
// repository, an in-process bus, and a stub observation provider.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	eng := engine.New(domain.TrainingConfig{
		Seed:           42,
		TestFraction:   0.2,
		Epochs:         150,
		LearningRate:   0.3,
		Clusters:       4,
		FusionMode:     domain.FusionAuto,
		MinNetworkRows: 50,
		DefaultZone:    domain.ZoneMedium,
	})
	if _, err := eng.TrainAndSwap(syntheticCorpus()); err != nil {
		t.Fatalf("failed to train engine: %v", err)
	}

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })
	tracker := alerts.NewTracker(lru)

	alertEngine, err := alerts.NewEngine(tracker.Count, 4)
	if err != nil {
		t.Fatalf("failed to create alert engine: %v", err)
	}
	t.Cleanup(func() { alertEngine.Close() })
	if err := alertEngine.LoadRules(alerts.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	provider := &stubProvider{observations: map[string]*domain.Observation{
		"COL": {RainfallMM: f(95), TideLevelM: f(4.5), Season: domain.SeasonMonsoon},
		"AND": {RainfallMM: f(30), TideLevelM: f(2.1), Season: domain.SeasonMonsoon},
		"DAD": {RainfallMM: f(5), TideLevelM: f(1.2), Season: domain.SeasonWinter},
		"BOR": {RainfallMM: f(12), TideLevelM: f(1.8), Season: domain.SeasonSummer},
	}}

	return NewServer(cfg, testRepo(t), lru, eventBus, eng, alertEngine, tracker, provider, nil, "test-v1")
}

func TestAssessCustomEndpoint(t *testing.T) {
	server := createTestServer(t)

	obs := heavyRainObs()
	body, _ := json.Marshal(CustomAssessRequest{WardCode: "COL", Observation: obs})

	req := httptest.NewRequest(http.MethodPost, "/assess/custom", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AssessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	a := resp.Assessment
	if a == nil {
		t.Fatal("expected assessment in response")
	}
	if a.ID == "" {
		t.Error("expected assessment to carry an id")
	}
	if a.AssessedAt.IsZero() {
		t.Error("expected assessed_at to be set")
	}
	if a.WardCode != "COL" {
		t.Errorf("ward code = %q, want COL", a.WardCode)
	}
	if a.RainfallCategory != "High" {
		t.Errorf("rainfall category = %q, want High", a.RainfallCategory)
	}
	if a.ModelVersion == "" {
		t.Error("expected model version")
	}

	sum := a.RiskProbabilities.Low + a.RiskProbabilities.Medium + a.RiskProbabilities.High
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}

	// A 95mm monsoon deluge must raise at least one builtin alert.
	if len(resp.Alerts) == 0 {
		t.Error("expected at least one fired alert")
	}
	for _, alert := range resp.Alerts {
		if !alert.Fired {
			t.Errorf("response alert %s not fired", alert.RuleID)
		}
		if alert.AssessmentID != a.ID {
			t.Errorf("alert assessment id = %q, want %q", alert.AssessmentID, a.ID)
		}
	}

	// The assessment must be retrievable by ID afterwards.
	getReq := httptest.NewRequest(http.MethodGet, "/assessments/"+a.ID, nil)
	getRR := httptest.NewRecorder()
	server.Router().ServeHTTP(getRR, getReq)

	if getRR.Code != http.StatusOK {
		t.Fatalf("expected status 200 fetching assessment, got %d: %s", getRR.Code, getRR.Body.String())
	}

	var stored domain.Assessment
	if err := json.Unmarshal(getRR.Body.Bytes(), &stored); err != nil {
		t.Fatalf("failed to parse stored assessment: %v", err)
	}
	if stored.ID != a.ID || stored.WardCode != a.WardCode {
		t.Errorf("stored assessment mismatch: got %s/%s, want %s/%s", stored.ID, stored.WardCode, a.ID, a.WardCode)
	}
}

func TestAssessCustomValidation(t *testing.T) {
	server := createTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"MissingWardCode", `{"observation":{"rainfall_mm":10,"tide_level_m":1,"season":"Monsoon"}}`},
		{"MissingRainfall", `{"ward_code":"COL","observation":{"tide_level_m":1,"season":"Monsoon"}}`},
		{"UnseenSeason", `{"ward_code":"COL","observation":{"rainfall_mm":10,"tide_level_m":1,"season":"Autumn"}}`},
		{"MalformedJSON", `{"ward_code":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/assess/custom", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			server.Router().ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAssessWardEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/assess/ward/COL", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AssessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Assessment.WardCode != "COL" {
		t.Errorf("ward code = %q, want COL", resp.Assessment.WardCode)
	}

	// Ward outside the provider's coverage surfaces as an upstream failure.
	req = httptest.NewRequest(http.MethodPost, "/assess/ward/ZZZ", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502 for uncovered ward, got %d", rr.Code)
	}
}

func TestAssessAllWardsEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/assess/all-wards", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AllWardsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 4 {
		t.Errorf("count = %d, want 4", resp.Count)
	}
	if len(resp.Failed) != 0 {
		t.Errorf("unexpected failures: %v", resp.Failed)
	}

	version := resp.Assessments[0].ModelVersion
	for _, a := range resp.Assessments {
		if a.ModelVersion != version {
			t.Errorf("mixed model versions in one sweep: %q vs %q", a.ModelVersion, version)
		}
	}
}

func TestCurrentWeatherEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/weather/current/COL", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp WeatherResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Ward == nil || resp.Ward.Code != "COL" {
		t.Fatalf("ward = %+v, want code COL", resp.Ward)
	}
	if resp.Observation == nil || resp.Observation.RainfallMM == nil {
		t.Fatal("expected observation with rainfall")
	}
	if *resp.Observation.RainfallMM != 95 {
		t.Errorf("rainfall = %v, want 95", *resp.Observation.RainfallMM)
	}
	if resp.Observation.Season != domain.SeasonMonsoon {
		t.Errorf("season = %q, want %q", resp.Observation.Season, domain.SeasonMonsoon)
	}

	// Ward outside the provider's coverage surfaces as an upstream failure.
	req = httptest.NewRequest(http.MethodGet, "/weather/current/ZZZ", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502 for uncovered ward, got %d", rr.Code)
	}
}

func TestWardZonesEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/wards/zones", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Zones []domain.ClusterAssignment `json:"zones"`
		Count int                        `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 4 {
		t.Errorf("count = %d, want 4", resp.Count)
	}
	for _, z := range resp.Zones {
		if z.RiskZone == "" {
			t.Errorf("ward %s has empty risk zone", z.WardCode)
		}
	}
}

func TestModelInfoEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/models/info", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Version string                `json:"version"`
		Report  domain.TrainingReport `json:"report"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Version == "" {
		t.Error("expected model version")
	}
	if resp.Report.Records != 120 {
		t.Errorf("report records = %d, want 120", resp.Report.Records)
	}
}

func TestReadinessTracksTraining(t *testing.T) {
	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	eng := engine.New(domain.TrainingConfig{DefaultZone: domain.ZoneMedium})
	server := NewServer(cfg, nil, nil, nil, eng, nil, nil, nil, nil, "test-v1")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 before training, got %d", rr.Code)
	}

	// Assessing before training is a 503 too, not a 500.
	body, _ := json.Marshal(CustomAssessRequest{WardCode: "COL", Observation: heavyRainObs()})
	req = httptest.NewRequest(http.MethodPost, "/assess/custom", bytes.NewBuffer(body))
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 assessing untrained model, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", resp["status"])
	}
}

func TestTriggerRetrainEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/models/retrain", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAlertRuleLifecycle(t *testing.T) {
	server := createTestServer(t)

	rule := AlertRuleRequest{
		ID:         "test-heavy-rain",
		Name:       "Heavy Rain Watch",
		Expression: `rainfall_category == "High"`,
		Severity:   domain.SeverityWatch,
		Enabled:    true,
	}
	body, _ := json.Marshal(rule)

	req := httptest.NewRequest(http.MethodPost, "/alerts/rules", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// The new rule shows up in the engine immediately.
	req = httptest.NewRequest(http.MethodGet, "/alerts/rules/test-heavy-rain", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Update tightens it to monsoon only.
	rule.Expression = `rainfall_category == "High" && season == "Monsoon"`
	body, _ = json.Marshal(rule)
	req = httptest.NewRequest(http.MethodPut, "/alerts/rules/test-heavy-rain", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on update, got %d: %s", rr.Code, rr.Body.String())
	}

	// Reload rebuilds the engine from what the database holds.
	req = httptest.NewRequest(http.MethodPost, "/alerts/rules/reload", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on reload, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/alerts/rules/test-heavy-rain", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on delete, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/alerts/rules/test-heavy-rain", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on double delete, got %d", rr.Code)
	}
}

func TestCreateAlertRuleRejectsBadExpression(t *testing.T) {
	server := createTestServer(t)

	rule := AlertRuleRequest{
		ID:         "bad-rule",
		Name:       "Bad Rule",
		Expression: `rainfall_category ==`,
		Severity:   domain.SeverityWatch,
		Enabled:    true,
	}
	body, _ := json.Marshal(rule)

	req := httptest.NewRequest(http.MethodPost, "/alerts/rules", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
