package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/urbanrisk/floodwatch/internal/cache"
	"github.com/urbanrisk/floodwatch/internal/domain"
)

// fakeWeatherAPI serves canned OpenWeatherMap responses and counts hits.
func fakeWeatherAPI(t *testing.T, rain1h float64) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("appid") == "" {
			http.Error(w, `{"message":"missing api key"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"main": {"temp": 27.5, "humidity": 88},
			"wind": {"speed": 5.0},
			"rain": {"1h": %v},
			"weather": [{"description": "heavy intensity rain"}]
		}`, rain1h)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"list": [
			{"rain": {"3h": 12.0}},
			{"rain": {"3h": 8.0}},
			{"rain": {}}
		]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testProvider(t *testing.T, baseURL string, c domain.Cache, clock clockwork.Clock) *Provider {
	t.Helper()
	return NewProvider(domain.WeatherConfig{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		CacheTTL:  10 * time.Minute,
		CacheSize: 64,
	}, c, clock)
}

func monsoonClock() clockwork.Clock {
	return clockwork.NewFakeClockAt(time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC))
}

func TestCurrentObservation(t *testing.T) {
	srv, _ := fakeWeatherAPI(t, 35.0)
	p := testProvider(t, srv.URL, nil, monsoonClock())

	obs, ward, err := p.Current(context.Background(), "A")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}

	if ward.Name != "Colaba" {
		t.Errorf("ward name = %q, want Colaba", ward.Name)
	}
	if obs.RainfallMM == nil || *obs.RainfallMM != 35.0 {
		t.Errorf("rainfall = %v, want 35", obs.RainfallMM)
	}
	// 35 current + 12 + 8 forecast
	if obs.Rainfall24hMM == nil || *obs.Rainfall24hMM != 55.0 {
		t.Errorf("24h rainfall = %v, want 55", obs.Rainfall24hMM)
	}
	if obs.TemperatureC == nil || *obs.TemperatureC != 27.5 {
		t.Errorf("temperature = %v, want 27.5", obs.TemperatureC)
	}
	if obs.WindSpeedKmh == nil || *obs.WindSpeedKmh != 18.0 {
		t.Errorf("wind = %v, want 18 km/h", obs.WindSpeedKmh)
	}
	if obs.Season != domain.SeasonMonsoon {
		t.Errorf("season = %q, want Monsoon", obs.Season)
	}
	if obs.TideLevelM == nil {
		t.Error("expected tide level")
	}
}

func TestUnknownWardUsesCityCenter(t *testing.T) {
	srv, _ := fakeWeatherAPI(t, 1.0)
	p := testProvider(t, srv.URL, nil, monsoonClock())

	_, ward, err := p.Current(context.Background(), "ZZZ")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ward.Name != "Ward ZZZ" {
		t.Errorf("ward name = %q, want Ward ZZZ", ward.Name)
	}
	if ward.Latitude != cityCenterLat || ward.Longitude != cityCenterLon {
		t.Errorf("coordinates = %v,%v, want city center", ward.Latitude, ward.Longitude)
	}
}

func TestObservationCache(t *testing.T) {
	srv, hits := fakeWeatherAPI(t, 10.0)
	lru := cache.NewLRUCache(64)
	defer lru.Close()

	p := testProvider(t, srv.URL, lru, monsoonClock())

	if _, _, err := p.Current(context.Background(), "A"); err != nil {
		t.Fatalf("first Current failed: %v", err)
	}
	first := hits.Load()
	if first == 0 {
		t.Fatal("expected at least one upstream request")
	}

	if _, _, err := p.Current(context.Background(), "A"); err != nil {
		t.Fatalf("second Current failed: %v", err)
	}
	if hits.Load() != first {
		t.Errorf("expected cached response, upstream hits went %d -> %d", first, hits.Load())
	}
}

func TestFallbackOnAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL, nil, monsoonClock())

	obs, _, err := p.Current(context.Background(), "A")
	if err != nil {
		t.Fatalf("Current should fall back, not fail: %v", err)
	}

	// Monsoon fallback: moderate rain, high humidity.
	if obs.RainfallMM == nil || *obs.RainfallMM != 5.0 {
		t.Errorf("fallback rainfall = %v, want 5", obs.RainfallMM)
	}
	if obs.HumidityPct == nil || *obs.HumidityPct != 85 {
		t.Errorf("fallback humidity = %v, want 85", obs.HumidityPct)
	}
	if obs.Season != domain.SeasonMonsoon {
		t.Errorf("fallback season = %q, want Monsoon", obs.Season)
	}
}

func TestNoAPIKeyServesFallback(t *testing.T) {
	winter := clockwork.NewFakeClockAt(time.Date(2024, time.January, 10, 6, 0, 0, 0, time.UTC))
	p := NewProvider(domain.WeatherConfig{}, nil, winter)

	obs, _, err := p.Current(context.Background(), "A")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if obs.Season != domain.SeasonWinter {
		t.Errorf("season = %q, want Winter", obs.Season)
	}
	if obs.TemperatureC == nil || *obs.TemperatureC != 22.0 {
		t.Errorf("temperature = %v, want 22", obs.TemperatureC)
	}
}

func TestWardsSortedAndComplete(t *testing.T) {
	p := NewProvider(domain.WeatherConfig{}, nil, monsoonClock())

	codes := p.Wards()
	if len(codes) != 24 {
		t.Fatalf("ward count = %d, want 24", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Errorf("codes not sorted: %q before %q", codes[i-1], codes[i])
		}
	}
}

func TestTideLevelDeterministicAndBounded(t *testing.T) {
	at := time.Date(2024, time.July, 15, 14, 30, 0, 0, time.UTC)
	if TideLevel(at) != TideLevel(at) {
		t.Error("tide level not deterministic")
	}

	for h := 0; h < 48; h++ {
		level := TideLevel(at.Add(time.Duration(h) * time.Hour))
		if level < 0 || level > 4.5 {
			t.Errorf("tide level %v out of plausible range at hour %d", level, h)
		}
	}
}

func TestSeasonFor(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.January, domain.SeasonWinter},
		{time.March, domain.SeasonSummer},
		{time.June, domain.SeasonMonsoon},
		{time.September, domain.SeasonMonsoon},
		{time.October, domain.SeasonSummer},
		{time.December, domain.SeasonWinter},
	}

	for _, tc := range cases {
		at := time.Date(2024, tc.month, 15, 12, 0, 0, 0, time.UTC)
		if got := SeasonFor(at); got != tc.want {
			t.Errorf("SeasonFor(%v) = %q, want %q", tc.month, got, tc.want)
		}
	}
}
