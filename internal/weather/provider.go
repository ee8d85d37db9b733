package weather

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Provider implements domain.ObservationProvider over the OpenWeatherMap
// client. Responses are cached per ward so a sweep over all wards does not
// hammer the upstream API, and a failed fetch falls back to seasonal
// typical conditions.
type Provider struct {
	client   *Client
	wards    map[string]domain.Ward
	codes    []string
	cache    domain.Cache
	cacheTTL time.Duration
	clock    clockwork.Clock
}

// NewProvider creates a provider for the Mumbai ward catalog. An empty API
// key disables the upstream client entirely; the provider then serves
// fallback conditions, which keeps the service usable offline.
func NewProvider(cfg domain.WeatherConfig, cache domain.Cache, clock clockwork.Clock) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var client *Client
	if cfg.APIKey != "" {
		client = NewClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	} else {
		slog.Warn("no weather API key configured, serving seasonal fallback conditions")
	}

	wards := MumbaiWards()
	return &Provider{
		client:   client,
		wards:    wards,
		codes:    sortedCodes(wards),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		clock:    clock,
	}
}

// Wards lists the ward codes in the catalog, sorted.
func (p *Provider) Wards() []string {
	return p.codes
}

// Current returns the live observation for the ward. Wards outside the
// catalog are served from the city-center coordinates so an assessment for
// a new ward code still works.
func (p *Provider) Current(ctx context.Context, wardCode string) (*domain.Observation, *domain.Ward, error) {
	ward, ok := p.wards[wardCode]
	if !ok {
		ward = domain.Ward{
			Code:      wardCode,
			Name:      "Ward " + wardCode,
			Latitude:  cityCenterLat,
			Longitude: cityCenterLon,
		}
	}

	if obs := p.cached(ctx, wardCode); obs != nil {
		return obs, &ward, nil
	}

	obs := p.observe(ctx, ward)
	p.store(ctx, wardCode, obs)
	return obs, &ward, nil
}

func (p *Provider) observe(ctx context.Context, ward domain.Ward) *domain.Observation {
	now := p.clock.Now()
	tide := TideLevel(now)

	if p.client == nil {
		return p.fallback(now, tide)
	}

	cond, err := p.client.CurrentWeather(ctx, ward.Latitude, ward.Longitude)
	if err != nil {
		slog.Warn("weather fetch failed, using fallback conditions",
			"ward", ward.Code, "error", err)
		return p.fallback(now, tide)
	}

	rain24h, err := p.client.Rainfall24h(ctx, ward.Latitude, ward.Longitude, cond.RainfallMM)
	if err != nil {
		slog.Warn("forecast fetch failed, using current rainfall for 24h figure",
			"ward", ward.Code, "error", err)
		rain24h = cond.RainfallMM
	}

	return &domain.Observation{
		RainfallMM:    ptr(cond.RainfallMM),
		Rainfall24hMM: ptr(rain24h),
		TideLevelM:    ptr(tide),
		TemperatureC:  ptr(cond.TemperatureC),
		HumidityPct:   ptr(cond.HumidityPct),
		WindSpeedKmh:  ptr(cond.WindSpeedKmh),
		Season:        SeasonFor(now),
		ObservedAt:    now.UTC(),
	}
}

// fallback returns typical conditions for the current season, mirroring
// what the city sees when the upstream API is down.
func (p *Provider) fallback(now time.Time, tide float64) *domain.Observation {
	season := SeasonFor(now)

	var rain, temp, humidity float64
	switch season {
	case domain.SeasonMonsoon:
		rain, temp, humidity = 5.0, 28.0, 85
	case domain.SeasonWinter:
		rain, temp, humidity = 0.0, 22.0, 60
	default:
		rain, temp, humidity = 0.0, 32.0, 70
	}

	return &domain.Observation{
		RainfallMM:    ptr(rain),
		Rainfall24hMM: ptr(rain),
		TideLevelM:    ptr(tide),
		TemperatureC:  ptr(temp),
		HumidityPct:   ptr(humidity),
		WindSpeedKmh:  ptr(15.0),
		Season:        season,
		ObservedAt:    now.UTC(),
	}
}

func (p *Provider) cached(ctx context.Context, wardCode string) *domain.Observation {
	if p.cache == nil || p.cacheTTL <= 0 {
		return nil
	}

	data, err := p.cache.Get(ctx, obsKey(wardCode))
	if err != nil || data == nil {
		return nil
	}

	var obs domain.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil
	}
	return &obs
}

func (p *Provider) store(ctx context.Context, wardCode string, obs *domain.Observation) {
	if p.cache == nil || p.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, obsKey(wardCode), data, p.cacheTTL); err != nil {
		slog.Warn("failed to cache observation", "ward", wardCode, "error", err)
	}
}

func obsKey(wardCode string) string {
	return "weather:obs:" + wardCode
}

func ptr(v float64) *float64 { return &v }
