// Package weather supplies live observations for wards. It combines an
// OpenWeatherMap client, a harmonic tide estimator, and a ward coordinate
// catalog into a domain.ObservationProvider. When the upstream API is
// unreachable it degrades to seasonal typical conditions rather than
// failing the assessment.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client fetches current conditions and short-range forecasts from the
// OpenWeatherMap API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an OpenWeatherMap client.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Conditions is the subset of an OpenWeatherMap reading the models consume.
type Conditions struct {
	RainfallMM   float64
	TemperatureC float64
	HumidityPct  float64
	WindSpeedKmh float64
	Description  string
}

// CurrentWeather returns the current conditions at the coordinates. Rainfall
// is the last hour's accumulation in millimeters; wind is converted from
// m/s to km/h.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*Conditions, error) {
	var resp currentResponse
	if err := c.get(ctx, "/weather", lat, lon, &resp); err != nil {
		return nil, err
	}

	return &Conditions{
		RainfallMM:   resp.Rain.OneHour,
		TemperatureC: resp.Main.Temp,
		HumidityPct:  resp.Main.Humidity,
		WindSpeedKmh: roundTo(resp.Wind.Speed*3.6, 2),
		Description:  resp.description(),
	}, nil
}

// Rainfall24h approximates the 24-hour rainfall as the current accumulation
// plus the forecast sum over the next eight 3-hour slots.
func (c *Client) Rainfall24h(ctx context.Context, lat, lon float64, currentRain float64) (float64, error) {
	var resp forecastResponse
	if err := c.get(ctx, "/forecast", lat, lon, &resp); err != nil {
		return 0, err
	}

	total := currentRain
	slots := resp.List
	if len(slots) > 8 {
		slots = slots[:8]
	}
	for _, item := range slots {
		total += item.Rain.ThreeHour
	}
	return roundTo(total, 2), nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, out any) error {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 4, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 4, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}

// OpenWeatherMap API response types.

type currentResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

func (r *currentResponse) description() string {
	if len(r.Weather) == 0 {
		return ""
	}
	return r.Weather[0].Description
}

type forecastResponse struct {
	List []struct {
		Rain struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}
