package domain

import "time"

// Config holds the complete FloodWatch configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backend availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Weather    WeatherConfig    `json:"weather"`
	Training   TrainingConfig   `json:"training"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp
	Endpoint     string `json:"endpoint"`
}

// WeatherConfig holds observation-provider settings.
type WeatherConfig struct {
	APIKey    string        `json:"-"`
	BaseURL   string        `json:"baseUrl"`
	Timeout   time.Duration `json:"timeout"`
	CacheTTL  time.Duration `json:"cacheTtl"`
	CacheSize int           `json:"cacheSize"`
}

// FusionMode selects the probabilistic fusion backend.
type FusionMode string

const (
	// FusionAuto picks the network when the categorized corpus can support
	// it and falls back to the weighted combination otherwise.
	FusionAuto FusionMode = "auto"

	// FusionNetwork forces the conditional-probability network.
	FusionNetwork FusionMode = "network"

	// FusionFallback forces the deterministic weighted combination.
	FusionFallback FusionMode = "fallback"
)

// TrainingConfig holds the knobs for the training pipeline. Seeded values
// keep retrains reproducible.
type TrainingConfig struct {
	Seed         int64      `json:"seed"`
	TestFraction float64    `json:"testFraction"`
	Epochs       int        `json:"epochs"`
	LearningRate float64    `json:"learningRate"`
	Clusters     int        `json:"clusters"`
	FusionMode   FusionMode `json:"fusionMode"`

	// MinNetworkRows is the smallest categorized corpus the CPT network
	// will be fitted on under FusionAuto.
	MinNetworkRows int `json:"minNetworkRows"`

	// DefaultZone is returned for wards unknown to the trained zoning model.
	DefaultZone string `json:"defaultZone"`

	// RetrainInterval enables periodic background retraining when > 0.
	RetrainInterval time.Duration `json:"retrainInterval"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-memory cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./floodwatch.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Weather: WeatherConfig{
			BaseURL:   "https://api.openweathermap.org/data/2.5",
			Timeout:   10 * time.Second,
			CacheTTL:  10 * time.Minute,
			CacheSize: 256,
		},
		Training: TrainingConfig{
			Seed:           42,
			TestFraction:   0.2,
			Epochs:         500,
			LearningRate:   0.1,
			Clusters:       4,
			FusionMode:     FusionAuto,
			MinNetworkRows: 50,
			DefaultZone:    ZoneMedium,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "floodwatch",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "floodwatch",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
