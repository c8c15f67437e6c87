package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Hard ceilings for the per-request knobs. Configured caps may be lower but
// never higher.
const (
	MaxGeocodeCeiling  = 200
	ConcurrencyCeiling = 5
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Premium provider (token-authenticated).
	AppleEnabled      bool
	AppleTeamID       string
	AppleKeyID        string
	ApplePrivateKey   string // PEM-encoded P-256 key
	AppleTimeout      time.Duration
	AppleTokenTimeout time.Duration

	// Government geocoder.
	CensusEnabled bool
	CensusTimeout time.Duration

	// Community geocoder.
	NominatimEnabled   bool
	NominatimTimeout   time.Duration
	NominatimUserAgent string
	NominatimMaxRPS    float64 // 0 disables the client-side limiter

	Jurisdiction string

	// Layered cache.
	MemoryCacheTTL     time.Duration
	MemoryCacheSize    int
	EdgeCacheTTL       time.Duration
	RedisURL           string
	RemoteCacheURL     string
	RemoteCacheToken   string
	RemoteCacheTimeout time.Duration
	CacheWriteTimeout  time.Duration

	// Batch orchestrator.
	DefaultMaxGeocode  int
	MaxGeocodeCap      int
	DefaultConcurrency int
	ConcurrencyCap     int

	// Optional Kafka ingestion pipeline.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		AppleTeamID:     os.Getenv("APPLE_TEAM_ID"),
		AppleKeyID:      os.Getenv("APPLE_KEY_ID"),
		ApplePrivateKey: os.Getenv("APPLE_PRIVATE_KEY"),

		CensusEnabled:      parseBool("CENSUS_ENABLED", true),
		NominatimEnabled:   parseBool("NOMINATIM_ENABLED", true),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "incident-geocode-service/1.0"),
		Jurisdiction:       sharedcfg.EnvOrDefault("GEOCODE_JURISDICTION", "Riverside County, CA"),

		RedisURL:         os.Getenv("REDIS_URL"),
		RemoteCacheURL:   strings.TrimRight(os.Getenv("REMOTE_CACHE_URL"), "/"),
		RemoteCacheToken: os.Getenv("REMOTE_CACHE_TOKEN"),
		MemoryCacheSize:  parsePositiveInt("MEMORY_CACHE_SIZE", 10000),

		KafkaEnabled:       parseBool("KAFKA_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-incidents"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geocoded-incidents"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "incident-geocoder"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"APPLE_TIMEOUT", "5s", &cfg.AppleTimeout},
		{"APPLE_TOKEN_TIMEOUT", "2s", &cfg.AppleTokenTimeout},
		{"CENSUS_TIMEOUT", "8s", &cfg.CensusTimeout},
		{"NOMINATIM_TIMEOUT", "8s", &cfg.NominatimTimeout},
		{"MEMORY_CACHE_TTL", "72h", &cfg.MemoryCacheTTL},
		{"EDGE_CACHE_TTL", "336h", &cfg.EdgeCacheTTL},
		{"REMOTE_CACHE_TIMEOUT", "2s", &cfg.RemoteCacheTimeout},
		{"CACHE_WRITE_TIMEOUT", "3s", &cfg.CacheWriteTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.name, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg.AppleEnabled = cfg.AppleTeamID != "" && cfg.AppleKeyID != "" && cfg.ApplePrivateKey != ""
	if v := os.Getenv("APPLE_ENABLED"); v != "" {
		cfg.AppleEnabled = v == "true"
	}

	if err := cfg.loadBatchLimits(); err != nil {
		return nil, err
	}

	rps, err := parseNonNegativeFloat("NOMINATIM_MAX_RPS", 0)
	if err != nil {
		return nil, err
	}
	cfg.NominatimMaxRPS = rps

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadBatchLimits() error {
	var err error
	if c.MaxGeocodeCap, err = parseBoundedInt("GEOCODE_MAX_CAP", MaxGeocodeCeiling, 0, MaxGeocodeCeiling); err != nil {
		return err
	}
	if c.DefaultMaxGeocode, err = parseBoundedInt("GEOCODE_MAX_DEFAULT", 100, 0, MaxGeocodeCeiling); err != nil {
		return err
	}
	if c.ConcurrencyCap, err = parseBoundedInt("GEOCODE_CONCURRENCY_CAP", ConcurrencyCeiling, 1, ConcurrencyCeiling); err != nil {
		return err
	}
	if c.DefaultConcurrency, err = parseBoundedInt("GEOCODE_CONCURRENCY_DEFAULT", 3, 1, ConcurrencyCeiling); err != nil {
		return err
	}
	c.DefaultMaxGeocode = min(c.DefaultMaxGeocode, c.MaxGeocodeCap)
	c.DefaultConcurrency = min(c.DefaultConcurrency, c.ConcurrencyCap)
	return nil
}

func (c *Config) validate() error {
	if c.AppleEnabled && (c.AppleTeamID == "" || c.AppleKeyID == "" || c.ApplePrivateKey == "") {
		return errors.New("APPLE_ENABLED is true but APPLE_TEAM_ID, APPLE_KEY_ID, or APPLE_PRIVATE_KEY is not set")
	}
	if c.NominatimEnabled && c.NominatimUserAgent == "" {
		return errors.New("NOMINATIM_USER_AGENT is required when NOMINATIM_ENABLED is true")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseBool(name string, def bool) bool {
	if v := os.Getenv(name); v != "" {
		return v == "true"
	}
	return def
}

func parsePositiveInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseBoundedInt(name string, def, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", name, lo, hi)
	}
	return n, nil
}

func parseNonNegativeFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return f, nil
}
