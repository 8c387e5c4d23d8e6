// Package config loads and holds process-lifetime configuration for the
// orderbook streamer: viper-backed, env-overridable, defaults set up front.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// UniverseEntry is one row of the pre-declared market universe.
type UniverseEntry struct {
	MarketID uint16 `mapstructure:"market_id"`
	Symbol   string `mapstructure:"symbol"`
}

// Config is the complete, immutable-after-load process configuration.
type Config struct {
	GRPC struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"grpc"`

	Metrics struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Ingest struct {
		// Path to a line-delimited ingress file/fifo; "-" or empty reads
		// from stdin.
		Path string `mapstructure:"path"`
	} `mapstructure:"ingest"`

	Dispatch struct {
		PoolSize int `mapstructure:"pool_size"`
	} `mapstructure:"dispatch"`

	Depth struct {
		Default int `mapstructure:"default"`
		Max     int `mapstructure:"max"`
	} `mapstructure:"depth"`

	Broadcast struct {
		Capacity       int `mapstructure:"capacity"`
		SubscriberSize int `mapstructure:"subscriber_channel_size"`
	} `mapstructure:"broadcast"`

	CircuitBreaker struct {
		ErrorThreshold int           `mapstructure:"error_threshold"`
		ErrorWindow    time.Duration `mapstructure:"error_window"`
		CooldownPeriod time.Duration `mapstructure:"cooldown_period"`
		LogSampleRate  int           `mapstructure:"log_sample_rate"`
		RingBufferSize int           `mapstructure:"ring_buffer_size"`
	} `mapstructure:"circuit_breaker"`

	Validator struct {
		MaxPrice float64 `mapstructure:"max_price"`
		MaxSize  float64 `mapstructure:"max_size"`
	} `mapstructure:"validator"`

	Auth struct {
		RequireAuth bool     `mapstructure:"require_auth"`
		APIKeys     []string `mapstructure:"api_keys"`
		JWTKey      string   `mapstructure:"jwt_key"`
	} `mapstructure:"auth"`

	TLS struct {
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
		CAFile   string `mapstructure:"ca_file"`
	} `mapstructure:"tls"`

	Risk struct {
		DistanceWeight  float64 `mapstructure:"distance_weight"`
		SlippageWeight  float64 `mapstructure:"slippage_weight"`
		MidPriceCacheMs int     `mapstructure:"mid_price_cache_ms"`
	} `mapstructure:"risk"`

	Markets []UniverseEntry `mapstructure:"markets"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from configPath (a directory or file), applying
// defaults first and allowing HPNS_-prefixed environment overrides (nested
// keys join with "_", e.g. HPNS_GRPC_PORT for grpc.port). An environment
// override takes effect only for a key present in the loaded config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hp-node-stream")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("HPNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.GRPC.Port = 50052
	cfg.Metrics.Port = 9090
	cfg.Ingest.Path = "-"
	cfg.Dispatch.PoolSize = 256

	cfg.Depth.Default = 50
	cfg.Depth.Max = 500

	cfg.Broadcast.Capacity = 100_000
	cfg.Broadcast.SubscriberSize = 1000

	cfg.CircuitBreaker.ErrorThreshold = 100
	cfg.CircuitBreaker.ErrorWindow = 60 * time.Second
	cfg.CircuitBreaker.CooldownPeriod = 30 * time.Second
	cfg.CircuitBreaker.LogSampleRate = 10
	cfg.CircuitBreaker.RingBufferSize = 256

	cfg.Validator.MaxPrice = 10_000_000
	cfg.Validator.MaxSize = 1_000_000

	cfg.Auth.RequireAuth = false

	cfg.Risk.DistanceWeight = 0.6
	cfg.Risk.SlippageWeight = 0.4
	cfg.Risk.MidPriceCacheMs = 250

	cfg.LogLevel = "info"
}
