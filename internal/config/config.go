package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvLogLevel       = "COUNTER_NODE_LOG_LEVEL"
	EnvLogFormat      = "COUNTER_NODE_LOG_FORMAT"
	EnvMetricsAddr    = "COUNTER_NODE_METRICS_ADDR"
	EnvOnDecodeError  = "COUNTER_NODE_ON_DECODE_ERROR"
	EnvOnUnknownType  = "COUNTER_NODE_ON_UNKNOWN_TYPE"
	EnvRequireInit    = "COUNTER_NODE_REQUIRE_INIT"
	EnvRateLimitRPS   = "COUNTER_NODE_RATE_LIMIT_RPS"
	EnvRateLimitBurst = "COUNTER_NODE_RATE_LIMIT_BURST"
)

// DefaultCandidates are tried in order when no explicit path is given.
var DefaultCandidates = []string{
	"counter-node.yaml",
	"configs/counter-node.yaml",
}

type Config struct {
	Node      NodeConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

type NodeConfig struct {
	OnDecodeError string
	OnUnknownType string
	RequireInit   bool
	MaxLineBytes  int
	MaxReadErrors int
	CallTimeout   time.Duration
}

type RateLimitConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

type LogConfig struct {
	Level        string
	Format       string
	MaxAttrBytes int
}

type MetricsConfig struct {
	Addr string
}

func Default() Config {
	return Config{
		Node: NodeConfig{
			OnDecodeError: "skip",
			OnUnknownType: "ignore",
			MaxLineBytes:  1 << 20,
			MaxReadErrors: 16,
			CallTimeout:   5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			IdleTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "text",
			MaxAttrBytes: 512,
		},
	}
}

// File mirrors the YAML layout. Pointer fields distinguish "unset" from an
// explicit zero so Merge only overrides what the file names.
type File struct {
	Node      FileNode      `yaml:"node"`
	RateLimit FileRateLimit `yaml:"rateLimit"`
	Log       FileLog       `yaml:"log"`
	Metrics   FileMetrics   `yaml:"metrics"`
}

type FileNode struct {
	OnDecodeError string        `yaml:"onDecodeError"`
	OnUnknownType string        `yaml:"onUnknownType"`
	RequireInit   *bool         `yaml:"requireInit"`
	MaxLineBytes  int           `yaml:"maxLineBytes"`
	MaxReadErrors int           `yaml:"maxReadErrors"`
	CallTimeout   time.Duration `yaml:"callTimeout"`
}

type FileRateLimit struct {
	RPS     *float64      `yaml:"rps"`
	Burst   *int          `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idleTTL"`
}

type FileLog struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	MaxAttrBytes *int   `yaml:"maxAttrBytes"`
}

type FileMetrics struct {
	Addr *string `yaml:"addr"`
}

// LoadFromPath reads configPath, or the first readable default candidate when
// configPath is empty, merges it over Default and applies env overrides. An
// explicit path that cannot be read or parsed is an error; missing default
// candidates are not.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		parsed, err := readFile(configPath)
		if err != nil {
			return Config{}, err
		}
		Merge(&cfg, parsed)
	} else {
		for _, path := range DefaultCandidates {
			parsed, err := readFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return Config{}, err
			}
			Merge(&cfg, parsed)
			break
		}
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var parsed File
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return parsed, nil
}

func Merge(dst *Config, src File) {
	if src.Node.OnDecodeError != "" {
		dst.Node.OnDecodeError = src.Node.OnDecodeError
	}
	if src.Node.OnUnknownType != "" {
		dst.Node.OnUnknownType = src.Node.OnUnknownType
	}
	if src.Node.RequireInit != nil {
		dst.Node.RequireInit = *src.Node.RequireInit
	}
	if src.Node.MaxLineBytes != 0 {
		dst.Node.MaxLineBytes = src.Node.MaxLineBytes
	}
	if src.Node.MaxReadErrors != 0 {
		dst.Node.MaxReadErrors = src.Node.MaxReadErrors
	}
	if src.Node.CallTimeout != 0 {
		dst.Node.CallTimeout = src.Node.CallTimeout
	}
	if src.RateLimit.RPS != nil {
		dst.RateLimit.RPS = *src.RateLimit.RPS
	}
	if src.RateLimit.Burst != nil {
		dst.RateLimit.Burst = *src.RateLimit.Burst
	}
	if src.RateLimit.IdleTTL != 0 {
		dst.RateLimit.IdleTTL = src.RateLimit.IdleTTL
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Log.MaxAttrBytes != nil {
		dst.Log.MaxAttrBytes = *src.Log.MaxAttrBytes
	}
	if src.Metrics.Addr != nil {
		dst.Metrics.Addr = *src.Metrics.Addr
	}
}

// ApplyEnvOverrides applies COUNTER_NODE_* variables. Unparseable numeric or
// boolean values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.Metrics.Addr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvOnDecodeError)); v != "" {
		cfg.Node.OnDecodeError = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOnUnknownType)); v != "" {
		cfg.Node.OnUnknownType = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRequireInit)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Node.RequireInit = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitRPS)); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			cfg.RateLimit.RPS = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitBurst)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			cfg.RateLimit.Burst = v
		}
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Node.OnDecodeError)) {
	case "skip", "abort":
	default:
		return fmt.Errorf("config: node.onDecodeError must be skip or abort, got %q", c.Node.OnDecodeError)
	}
	switch strings.ToLower(strings.TrimSpace(c.Node.OnUnknownType)) {
	case "ignore", "reject":
	default:
		return fmt.Errorf("config: node.onUnknownType must be ignore or reject, got %q", c.Node.OnUnknownType)
	}
	if c.Node.MaxLineBytes <= 0 {
		return fmt.Errorf("config: node.maxLineBytes must be positive")
	}
	if c.Node.MaxReadErrors <= 0 {
		return fmt.Errorf("config: node.maxReadErrors must be positive")
	}
	if c.Node.CallTimeout < 0 {
		return fmt.Errorf("config: node.callTimeout must not be negative")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rateLimit values must not be negative")
	}
	return nil
}
