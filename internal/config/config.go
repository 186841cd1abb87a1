package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CircuitBreakerConfig holds the tunables of the provider circuit breaker
// (spec §4.3), all overridable via environment variables.
type CircuitBreakerConfig struct {
	FailureThreshold int
	CooldownSeconds  int
	MaxBackoffSeconds int
	InitialBackoffSeconds int
}

// GateThresholds holds the default per-intent quality-gate thresholds
// (spec §4.1 table) plus the supply-adaptive floors (spec §4.12).
type GateThresholds struct {
	MinTriangulation map[string]float64 // keyed by intent
	MinSources       map[string]int     // keyed by intent

	StrictTriangulationTarget float64
	NormalTriangulationTarget float64
	LowSupplyTriangulationFloor float64

	PrimaryTarget        float64
	PrimaryLowSupply     float64

	DomainCap        float64
	DomainCapRelaxed float64
	MinCards         int
}

// Config holds all configuration for one pipeline run, built once at
// startup from environment variables (spec §6) and optional config files.
type Config struct {
	// LogLevel is the default log level; see LOG_LEVEL env var.
	LogLevel string

	// GlobalSeed seeds any sampler; string seeds are hashed to an integer
	// via a stable hash (spec §5 determinism). RA_GLOBAL_SEED.
	GlobalSeed string

	// WallTimeout bounds total run work. WALL_TIMEOUT_SEC.
	WallTimeout time.Duration

	// SearchProviders is the enable-list of general search providers.
	// SEARCH_PROVIDERS (comma-separated).
	SearchProviders []string

	// EnableFreeAPIs toggles providers that need no API key. ENABLE_FREE_APIS.
	EnableFreeAPIs bool

	CircuitBreaker CircuitBreakerConfig

	// SerpAPI-specific overrides (spec §6).
	SerpAPICircuitBreaker  bool
	SerpAPIMaxCallsPerRun  int
	SerpAPITripOn429       bool

	// ParaphraseThreshold overrides the paraphrase-cluster cosine threshold
	// (spec §4.8 default 0.40). TRI_PARA_THRESHOLD.
	ParaphraseThreshold float64

	// GatesProfile selects the threshold table: "default" or "discovery".
	// GATES_PROFILE.
	GatesProfile string

	WriteReportOnFail bool
	WriteDraftOnFail  bool
	BackfillOnFail    bool

	// TrustedDomains is additive to the built-in allowlist (spec §4.10).
	// TRUSTED_DOMAINS.
	TrustedDomains []string

	Gates GateThresholds

	// ProvidersConfigPath optionally points at a providers.yaml describing
	// vertical-provider instances (see ProvidersFile).
	ProvidersConfigPath string

	// TracingEnabled/TracingEndpoint mirror the teacher's OTLP wiring,
	// reused here for run/dispatch spans.
	TracingEnabled bool
	TracingEndpoint string
}

// DefaultGateThresholds returns the per-intent table from spec §4.1 plus
// the supply-adaptive defaults from spec §4.12.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		MinTriangulation: map[string]float64{
			"product":      0.20,
			"local":        0.15,
			"academic":     0.35,
			"stats":        0.30,
			"news":         0.30,
			"encyclopedia": 0.25,
			"travel":       0.25,
			"howto":        0.20,
			"regulatory":   0.30,
			"medical":      0.35,
			"generic":      0.25,
		},
		MinSources: map[string]int{
			"product":      3,
			"local":        2,
			"academic":     3,
			"stats":        3,
			"news":         4,
			"encyclopedia": 2,
			"travel":       3,
			"howto":        2,
			"regulatory":   3,
			"medical":      3,
			"generic":      2,
		},
		StrictTriangulationTarget:   0.35,
		NormalTriangulationTarget:   0.30,
		LowSupplyTriangulationFloor: 0.25,
		PrimaryTarget:               0.40,
		PrimaryLowSupply:            0.30,
		DomainCap:                   0.25,
		DomainCapRelaxed:            0.40,
		MinCards:                    24,
	}
}

// Load builds a Config from the process environment, applying the defaults
// of spec §4 and §6 where a variable is unset.
func Load() *Config {
	cfg := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		GlobalSeed: getEnv("RA_GLOBAL_SEED", "research-agent"),
		WallTimeout: time.Duration(getEnvInt("WALL_TIMEOUT_SEC", 1800)) * time.Second,

		SearchProviders: splitCSV(getEnv("SEARCH_PROVIDERS", "serpapi,serper,brave,tavily")),
		EnableFreeAPIs:  getEnvBool("ENABLE_FREE_APIS", true),

		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:      getEnvInt("PROVIDER_CB_THRESHOLD", 3),
			CooldownSeconds:       getEnvInt("PROVIDER_CB_COOLDOWN", 600),
			MaxBackoffSeconds:     getEnvInt("PROVIDER_MAX_BACKOFF", 300),
			InitialBackoffSeconds: getEnvInt("PROVIDER_INITIAL_BACKOFF", 5),
		},

		SerpAPICircuitBreaker: getEnvBool("SERPAPI_CIRCUIT_BREAKER", true),
		SerpAPIMaxCallsPerRun: getEnvInt("SERPAPI_MAX_CALLS_PER_RUN", 8),
		SerpAPITripOn429:      getEnvBool("SERPAPI_TRIP_ON_429", true),

		ParaphraseThreshold: getEnvFloat("TRI_PARA_THRESHOLD", 0.40),
		GatesProfile:        getEnv("GATES_PROFILE", "default"),

		WriteReportOnFail: getEnvBool("WRITE_REPORT_ON_FAIL", true),
		WriteDraftOnFail:  getEnvBool("WRITE_DRAFT_ON_FAIL", false),
		BackfillOnFail:    getEnvBool("BACKFILL_ON_FAIL", true),

		TrustedDomains: splitCSV(getEnv("TRUSTED_DOMAINS", "")),

		Gates: DefaultGateThresholds(),

		ProvidersConfigPath: getEnv("RA_PROVIDERS_CONFIG", ""),

		TracingEnabled:  getEnvBool("RA_TRACING_ENABLED", false),
		TracingEndpoint: getEnv("RA_TRACING_ENDPOINT", ""),
	}

	if cfg.GatesProfile == "discovery" {
		cfg.Gates.StrictTriangulationTarget = 0.25
		cfg.Gates.NormalTriangulationTarget = 0.20
		cfg.Gates.LowSupplyTriangulationFloor = 0.15
	}

	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.CircuitBreaker.FailureThreshold < 1 {
		return NewConfigError("PROVIDER_CB_THRESHOLD must be at least 1")
	}
	if c.CircuitBreaker.CooldownSeconds < 1 {
		return NewConfigError("PROVIDER_CB_COOLDOWN must be at least 1")
	}
	if c.WallTimeout <= 0 {
		return NewConfigError("WALL_TIMEOUT_SEC must be positive")
	}
	if c.GatesProfile != "default" && c.GatesProfile != "discovery" {
		return NewConfigError("GATES_PROFILE must be \"default\" or \"discovery\"")
	}
	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("RA_TRACING_ENDPOINT must be set when tracing is enabled")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
