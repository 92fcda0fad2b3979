// Package config loads the council orchestration core's process-level
// configuration from the environment (optionally via a local .env file).
package config

import (
	"strconv"
	"strings"
	"time"
)

// ObsConfig controls tracing export for the orchestrator.
type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLP           string
}

// ProviderConfig holds the endpoint/credential pair for one upstream vendor.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// RedisConfig describes the optional Redis-backed model registry cache.
// Enabled only when Addr is set; see internal/registry's enterprise build tag.
type RedisConfig struct {
	Enabled bool
	Addr    string
	Password string
	DB       int
}

// KafkaConfig describes the optional Kafka-backed safety telemetry sink.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Config is the council core's process-wide, startup-resolved configuration.
// It is constructed once in main and injected into the orchestrators and
// registries that need it (§9 design note: no lazily-initialized globals).
type Config struct {
	Obs ObsConfig

	OpenRouter ProviderConfig // default OpenAI-compatible gateway (vendor/model ids)
	Anthropic  ProviderConfig
	Google     ProviderConfig

	Redis RedisConfig
	Kafka KafkaConfig

	LogPath  string
	LogLevel string

	// Stage deadlines and thresholds, see spec §6.5.
	Stage1Timeout      time.Duration
	Stage2Timeout      time.Duration
	Stage3Timeout      time.Duration
	PerModelTimeout    time.Duration
	MinStage1Responses int
	MinStage2Rankings  int
	MaxQueryChars      int
	MaxRetries         int
	BreakerFailures    int
	BreakerWindow      time.Duration
	BreakerCooldown    time.Duration
	MergeQueueCap      int
	Stage1Stagger      time.Duration
	Stage2Stagger      time.Duration
}

// Load reads configuration from the environment. Values not present fall
// back to the spec-mandated defaults (§6.5) so the core is usable without
// any configuration at all, same as the teacher's config.Load does for its
// own subsystems.
func Load() (Config, error) {
	_ = loadDotEnv(".env")

	cfg := Config{}

	cfg.Obs.ServiceName = firstNonEmpty(getenv("OTEL_SERVICE_NAME"), "council")
	cfg.Obs.ServiceVersion = getenv("SERVICE_VERSION")
	cfg.Obs.Environment = getenv("ENVIRONMENT")
	cfg.Obs.OTLP = getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.OpenRouter.APIKey = getenv("OPENROUTER_API_KEY")
	cfg.OpenRouter.BaseURL = firstNonEmpty(getenv("OPENROUTER_BASE_URL"), "https://openrouter.ai/api/v1")
	cfg.Anthropic.APIKey = getenv("ANTHROPIC_API_KEY")
	cfg.Anthropic.BaseURL = getenv("ANTHROPIC_BASE_URL")
	cfg.Google.APIKey = getenv("GOOGLE_LLM_API_KEY")
	cfg.Google.BaseURL = getenv("GOOGLE_LLM_BASE_URL")

	cfg.Redis.Addr = getenv("REDIS_ADDR")
	cfg.Redis.Enabled = cfg.Redis.Addr != ""
	cfg.Redis.Password = getenv("REDIS_PASSWORD")
	cfg.Redis.DB = intFromEnv("REDIS_DB", 0)

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = parseCommaSeparatedList(brokers)
		cfg.Kafka.Enabled = true
	}
	cfg.Kafka.Topic = firstNonEmpty(getenv("KAFKA_SAFETY_TOPIC"), "council.safety.events")

	cfg.LogPath = getenv("LOG_PATH")
	cfg.LogLevel = firstNonEmpty(getenv("LOG_LEVEL"), "info")

	cfg.Stage1Timeout = durationFromEnv("STAGE1_TIMEOUT", 600*time.Second)
	cfg.Stage2Timeout = durationFromEnv("STAGE2_TIMEOUT", 600*time.Second)
	cfg.Stage3Timeout = durationFromEnv("STAGE3_TIMEOUT", 180*time.Second)
	cfg.PerModelTimeout = durationFromEnv("PER_MODEL_TIMEOUT", 300*time.Second)
	cfg.MinStage1Responses = intFromEnv("MIN_STAGE1_RESPONSES", 2)
	cfg.MinStage2Rankings = intFromEnv("MIN_STAGE2_RANKINGS", 2)
	cfg.MaxQueryChars = intFromEnv("MAX_QUERY_CHARS", 50_000)
	cfg.MaxRetries = intFromEnv("MAX_RETRIES", 3)
	cfg.BreakerFailures = intFromEnv("BREAKER_FAILURES", 5)
	cfg.BreakerWindow = durationFromEnv("BREAKER_WINDOW", 60*time.Second)
	cfg.BreakerCooldown = durationFromEnv("BREAKER_COOLDOWN", 30*time.Second)
	cfg.MergeQueueCap = intFromEnv("MERGE_QUEUE_CAP", 1000)
	cfg.Stage1Stagger = durationFromEnv("STAGE1_STAGGER", 0)
	cfg.Stage2Stagger = durationFromEnv("STAGE2_STAGGER", 500*time.Millisecond)

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCommaSeparatedList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	// Bare numbers are interpreted as seconds to match the spec's "600s" style
	// defaults; anything else is parsed as a Go duration string.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
