package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/adminwatch/internal/config"
)

// Config holds logging and OpenTelemetry settings. Identity fields come from
// the application config; exporter settings use the standard OTEL_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

var debugEnvironments = map[string]struct{}{
	"dev":         {},
	"development": {},
	"local":       {},
	"test":        {},
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "adminwatch"),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             lowerEnv("LOG_LEVEL", "info"),
		LogFormat:            lowerEnv("LOG_FORMAT", "json"),
		OtelEnabled:          boolEnv("OTEL_ENABLED", false),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelExporterProtocol: firstNonEmpty(
			strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")),
			lowerEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		),
		OtelSamplingRatio: 0.1,
	}
	if raw := strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			out.OtelSamplingRatio = ratio
		}
	}
	return out
}

// Debug enables verbose logging and gin debug mode.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	_, ok := debugEnvironments[strings.ToLower(strings.TrimSpace(c.Environment))]
	return ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func lowerEnv(key, def string) string {
	return strings.ToLower(firstNonEmpty(os.Getenv(key), def))
}

func boolEnv(key string, def bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return parsed
}
