package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	adminActions      metric.Int64Counter
	accessDenied      metric.Int64Counter
	notificationsSent metric.Int64Counter
	notificationsFail metric.Int64Counter
	snapshotsIngested metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "adminwatch"
	}
	meter := provider.Meter(name)

	adminActions, err := meter.Int64Counter("adminwatch_admin_actions_total")
	if err != nil {
		return nil, err
	}
	accessDenied, err := meter.Int64Counter("adminwatch_access_denied_total")
	if err != nil {
		return nil, err
	}
	notificationsSent, err := meter.Int64Counter("adminwatch_notifications_sent_total")
	if err != nil {
		return nil, err
	}
	notificationsFail, err := meter.Int64Counter("adminwatch_notifications_failed_total")
	if err != nil {
		return nil, err
	}
	snapshotsIngested, err := meter.Int64Counter("adminwatch_snapshots_ingested_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		adminActions:      adminActions,
		accessDenied:      accessDenied,
		notificationsSent: notificationsSent,
		notificationsFail: notificationsFail,
		snapshotsIngested: snapshotsIngested,
	}, nil
}

// RecordAdminAction counts gateway actions by outcome.
func (m *Metrics) RecordAdminAction(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.adminActions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAccessDenied counts country gate rejections.
func (m *Metrics) RecordAccessDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.accessDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationSent(ctx context.Context, channel, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("category", strings.TrimSpace(category)),
	)
	m.notificationsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationFailed(ctx context.Context, channel, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.notificationsFail.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSnapshotIngested(ctx context.Context, metricType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("metric_type", strings.TrimSpace(metricType)))
	m.snapshotsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"action":      {},
	"outcome":     {},
	"channel":     {},
	"category":    {},
	"metric_type": {},
	"route":       {},
	"method":      {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
