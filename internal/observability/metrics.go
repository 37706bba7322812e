package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arjunms/account-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

type accountMetrics struct {
	registrationCounter    metric.Int64Counter
	loginCounter           metric.Int64Counter
	lockoutCounter         metric.Int64Counter
	passwordResetCounter   metric.Int64Counter
	emailVerifyCounter     metric.Int64Counter
	externalLinkCounter    metric.Int64Counter
	sessionCounter         metric.Int64Counter
	tokenValidationCounter metric.Int64Counter
	cooldownCounter        metric.Int64Counter
	cooldownWait           metric.Float64Histogram
	rateLimitCounter       metric.Int64Counter
	authReqDuration        metric.Float64Histogram
	healthCheckCounter     metric.Int64Counter
	healthCheckDuration    metric.Float64Histogram
}

var (
	metricsMu sync.RWMutex
	appM      *accountMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("account-service")
	m := &accountMetrics{}
	if m.registrationCounter, err = meter.Int64Counter("account.registrations"); err != nil {
		return nil, err
	}
	if m.loginCounter, err = meter.Int64Counter("account.login.attempts"); err != nil {
		return nil, err
	}
	if m.lockoutCounter, err = meter.Int64Counter("account.lockouts"); err != nil {
		return nil, err
	}
	if m.passwordResetCounter, err = meter.Int64Counter("account.password_reset.events"); err != nil {
		return nil, err
	}
	if m.emailVerifyCounter, err = meter.Int64Counter("account.email_verify.events"); err != nil {
		return nil, err
	}
	if m.externalLinkCounter, err = meter.Int64Counter("account.external_link.events"); err != nil {
		return nil, err
	}
	if m.sessionCounter, err = meter.Int64Counter("account.session.events"); err != nil {
		return nil, err
	}
	if m.tokenValidationCounter, err = meter.Int64Counter("auth.access_token.validation.events"); err != nil {
		return nil, err
	}
	if m.cooldownCounter, err = meter.Int64Counter("auth.cooldown.events"); err != nil {
		return nil, err
	}
	m.cooldownWait, err = meter.Float64Histogram(
		"auth.cooldown.wait",
		metric.WithUnit("s"),
		metric.WithDescription("Remaining cooldown returned to throttled callers"),
	)
	if err != nil {
		return nil, err
	}
	if m.rateLimitCounter, err = meter.Int64Counter("http.rate_limit.decisions"); err != nil {
		return nil, err
	}
	m.authReqDuration, err = meter.Float64Histogram(
		"auth.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of auth endpoint requests in seconds"),
	)
	if err != nil {
		return nil, err
	}
	if m.healthCheckCounter, err = meter.Int64Counter("health.check.results"); err != nil {
		return nil, err
	}
	m.healthCheckDuration, err = meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appM = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *accountMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appM
}

func RecordRegistration(ctx context.Context, method, status string) {
	if m := current(); m != nil {
		m.registrationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		))
	}
}

func RecordLogin(ctx context.Context, provider, status string) {
	if m := current(); m != nil {
		m.loginCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		))
	}
}

func RecordLockout(ctx context.Context) {
	if m := current(); m != nil {
		m.lockoutCounter.Add(ctx, 1)
	}
}

func RecordPasswordResetEvent(ctx context.Context, step, status string) {
	if m := current(); m != nil {
		m.passwordResetCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("status", status),
		))
	}
}

func RecordEmailVerifyEvent(ctx context.Context, step, status string) {
	if m := current(); m != nil {
		m.emailVerifyCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("status", status),
		))
	}
}

func RecordExternalLinkEvent(ctx context.Context, provider, outcome string) {
	if m := current(); m != nil {
		m.externalLinkCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordSessionEvent(ctx context.Context, action, status string) {
	if m := current(); m != nil {
		m.sessionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("status", status),
		))
	}
}

func RecordAccessTokenValidation(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func RecordCooldownEvent(ctx context.Context, scope, action string) {
	if m := current(); m != nil {
		m.cooldownCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("action", action),
		))
	}
}

func RecordCooldownWait(ctx context.Context, scope string, wait time.Duration) {
	if m := current(); m != nil {
		m.cooldownWait.Record(ctx, wait.Seconds(), metric.WithAttributes(
			attribute.String("scope", scope),
		))
	}
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	if m := current(); m != nil {
		m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	if m := current(); m != nil {
		m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		))
	}
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	if m := current(); m != nil {
		m.healthCheckCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", check),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	if m := current(); m != nil {
		m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("check", check),
		))
	}
}
