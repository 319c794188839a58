package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SignupTotal            metric.Int64Counter
	LoginTotal             metric.Int64Counter
	CodeVerificationsTotal metric.Int64Counter
	TokenRejectionsTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the metric instruments once, from the globally
// configured MeterProvider. Call it after the provider is set up.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("go-user-auth")
		var err error
		m := &AppMetrics{}

		m.SignupTotal, err = meter.Int64Counter(
			"signup_requests_total",
			metric.WithDescription("Total number of signup requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create signup_requests_total: %v", err)
		}

		m.LoginTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.CodeVerificationsTotal, err = meter.Int64Counter(
			"code_verifications_total",
			metric.WithDescription("Total OTP/verification code redemption attempts"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create code_verifications_total: %v", err)
		}

		m.TokenRejectionsTotal, err = meter.Int64Counter(
			"token_rejections_total",
			metric.WithDescription("Access tokens rejected during authorization"),
			metric.WithUnit("{token}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create token_rejections_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized instruments, or nil when InitAppMetrics was
// never called (e.g. in tests). All Count helpers are nil-safe.
func Get() *AppMetrics {
	return appMetrics
}

func (m *AppMetrics) CountSignup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.SignupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AppMetrics) CountLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.LoginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AppMetrics) CountCodeVerification(ctx context.Context, purpose, outcome string) {
	if m == nil {
		return
	}
	m.CodeVerificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

func (m *AppMetrics) CountTokenRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.TokenRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
