package alert

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/httpclient"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/arbitrage/infra/alert"

	webhookTimeout = 10 * time.Second
)

// webhookPayload is the wire form posted to the operator endpoint.
type webhookPayload struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Value     string    `json:"value"`
	Threshold string    `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
}

// WebhookAlerter posts alerts as JSON to an operator-configured endpoint.
type WebhookAlerter struct {
	client httpclient.Client
	url    string
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewWebhookAlerter creates a webhook sink for the given URL.
func NewWebhookAlerter(url string, log logger.LoggerInterface) (*WebhookAlerter, error) {
	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("alert_webhook"),
		httpclient.WithRequestTimeout(webhookTimeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest),
		httpclient.WithHeaders(map[string]string{
			"Content-Type": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}

	return &WebhookAlerter{
		client: client,
		url:    url,
		logger: log,
		tracer: tracer,
	}, nil
}

// Send posts the alert. A non-2xx response is an error so the monitor can
// log the failed delivery.
func (a *WebhookAlerter) Send(ctx context.Context, alert domain.Alert) error {
	payload := webhookPayload{
		Name:      alert.Name,
		Message:   alert.Message,
		Severity:  string(alert.Severity),
		Value:     alert.Value.String(),
		Threshold: alert.Threshold.String(),
		RaisedAt:  alert.RaisedAt,
	}

	resp, err := a.client.NewRequest().
		SetBody(payload).
		Post(ctx, a.url)
	if err != nil {
		return apperror.New(apperror.CodeInternalError,
			apperror.WithMessage("posting alert webhook"),
			apperror.WithCause(err),
		)
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeInternalError,
			apperror.WithMessage(fmt.Sprintf("alert webhook returned status %d", resp.StatusCode)),
		)
	}

	a.logger.Debug(ctx, "alert delivered to webhook", "alert", alert.Name)
	return nil
}
