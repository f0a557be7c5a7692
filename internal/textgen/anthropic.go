package textgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/deep-ion/reqgate/internal/telemetry"
)

const (
	generateMaxElapsed = 2 * time.Minute
	systemPrompt       = "Você é um analista de requisitos de software focado em precisão."
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// Anthropic generates documents through the Anthropic Messages API.
type Anthropic struct {
	client     anthropic.Client
	model      anthropic.Model
	maxElapsed time.Duration
}

// NewAnthropic creates a generator client. Env var ANTHROPIC_API_KEY takes
// precedence over the explicit apiKey.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", ErrAPIKeyRequired)
	}

	genMetricsOnce.Do(initGenMetrics)

	return &Anthropic{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:      anthropic.Model(model),
		maxElapsed: generateMaxElapsed,
	}, nil
}

// genMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var genMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var genMetricsOnce sync.Once

func initGenMetrics() {
	m := telemetry.Meter("github.com/deep-ion/reqgate/ai")
	genMetrics.inputTokens, _ = m.Int64Counter("reqgate.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	genMetrics.outputTokens, _ = m.Int64Counter("reqgate.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	genMetrics.duration, _ = m.Float64Histogram("reqgate.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Generate renders the document for a prompt, retrying transient API failures
// with exponential backoff.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/deep-ion/reqgate/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("reqgate.ai.model", string(a.model)),
		attribute.String("reqgate.ai.operation", "generate"),
	)

	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   4096,
		Temperature: anthropic.Float(0.1),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var out string
	attempts := 0
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = a.maxElapsed

	err := backoff.Retry(func() error {
		attempts++
		t0 := time.Now()
		message, err := a.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		modelAttr := attribute.String("reqgate.ai.model", string(a.model))
		if genMetrics.inputTokens != nil {
			genMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			genMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			genMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		span.SetAttributes(
			attribute.Int64("reqgate.ai.input_tokens", message.Usage.InputTokens),
			attribute.Int64("reqgate.ai.output_tokens", message.Usage.OutputTokens),
			attribute.Int("reqgate.ai.attempts", attempts),
		)

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		out = content.Text
		return nil
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("generation failed after %d attempts: %w", attempts, err)
	}
	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
