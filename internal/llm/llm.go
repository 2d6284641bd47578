// Package llm wraps the Anthropic client behind a narrow caller contract and
// provides a retrying executor for strict-JSON extraction calls. Transport
// failures (timeout, rate limit, 5xx) are retried with bounded exponential
// backoff; malformed content is re-prompted with feedback and surfaces as a
// ContentError after the attempt budget so callers can degrade locally.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel = "claude-sonnet-4-20250514"
	maxAttempts  = 3
)

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

// Caller produces raw model text for a system prompt + user prompt pair.
type Caller interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
	ModelName() string
}

// ContentError marks an extraction whose transport succeeded but whose
// content never became valid JSON passing validation. Callers that treat
// bad extractions as "no update" check for it with errors.As.
type ContentError struct {
	Stage string
	Err   error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s produced unusable content: %v", e.Stage, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// IsContentError reports whether err wraps a ContentError.
func IsContentError(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCaller implements Caller on the Anthropic Messages API.
type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// NewAnthropicCallerFromEnv builds a caller from ANTHROPIC_API_KEY and the
// optional CONCIERGE_LLM_MODEL override.
func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	model := strings.TrimSpace(os.Getenv("CONCIERGE_LLM_MODEL"))
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   4096,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// Executor runs strict-JSON extraction calls against a Caller with retries.
type Executor struct {
	caller Caller
}

func NewExecutor(caller Caller) *Executor {
	return &Executor{caller: caller}
}

func (e *Executor) ModelName() string {
	if e == nil || e.caller == nil {
		return DefaultModel
	}
	return e.caller.ModelName()
}

// AttemptMetrics counts transport attempts and content re-prompts for a call.
type AttemptMetrics struct {
	Attempts       int
	ContentRetries int
}

// Run prompts the model until out holds valid JSON passing validate, or the
// attempt budget is exhausted. Transport errors classified as retryable are
// backed off and retried; content errors re-prompt with feedback and end in
// a *ContentError.
func (e *Executor) Run(ctx context.Context, stage, system, prompt string, out any, validate func() error) (AttemptMetrics, error) {
	metrics := AttemptMetrics{}
	feedback := ""
	var lastContentErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		metrics.Attempts = attempt
		fullPrompt := prompt
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		attemptStart := time.Now()
		log.Printf("llm attempt_start stage=%s attempt=%d", stage, attempt)
		raw, err := e.caller.GenerateJSON(ctx, system, fullPrompt)
		if err != nil {
			class := classifyTransportError(err)
			log.Printf("llm attempt_transport_error stage=%s attempt=%d class=%d elapsed_ms=%d err=%q", stage, attempt, class, time.Since(attemptStart).Milliseconds(), err.Error())
			if class == failureTimeout || class == failureRateLimit || class == failureServer {
				if attempt < maxAttempts {
					time.Sleep(backoffDelay(attempt))
					continue
				}
			}
			return metrics, fmt.Errorf("%s transport failure: %w", stage, err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			lastContentErr = errors.New("empty response")
			if attempt < maxAttempts {
				metrics.ContentRetries++
				feedback = "Your previous response was empty. Return valid JSON only."
				continue
			}
			break
		}

		clean := StripCodeFences(raw)
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			lastContentErr = err
			log.Printf("llm attempt_json_error stage=%s attempt=%d err=%q", stage, attempt, err.Error())
			if attempt < maxAttempts {
				metrics.ContentRetries++
				feedback = "Your previous response was not valid JSON. Return valid JSON only."
				continue
			}
			break
		}
		if validate != nil {
			if err := validate(); err != nil {
				lastContentErr = err
				log.Printf("llm attempt_validation_error stage=%s attempt=%d err=%q", stage, attempt, err.Error())
				if attempt < maxAttempts {
					metrics.ContentRetries++
					feedback = fmt.Sprintf("Your response failed validation: %s. Fix and return valid JSON only.", err)
					continue
				}
				break
			}
		}
		log.Printf("llm attempt_success stage=%s attempt=%d elapsed_ms=%d response_chars=%d", stage, attempt, time.Since(attemptStart).Milliseconds(), len(clean))
		return metrics, nil
	}
	return metrics, &ContentError{Stage: stage, Err: lastContentErr}
}

// StripCodeFences removes a leading ```json fence and trailing ``` so fenced
// model output still parses.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	m := statusCodeRe.FindStringSubmatch(msg)
	if len(m) == 2 {
		switch {
		case strings.HasPrefix(m[1], "429"):
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "status 429"), strings.Contains(msg, "status=429"), strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, "status 5"), strings.Contains(msg, "status=5"), strings.Contains(msg, "status code: 5"), strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status 4"), strings.Contains(msg, "status=4"), strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}
