// Package docintel is the HTTP adapter for the document analysis provider.
// It is the only component that performs network I/O against the provider.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerscan/backend/internal/domain/processing"
	"github.com/ledgerscan/backend/internal/infrastructure/config"
)

const apiVersion = "2024-11-30"

// Provider model identifiers
const (
	modelInvoice = "prebuilt-invoice"
	modelReceipt = "prebuilt-receipt"
)

// Error taxonomy of the analysis boundary. Throttling is retried inside the
// adapter; timeouts and failures propagate to the caller immediately.
var (
	ErrThrottled = errors.New("analysis throttled by provider")
	ErrTimeout   = errors.New("analysis timed out")
	ErrFailed    = errors.New("analysis failed")
)

// Client calls the provider's asynchronous analyze API: submit bytes, receive
// an operation URL, poll until the operation settles.
type Client struct {
	endpoint     string
	apiKey       string
	locale       string
	timeout      time.Duration
	maxRetries   int
	backoffBase  time.Duration
	backoffCap   time.Duration
	pollInterval time.Duration

	httpClient *http.Client
	sleep      func(time.Duration)
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleep replaces the delay function used between retries and polls.
// Tests substitute a recording no-op.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a provider client from configuration
func NewClient(cfg config.AnalysisConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		locale:       cfg.Locale,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		backoffBase:  cfg.BackoffBase,
		backoffCap:   cfg.BackoffCap,
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{},
		sleep:        time.Sleep,
		logger:       logger.Named("docintel"),
	}
	for _, opt := range opts {
		opt(c)
	}
	// A non-positive budget would skip the submit loop entirely
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c
}

// Analyze submits document bytes to the provider model selected by the hint
// and blocks until a result arrives or the per-call timeout elapses. 429
// responses are retried with exponential backoff, honoring the provider's
// Retry-After when present; every other provider error propagates at once.
func (c *Client) Analyze(ctx context.Context, data []byte, contentType string, hint processing.DocumentType) (processing.RawExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	analyzeURL := c.analyzeURL(modelForHint(hint))

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		raw, retryAfter, err := c.submit(ctx, analyzeURL, data, contentType)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, ErrThrottled) {
			return processing.RawExtraction{}, err
		}
		lastErr = err
		if attempt == c.maxRetries-1 {
			break
		}

		delay := c.backoffDelay(attempt, retryAfter)
		c.logger.Warn("provider throttled, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))
		if err := c.wait(ctx, delay); err != nil {
			return processing.RawExtraction{}, err
		}
	}
	return processing.RawExtraction{}, lastErr
}

// submit performs one analyze POST. A 202 response carries the operation URL
// to poll; a 200 carries the result inline.
func (c *Client) submit(ctx context.Context, analyzeURL string, data []byte, contentType string) (processing.RawExtraction, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(data))
	if err != nil {
		return processing.RawExtraction{}, 0, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return processing.RawExtraction{}, 0, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		raw, err := decodeResult(resp.Body)
		return raw, 0, err
	case http.StatusAccepted:
		operationURL := resp.Header.Get("Operation-Location")
		if operationURL == "" {
			return processing.RawExtraction{}, 0, fmt.Errorf("%w: missing Operation-Location header", ErrFailed)
		}
		raw, err := c.poll(ctx, operationURL)
		return raw, 0, err
	case http.StatusTooManyRequests:
		return processing.RawExtraction{}, retryAfterHeader(resp), ErrThrottled
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return processing.RawExtraction{}, 0, fmt.Errorf("%w: status %d: %s", ErrFailed, resp.StatusCode, body)
	}
}

// poll follows the operation URL until the analysis settles
func (c *Client) poll(ctx context.Context, operationURL string) (processing.RawExtraction, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return processing.RawExtraction{}, fmt.Errorf("%w: %v", ErrFailed, err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return processing.RawExtraction{}, c.transportError(ctx, err)
		}

		var envelope operationEnvelope
		err = json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()
		if err != nil {
			return processing.RawExtraction{}, fmt.Errorf("%w: decode operation: %v", ErrFailed, err)
		}

		switch envelope.Status {
		case "succeeded", "partiallySucceeded":
			if envelope.AnalyzeResult == nil {
				return processing.RawExtraction{}, fmt.Errorf("%w: operation succeeded without a result", ErrFailed)
			}
			return convertResult(envelope.AnalyzeResult), nil
		case "failed":
			return processing.RawExtraction{}, fmt.Errorf("%w: %s", ErrFailed, envelope.errorMessage())
		}

		if err := c.wait(ctx, c.pollInterval); err != nil {
			return processing.RawExtraction{}, err
		}
	}
}

func (c *Client) analyzeURL(model string) string {
	q := url.Values{}
	q.Set("api-version", apiVersion)
	if c.locale != "" {
		q.Set("locale", c.locale)
	}
	return fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s", c.endpoint, model, q.Encode())
}

// backoffDelay doubles the base delay per attempt, capped; an explicit
// Retry-After from the provider wins over the computed delay.
func (c *Client) backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	delay := c.backoffBase << uint(attempt)
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

// wait sleeps through the injected delay function while staying cancellable
func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return c.contextError(err)
	}
	c.sleep(delay)
	return c.contextError(ctx.Err())
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := c.contextError(ctx.Err()); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrFailed, err)
}

func (c *Client) contextError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
}

func modelForHint(hint processing.DocumentType) string {
	if hint == processing.DocumentTypeReceipt {
		return modelReceipt
	}
	return modelInvoice
}

func retryAfterHeader(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func decodeResult(r io.Reader) (processing.RawExtraction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return processing.RawExtraction{}, fmt.Errorf("%w: read result: %v", ErrFailed, err)
	}
	var envelope operationEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return processing.RawExtraction{}, fmt.Errorf("%w: decode result: %v", ErrFailed, err)
	}
	if envelope.AnalyzeResult != nil {
		return convertResult(envelope.AnalyzeResult), nil
	}
	// Some deployments return the analyze result unwrapped
	var result analyzeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return processing.RawExtraction{}, fmt.Errorf("%w: decode result: %v", ErrFailed, err)
	}
	return convertResult(&result), nil
}
