// Package client provides the HTTP client for the case-management backend
// with SSO token handling, error classification and retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for backend calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_requests_total",
		Help: "Total backend requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casedesk_request_duration_seconds",
		Help:    "Backend request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_errors_total",
		Help: "Total backend errors by class",
	}, []string{"class"})

	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_assignments_total",
		Help: "Assigned cases by outcome",
	}, []string{"outcome"}) // "succeeded", "failed", "error"
)

// HeaderToken carries the SSO token on every request.
const HeaderToken = "SSO-TOKEN"

// TokenSource supplies the SSO token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, mainly for tests and one-off CLI calls.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("no token configured")
	}
	return string(s), nil
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API gateway, e.g. from ResolveEnvironment.
	BaseURL string `validate:"required,url"`

	// Tokens supplies the SSO token.
	Tokens TokenSource `validate:"required"`

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry applies to list requests. Assignments are never retried.
	Retry RetryConfig

	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration with safe defaults.
func DefaultConfig(baseURL string, tokens TokenSource) Config {
	return Config{
		BaseURL:   baseURL,
		Tokens:    tokens,
		UserAgent: "casedesk-client/1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client talks to the case backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	validate   *validator.Validate
	logger     zerolog.Logger
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		validate:   v,
		logger:     logging.NewLogger("client"),
	}, nil
}

// BaseURL returns the gateway URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do POSTs body to endpoint and decodes the envelope's data section into out
// (which may be nil). Server and network failures are retried per retry.
func (c *Client) Do(ctx context.Context, endpoint string, body any, out any, retry RetryConfig) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retryWithBackoff(ctx, retry, func() error {
		return c.doOnce(ctx, endpoint, payload, out)
	}, ClassOf)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, payload []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return &APIError{ErrorClass: ErrorClassAborted, Message: "request not sent", Err: err}
	}

	token, err := c.config.Tokens.Token(ctx)
	if err != nil || token == "" {
		errorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		if err == nil {
			err = errors.New("empty token")
		}
		return &APIError{ErrorClass: ErrorClassAuth, Message: "no SSO token", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderToken, token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	logger := c.logger.With().Str("endpoint", endpoint).Str("request_id", requestID).Logger()
	logger.Debug().Msg("Executing backend request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			requestsTotal.WithLabelValues(endpoint, "aborted").Inc()
			return &APIError{ErrorClass: ErrorClassAborted, Message: "request cancelled", Err: ctx.Err()}
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		logger.Warn().Err(err).Msg("HTTP request failed")
		return &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return &APIError{ErrorClass: ErrorClassAborted, StatusCode: resp.StatusCode, Message: "response cancelled", Err: ctx.Err()}
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &APIError{ErrorClass: ErrorClassNetwork, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			apiErr.Code = string(env.Code)
			apiErr.Message = env.Message
		}
		logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Backend request error")
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassServer, Message: "malformed response", Err: err}
	}

	if !env.Code.ok() {
		class := ErrorClassClient
		if env.Code.unauthorized() {
			class = ErrorClassAuth
		}
		errorsTotal.WithLabelValues(string(class)).Inc()
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: class, Code: string(env.Code), Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
			return &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassServer, Message: "malformed data", Err: err}
		}
	}

	return nil
}

// classifyStatus maps an HTTP status to an error class; "" means success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	case status < 200 || status >= 300:
		return ErrorClassServer
	default:
		return ""
	}
}

// FetchPage requests one page of a list endpoint. pageIndex is 1-based.
// It returns the page records and the total record count reported by the
// backend.
func (c *Client) FetchPage(ctx context.Context, endpoint string, payload map[string]any, pageIndex, size int) ([]cases.Record, int, error) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body[FieldPageIndex] = pageIndex
	body[FieldPageSize] = size

	var page PageData
	if err := c.Do(ctx, endpoint, body, &page, c.config.Retry); err != nil {
		return nil, 0, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", pageIndex).
		Int("records", len(page.Records)).
		Int("total_records", page.Total).
		Msg("Fetched page")

	return page.Records, page.Total, nil
}

// Assign dispatches cases to a handler. It is sent exactly once; the caller
// decides whether to retry.
func (c *Client) Assign(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	req.Assignee = strings.TrimSpace(req.Assignee)
	if err := c.validateAssign(req); err != nil {
		return nil, err
	}

	var result AssignResult
	if err := c.Do(ctx, EndpointAssign, req, &result, NoRetry()); err != nil {
		if !IsAborted(err) {
			assignmentsTotal.WithLabelValues("error").Add(float64(len(req.ApplicationNos)))
			c.logger.Error().Err(err).
				Int("cases", len(req.ApplicationNos)).
				Str("assignee", req.Assignee).
				Msg("Assignment failed")
		}
		return nil, err
	}

	// Older backends answer with an empty data section on full success.
	if result.Total() == 0 {
		result.Succeeded = append([]string(nil), req.ApplicationNos...)
	}

	assignmentsTotal.WithLabelValues("succeeded").Add(float64(len(result.Succeeded)))
	assignmentsTotal.WithLabelValues("failed").Add(float64(len(result.Failed)))
	c.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Str("assignee", req.Assignee).
		Msg("Assignment complete")

	return &result, nil
}

func (c *Client) validateAssign(req AssignRequest) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch {
			case fe.StructField() == "ApplicationNos" || strings.HasPrefix(fe.StructField(), "ApplicationNos["):
				return fmt.Errorf("assign: %w", cases.ErrEmptySelection)
			case fe.StructField() == "Assignee":
				return fmt.Errorf("assign: assignee: %w", cases.ErrEmptyInput)
			}
		}
	}
	return fmt.Errorf("assign: %w", err)
}
