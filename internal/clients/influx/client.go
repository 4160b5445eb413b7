// Package influx provides a client for the InfluxDB 1.x HTTP API
package influx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/foliosync/foliosync/internal/common"
	"github.com/foliosync/foliosync/internal/interfaces"
	"github.com/foliosync/foliosync/internal/models"
)

const (
	DefaultBaseURL   = "http://localhost:8086"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// Client implements the TimeSeriesClient interface
type Client struct {
	baseURL      string
	username     string
	password     string
	httpClient   *http.Client
	logger       *common.Logger
	limiter      *rate.Limiter
	maxAttempts  int
	retryBackoff time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCredentials sets basic-auth credentials
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the transient-failure retry policy
func WithRetry(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// NewClient creates a new InfluxDB client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:       common.NewSilentLogger(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an InfluxDB API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("InfluxDB API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsAuth reports whether the error is a credential rejection
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// isDatabaseMissing reports whether the store rejected the request because
// the target database does not exist
func isDatabaseMissing(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound ||
		strings.Contains(apiErr.Message, "database not found")
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// doRetry runs one operation attempt function under the bounded
// exponential-backoff policy
func (c *Client) doRetry(ctx context.Context, op string, attempt func(context.Context) error) error {
	var lastErr error
	backoff := c.retryBackoff

	for i := 1; i <= c.maxAttempts; i++ {
		lastErr = attempt(ctx)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		if i == c.maxAttempts {
			break
		}

		c.logger.Debug().
			Str("op", op).
			Int("attempt", i).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("InfluxDB request retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// Ping verifies the store answers at all
func (c *Client) Ping(ctx context.Context) error {
	err := c.doRetry(ctx, "ping", c.pingOnce)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsAuth() {
		return models.NewAuthError(models.SourceTimeSeries, "ping rejected", err)
	}
	return models.NewConnectivityError(models.SourceTimeSeries, "ping failed", err)
}

func (c *Client) pingOnce(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(body), Endpoint: "/ping"}
	}

	c.logger.Debug().
		Str("version", resp.Header.Get("X-Influxdb-Version")).
		Msg("InfluxDB ping ok")

	return nil
}

// EnsureDatabase creates the database when it does not exist yet
func (c *Client) EnsureDatabase(ctx context.Context, name string) error {
	if name == "" {
		return models.NewProvisioningError(models.SourceTimeSeries, "no database configured", nil)
	}

	var resp queryResponse
	err := c.doRetry(ctx, "show databases", func(ctx context.Context) error {
		return c.queryOnce(ctx, "SHOW DATABASES", "", &resp)
	})
	if err != nil {
		return wrapProvisioningErr("list databases failed", err)
	}

	for _, result := range resp.Results {
		for _, series := range result.Series {
			for _, row := range series.Values {
				if len(row) > 0 {
					if existing, ok := row[0].(string); ok && existing == name {
						return nil
					}
				}
			}
		}
	}

	c.logger.Info().Str("database", name).Msg("Creating database")

	var createResp queryResponse
	stmt := fmt.Sprintf("CREATE DATABASE %q", name)
	err = c.doRetry(ctx, "create database", func(ctx context.Context) error {
		return c.queryOnce(ctx, stmt, "", &createResp)
	})
	if err != nil {
		return wrapProvisioningErr("create database failed", err)
	}

	return nil
}

func wrapProvisioningErr(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsAuth() {
		return models.NewAuthError(models.SourceTimeSeries, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewConnectivityError(models.SourceTimeSeries, op, err)
	}
	if !errors.As(err, &apiErr) {
		// transport failure, the store never answered
		return models.NewConnectivityError(models.SourceTimeSeries, op, err)
	}
	return models.NewProvisioningError(models.SourceTimeSeries, op, err)
}

// WritePoints persists a batch in line protocol, retrying transient failures
func (c *Client) WritePoints(ctx context.Context, database string, points []models.Point) error {
	if len(points) == 0 {
		return nil
	}

	body, err := encodeLines(points)
	if err != nil {
		return models.NewWriteFailedError(models.SourceTimeSeries, "encode points", err)
	}

	err = c.doRetry(ctx, "write", func(ctx context.Context) error {
		return c.writeOnce(ctx, database, body)
	})
	if err == nil {
		c.logger.Debug().Int("points", len(points)).Str("database", database).Msg("Points written")
		return nil
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.IsAuth():
		return models.NewAuthError(models.SourceTimeSeries, "write rejected", err)
	case isDatabaseMissing(err):
		return models.NewProvisioningError(models.SourceTimeSeries, "database missing on write", err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return models.NewConnectivityError(models.SourceTimeSeries, "write aborted", err)
	default:
		return models.NewWriteFailedError(models.SourceTimeSeries,
			fmt.Sprintf("write of %d points failed", len(points)), err)
	}
}

func (c *Client) writeOnce(ctx context.Context, database, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	path := "/write?" + url.Values{"db": {database}, "precision": {"ns"}}.Encode()
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(respBody), Endpoint: "/write"}
	}

	return nil
}

// QueryDailyMeans returns the daily mean of one field over a trailing window
func (c *Client) QueryDailyMeans(ctx context.Context, database, measurement, field string, days int) ([]models.Sample, error) {
	stmt := fmt.Sprintf(`SELECT mean(%q) FROM %q WHERE time > now() - %dd GROUP BY time(1d)`,
		field, measurement, days)

	var resp queryResponse
	err := c.doRetry(ctx, "query", func(ctx context.Context) error {
		return c.queryOnce(ctx, stmt, database, &resp)
	})
	if err != nil {
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.IsAuth():
			return nil, models.NewAuthError(models.SourceTimeSeries, "query rejected", err)
		case isDatabaseMissing(err):
			return nil, models.NewProvisioningError(models.SourceTimeSeries, "database missing on query", err)
		default:
			return nil, models.NewConnectivityError(models.SourceTimeSeries, "query failed", err)
		}
	}

	samples := []models.Sample{}
	for _, result := range resp.Results {
		for _, series := range result.Series {
			for _, row := range series.Values {
				if len(row) < 2 || row[1] == nil {
					continue // empty day bucket
				}
				rawTime, ok := row[0].(string)
				if !ok {
					continue
				}
				ts, err := time.Parse(time.RFC3339, rawTime)
				if err != nil {
					continue
				}
				value, ok := row[1].(float64)
				if !ok {
					continue
				}
				samples = append(samples, models.Sample{Time: ts, Value: value})
			}
		}
	}

	c.logger.Debug().
		Str("measurement", measurement).
		Int("days", days).
		Int("samples", len(samples)).
		Msg("Daily means queried")

	return samples, nil
}

// queryOnce posts one InfluxQL statement. Statement-level errors returned
// with HTTP 200 are surfaced as APIErrors too.
func (c *Client) queryOnce(ctx context.Context, stmt, database string, result *queryResponse) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{"q": {stmt}}
	if database != "" {
		form.Set("db", database)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/query", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug().Str("q", stmt).Msg("InfluxDB query")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(body), Endpoint: "/query"}
	}

	*result = queryResponse{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: result.Error, Endpoint: "/query"}
	}
	for _, r := range result.Results {
		if r.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: r.Error, Endpoint: "/query"}
		}
	}

	return nil
}

type queryResponse struct {
	Results []struct {
		StatementID int    `json:"statement_id"`
		Error       string `json:"error"`
		Series      []struct {
			Name    string          `json:"name"`
			Columns []string        `json:"columns"`
			Values  [][]interface{} `json:"values"`
		} `json:"series"`
	} `json:"results"`
	Error string `json:"error"`
}

// apiErrorMessage extracts the JSON error message, falling back to the raw body
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}

// Ensure Client implements TimeSeriesClient
var _ interfaces.TimeSeriesClient = (*Client)(nil)
