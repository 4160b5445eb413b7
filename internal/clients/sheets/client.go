// Package sheets provides a client for the Google Sheets v4 REST API
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/foliosync/foliosync/internal/common"
	"github.com/foliosync/foliosync/internal/interfaces"
	"github.com/foliosync/foliosync/internal/models"
)

const (
	DefaultBaseURL   = "https://sheets.googleapis.com"
	DefaultTokenURL  = "https://oauth2.googleapis.com/token"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	// ReadOnlyScope is the only scope the engine ever requests
	ReadOnlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// ErrNotConfigured is returned when the client has no credentials to work with
var ErrNotConfigured = errors.New("sheets client not configured")

// Client implements the SheetClient interface
type Client struct {
	baseURL      string
	tokenURL     string
	creds        *ServiceAccount
	httpClient   *http.Client
	logger       *common.Logger
	limiter      *rate.Limiter
	maxAttempts  int
	retryBackoff time.Duration

	tokenSource *tokenSource
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTokenURL overrides the OAuth token endpoint
func WithTokenURL(tokenURL string) ClientOption {
	return func(c *Client) {
		c.tokenURL = tokenURL
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

// NewClient creates a new Sheets client. A nil ServiceAccount produces an
// unconfigured client whose calls fail with ErrNotConfigured.
func NewClient(creds *ServiceAccount, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		tokenURL: DefaultTokenURL,
		creds:    creds,
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

	c.tokenSource = newTokenSource(c.creds, c.tokenURL, c.httpClient)

	return c
}

// APIError represents a Sheets API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Sheets API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsAuth reports whether the error is a credential rejection
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the addressed spreadsheet or range is missing
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// get performs a rate-limited GET request, retrying transient failures with
// exponential backoff. Credential rejections and client errors are terminal.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.getOnce(ctx, path, result)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == c.maxAttempts {
			break
		}

		c.logger.Debug().
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Sheets request retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}

func (c *Client) getOnce(ctx context.Context, path string, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Sheets API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// apiErrorMessage extracts the structured Google error message, falling back
// to the raw body
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var authErr *models.SyncError
	if errors.As(err, &authErr) {
		return false
	}
	// transport-level failure
	return true
}

// wrapErr classifies a request failure for the sync engine
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *models.SyncError
	if errors.As(err, &se) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsAuth() {
			return models.NewAuthError(models.SourceSheet, op+" rejected", err)
		}
		return models.NewConnectivityError(models.SourceSheet, op+" failed", err)
	}
	return models.NewConnectivityError(models.SourceSheet, op+" failed", err)
}

// FetchRange retrieves a tabular range. The first row is treated as the
// header row and returned normalized.
func (c *Client) FetchRange(ctx context.Context, spreadsheetID, readRange string) (*models.SheetData, error) {
	if c.creds == nil {
		return nil, ErrNotConfigured
	}
	if spreadsheetID == "" || readRange == "" {
		return nil, ErrNotConfigured
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueRenderOption=FORMATTED_VALUE",
		url.PathEscape(spreadsheetID), url.PathEscape(readRange))

	var resp valuesResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, wrapErr("values.get", err)
	}

	data := &models.SheetData{FetchedAt: time.Now()}
	if len(resp.Values) == 0 {
		return data, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		headers[i] = models.NormalizeHeader(h)
	}
	data.Headers = headers
	data.Rows = resp.Values[1:]

	c.logger.Debug().
		Str("spreadsheet", spreadsheetID).
		Int("rows", len(data.Rows)).
		Msg("Sheet range fetched")

	return data, nil
}

type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// CheckReachable performs a metadata probe without reading cell values
func (c *Client) CheckReachable(ctx context.Context, spreadsheetID string) error {
	if c.creds == nil || spreadsheetID == "" {
		return ErrNotConfigured
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s?fields=spreadsheetId,properties.title",
		url.PathEscape(spreadsheetID))

	var resp metadataResponse
	if err := c.getOnce(ctx, path, &resp); err != nil {
		return wrapErr("spreadsheets.get", err)
	}

	c.logger.Debug().
		Str("spreadsheet", spreadsheetID).
		Str("title", resp.Properties.Title).
		Msg("Sheet reachable")

	return nil
}

type metadataResponse struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Properties    struct {
		Title string `json:"title"`
	} `json:"properties"`
}

// Ensure Client implements SheetClient
var _ interfaces.SheetClient = (*Client)(nil)
