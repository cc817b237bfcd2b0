package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cn-dashboard/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	reportPath     = "/report"
	loginPath      = "/auth/login"
	maxErrorBody   = 4 << 10
)

// Fetcher is the report source contract shared by the client, the cache
// and the CSV source.
type Fetcher interface {
	FetchReport(ctx context.Context, start, end time.Time) ([]models.DailyReportRecord, error)
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	// Token is used as-is when set and login is skipped.
	Token   string
	Timeout time.Duration
}

// APIError is a failure reported by the upstream API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("report api: %s", e.Message)
	}
	return fmt.Sprintf("report api: %d %s", e.StatusCode, e.Message)
}

var _ Fetcher = (*Client)(nil)

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	static    bool
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		now:      time.Now,
		token:    cfg.Token,
		static:   cfg.Token != "",
	}
}

type reportEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FetchReport loads the records of [start, end] sorted by date. A payload
// whose data is not an array is treated as an empty report.
func (c *Client) FetchReport(ctx context.Context, start, end time.Time) ([]models.DailyReportRecord, error) {
	token, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}

	records, err := c.getReport(ctx, token, start, end)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized && !c.static && c.username != "" {
		c.logger.Info("report api token rejected, logging in again")
		c.invalidate()
		if token, err = c.authorize(ctx); err != nil {
			return nil, err
		}
		records, err = c.getReport(ctx, token, start, end)
	}
	if err != nil {
		return nil, err
	}

	models.SortByDate(records)
	return records, nil
}

func (c *Client) getReport(ctx context.Context, token string, start, end time.Time) ([]models.DailyReportRecord, error) {
	q := url.Values{}
	q.Set("startDate", models.FormatDay(start))
	q.Set("endDate", models.FormatDay(end))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+reportPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var env reportEnvelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{Message: orDefault(env.Message, "request was not successful")}
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, nil
	}

	var records []models.DailyReportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode report records: %w", err)
	}
	return records, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage prefers the message field of a JSON error body.
func errorMessage(body []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return fallback
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
