package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"izakaya/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "IZAKAYA_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the izakaya API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListRecords(ctx context.Context, query url.Values) ([]models.Record, error) {
	var resp []models.Record
	err := c.do(ctx, http.MethodGet, "/records", query, nil, &resp)
	return resp, err
}

func (c *Client) GetRecord(ctx context.Context, id int64) (models.Record, error) {
	var resp models.Record
	err := c.do(ctx, http.MethodGet, recordPath(id), nil, nil, &resp)
	return resp, err
}

// CreateRecord uploads a new record with its photos.
func (c *Client) CreateRecord(ctx context.Context, form RecordForm) (RecordResponse, error) {
	var resp RecordResponse
	err := c.doMultipart(ctx, http.MethodPost, "/records", form, &resp)
	return resp, err
}

// UpdateRecord applies scalar changes and an attachment delta to a record.
func (c *Client) UpdateRecord(ctx context.Context, id int64, form RecordForm) (RecordResponse, error) {
	var resp RecordResponse
	err := c.doMultipart(ctx, http.MethodPut, recordPath(id), form, &resp)
	return resp, err
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, recordPath(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListGenres(ctx context.Context) ([]string, error) {
	var resp []string
	err := c.do(ctx, http.MethodGet, "/genres", nil, nil, &resp)
	return resp, err
}

func recordPath(id int64) string {
	return "/records/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// doMultipart streams the form through a pipe so photo bytes are never
// buffered whole in memory.
func (c *Client) doMultipart(ctx context.Context, method, path string, form RecordForm, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := form.Write(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
