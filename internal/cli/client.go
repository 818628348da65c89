package cli

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
	"strings"
	"time"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// ErrNoCandidate is returned by Select when the server found no executor.
var ErrNoCandidate = errors.New("no executor available")

// Client talks to the selection REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// SelectRequest mirrors the selection endpoint body.
type SelectRequest struct {
	ServiceDefinition string   `json:"serviceDefinition"`
	MinVersion        *int     `json:"minVersion,omitempty"`
	MaxVersion        *int     `json:"maxVersion,omitempty"`
	Exclusions        []string `json:"exclusions,omitempty"`
}

func (c *Client) Select(ctx context.Context, req SelectRequest) (*executor.Executor, error) {
	var out executor.Executor
	err := c.do(ctx, http.MethodPost, "/v1/selections", req, &out)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == "NO_CANDIDATE" {
		return nil, ErrNoCandidate
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Release(ctx context.Context, executorID string) error {
	return c.do(ctx, http.MethodPost, "/v1/executors/"+url.PathEscape(executorID)+"/release", nil, nil)
}

func (c *Client) List(ctx context.Context, limit, offset int) ([]*executor.Executor, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out struct {
		Executors []*executor.Executor `json:"executors"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/executors?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Executors, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
