// Package nlu wraps the external intent classifier service.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/avachat/internal/config"
)

// Intent is a recognised intent with the classifier's confidence in it.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Entity is a slot value extracted from the message text.
type Entity struct {
	Name  string `json:"entity"`
	Value string `json:"value"`
}

// Result is the classifier's full response for a single message.
// Intent is nil when the classifier recognised nothing.
type Result struct {
	Text     string   `json:"text"`
	Intent   *Intent  `json:"intent"`
	Entities []Entity `json:"entities"`
	// Raw keeps the untouched response body for debugging and for fields
	// this struct does not model.
	Raw json.RawMessage `json:"-"`
}

// ClassifierError distinguishes classifier failures (network, non-2xx, bad
// payload) from ordinary processing errors so the caller can apologise
// without advancing conversation state.
type ClassifierError struct {
	Op  string
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Op, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// Client calls the NLU parse endpoint over HTTP.
type Client struct {
	baseURL     string
	endpoint    string
	httpClient  *http.Client
	RateLimiter *rate.Limiter
}

// NewClient builds a classifier client from config.
func NewClient(cfg config.NLUConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		endpoint:    cfg.ParseEndpoint,
		httpClient:  &http.Client{Timeout: timeout},
		RateLimiter: rate.NewLimiter(rate.Every(1*time.Second), 5), // 5 requests per second
	}
}

// Parse sends the message text to the classifier and decodes its verdict.
func (c *Client) Parse(ctx context.Context, text string) (*Result, error) {
	if err := c.RateLimiter.Wait(ctx); err != nil {
		return nil, &ClassifierError{Op: "rate wait", Err: err}
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, &ClassifierError{Op: "encode", Err: err}
	}

	url := c.baseURL + c.endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClassifierError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClassifierError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ClassifierError{
			Op:  "request",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClassifierError{Op: "read", Err: err}
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ClassifierError{Op: "decode", Err: err}
	}
	result.Raw = body
	return &result, nil
}
