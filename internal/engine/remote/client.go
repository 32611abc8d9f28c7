// Package remote implements engine.Engine by calling a parser service over
// HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/syntaxd/internal/engine"
)

// Client sends tokenized sentences to a remote parser. The service accepts
// POST {base}/parse with {"tokens":[...]} and answers with a nested tree and
// its probability, and optionally the probability's natural log. A 422
// response means the service found no parse.
type Client struct {
	baseURL    string
	apiKey     string
	info       engine.Info
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithInfo overrides the identity reported by Info.
func WithInfo(info engine.Info) Option {
	return func(c *Client) { c.info = info }
}

// WithBackoff replaces the retry delay schedule.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		info:    engine.Info{Name: "Remote Constituency Parser", ShortName: "remote", Version: "0.7"},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: Backoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type parseRequest struct {
	Tokens []engine.Token `json:"tokens"`
}

type wireTree struct {
	Label    string      `json:"label"`
	Word     string      `json:"word,omitempty"`
	Start    int         `json:"start"`
	End      int         `json:"end"`
	Children []*wireTree `json:"children,omitempty"`
}

type parseResponse struct {
	Tree    *wireTree `json:"tree"`
	Prob    float64   `json:"prob"`
	LogProb *float64  `json:"log_prob,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func (c *Client) Info() engine.Info { return c.info }

// Tokenize runs locally; the service only sees tokens.
func (c *Client) Tokenize(text string) []engine.Token {
	return engine.Tokenize(text)
}

// Parse retries transient failures up to MaxRetries times.
func (c *Client) Parse(ctx context.Context, tokens []engine.Token) (*engine.Result, error) {
	if len(tokens) == 0 {
		return nil, engine.ErrEmptyInput
	}
	body, err := json.Marshal(parseRequest{Tokens: tokens})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			slog.Warn("retrying remote parse", "attempt", attempt, "backoff", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		res, err := c.parseOnce(ctx, body)
		if err == nil {
			return res, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("remote parse failed after %d retries: %w", MaxRetries, lastErr)
}

func (c *Client) parseOnce(ctx context.Context, body []byte) (*engine.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("remote: %s: %w", truncate(string(respBody), 200), engine.ErrNoParse)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("remote parser status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var pr parseResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("remote: %s: %w", pr.Error, engine.ErrNoParse)
	}
	if pr.Tree == nil {
		return nil, engine.ErrNoParse
	}
	res := &engine.Result{Tree: toNative(pr.Tree), Prob: pr.Prob}
	if pr.LogProb != nil {
		res.LogProb, res.HasLogProb = *pr.LogProb, true
	}
	return res, nil
}

func toNative(w *wireTree) *engine.Tree {
	term, ann := engine.SplitLabel(w.Label)
	t := &engine.Tree{Term: term, Annotation: ann, Word: w.Word, Start: w.Start, End: w.End}
	for _, c := range w.Children {
		t.Children = append(t.Children, toNative(c))
	}
	return t
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
