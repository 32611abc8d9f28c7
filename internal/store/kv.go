package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/syntaxd/internal/forest"
)

// KV stores forests in a pathstore-style HTTP key/value service under
// {prefix}/{key}.
type KV struct {
	baseURL    string
	apiKey     string
	prefix     string
	ttl        time.Duration
	httpClient *http.Client
}

func NewKV(baseURL, apiKey, prefix string, ttl time.Duration) *KV {
	return &KV{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prefix:  strings.Trim(prefix, "/"),
		ttl:     ttl,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type kvPutRequest struct {
	Value     *forest.Forest `json:"value"`
	Source    string         `json:"source,omitempty"`
	ExpiresAt string         `json:"expires_at,omitempty"`
}

type kvGetResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func (k *KV) url(key string) string {
	if k.prefix == "" {
		return k.baseURL + "/kv/" + key
	}
	return k.baseURL + "/kv/" + k.prefix + "/" + key
}

func (k *KV) Put(ctx context.Context, key string, f *forest.Forest) error {
	req := kvPutRequest{Value: f, Source: f.Source}
	if k.ttl > 0 {
		req.ExpiresAt = time.Now().Add(k.ttl).UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal forest: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, k.url(key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	k.auth(httpReq)

	resp, err := k.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put forest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("put forest %s: status %d: %s", key, resp.StatusCode, string(respBody))
	}
	return nil
}

func (k *KV) Get(ctx context.Context, key string) (*forest.Forest, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	k.auth(httpReq)

	resp, err := k.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("get forest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, fmt.Errorf("get forest %s: status %d: %s", key, resp.StatusCode, string(respBody))
	}

	var node kvGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, false, fmt.Errorf("decode node: %w", err)
	}
	var f forest.Forest
	if err := json.Unmarshal(node.Value, &f); err != nil {
		return nil, false, fmt.Errorf("decode forest: %w", err)
	}
	return &f, true, nil
}

func (k *KV) auth(r *http.Request) {
	if k.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+k.apiKey)
	}
}

// Close releases idle connections.
func (k *KV) Close() {
	k.httpClient.CloseIdleConnections()
}
