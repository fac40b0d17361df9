// Package oracle talks to the retrieval-augmented news sentiment service.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
)

// Client answers a sentiment prompt with free text.
type Client interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// HTTPClient implements Client against the vector RAG service. It invokes
// the chain first and falls back to the similarity endpoint.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPClient creates a client with optional proxy support.
func NewHTTPClient(baseURL, proxyURL string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Query returns the service's answer to prompt.
func (c *HTTPClient) Query(ctx context.Context, prompt string) (string, error) {
	answer, err := c.invoke(ctx, prompt)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	log.Debug().Err(err).Msg("oracle invoke failed, trying similarity endpoint")
	return c.similar(ctx, prompt)
}

func (c *HTTPClient) invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"input": prompt})
	if err != nil {
		return "", fmt.Errorf("marshal invoke: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Output json.RawMessage `json:"output"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("invoke: %w", err)
	}
	return decodeOutput(result.Output)
}

func (c *HTTPClient) similar(ctx context.Context, prompt string) (string, error) {
	endpoint := c.BaseURL + "/vector-store/get-similar/" + url.PathEscape(prompt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	var result struct {
		Answer *string `json:"answer"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("get similar: %w", err)
	}
	if result.Answer == nil {
		return "", errors.New("get similar: missing answer")
	}
	return *result.Answer, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d, body: %s", model.ErrUpstreamUnavailable, resp.StatusCode, string(body))
		}
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeOutput accepts either a plain string or a chat message object.
func decodeOutput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("invoke: empty output")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var msg struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("invoke: decode output: %w", err)
	}
	return msg.Content, nil
}
