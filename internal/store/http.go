package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
)

// HTTPStore talks to the snapshot REST service.
//
//	GET  /api/<resource>/<timeframe>
//	PUT  /api/<resource>/<timeframe>
//	POST /api/<resource>            (first write)
type HTTPStore struct {
	jsonStore
}

// NewHTTPStore creates a store against baseURL with optional proxy support.
func NewHTTPStore(baseURL, proxyURL string) *HTTPStore {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPStore{jsonStore{&httpBlobs{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}}}
}

type httpBlobs struct {
	baseURL string
	client  *http.Client
}

func resource(kind model.IndicatorKind) string {
	switch kind {
	case model.KindMovingAverage:
		return "moving-averages"
	case model.KindRSI:
		return "rsi"
	}
	return "macd"
}

func (h *httpBlobs) get(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/%s/%s", h.baseURL, resource(kind), url.PathEscape(string(tf)))
	return h.do(ctx, http.MethodGet, endpoint, nil)
}

// put updates in place and falls back to a create when the service has no
// record yet.
func (h *httpBlobs) put(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, payload []byte) error {
	endpoint := fmt.Sprintf("%s/api/%s/%s", h.baseURL, resource(kind), url.PathEscape(string(tf)))
	_, err := h.do(ctx, http.MethodPut, endpoint, payload)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	log.Info().Str("kind", string(kind)).Str("timeframe", string(tf)).Msg("creating snapshot")
	_, err = h.do(ctx, http.MethodPost, fmt.Sprintf("%s/api/%s", h.baseURL, resource(kind)), payload)
	return err
}

func (h *httpBlobs) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", model.ErrUpstreamUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", model.ErrUpstreamUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s %s: status %d, body: %s", model.ErrUpstreamUnavailable, method, endpoint, resp.StatusCode, string(data))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s: status %d, body: %s", method, endpoint, resp.StatusCode, string(data))
	}
	return data, nil
}

func (h *httpBlobs) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
