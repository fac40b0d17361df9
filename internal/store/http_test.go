package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend emulates the snapshot REST service in memory.
type fakeBackend struct {
	mu      sync.Mutex
	records map[string][]byte
	methods []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.methods = append(b.methods, r.Method+" "+r.URL.Path)

	body, _ := io.ReadAll(r.Body)
	switch r.Method {
	case http.MethodGet:
		data, ok := b.records[r.URL.Path]
		if !ok {
			http.Error(w, `{"detail":"Not Found"}`, http.StatusNotFound)
			return
		}
		w.Write(data)
	case http.MethodPut:
		if _, ok := b.records[r.URL.Path]; !ok {
			http.Error(w, `{"detail":"Not Found"}`, http.StatusNotFound)
			return
		}
		b.records[r.URL.Path] = body
	case http.MethodPost:
		tf := typeOf(body)
		b.records[r.URL.Path+"/"+tf] = body
		w.WriteHeader(http.StatusCreated)
	}
}

// typeOf pulls the "type" field out of a snapshot body.
func typeOf(body []byte) string {
	s := string(body)
	i := strings.Index(s, `"type":"`)
	if i < 0 {
		return ""
	}
	s = s[i+len(`"type":"`):]
	return s[:strings.Index(s, `"`)]
}

func TestHTTPStore(t *testing.T) {
	backend := &fakeBackend{records: map[string][]byte{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "")
	defer s.Close()
	exerciseStore(t, s)

	assert.Contains(t, backend.methods, "POST /api/moving-averages")
	assert.Contains(t, backend.methods, "PUT /api/moving-averages/day")
	assert.Contains(t, backend.methods, "GET /api/rsi/day")
	assert.Contains(t, backend.methods, "POST /api/macd")
}

func TestHTTPStore_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL, "").GetMACD(context.Background(), model.Hour4)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 503")

	_, err = NewHTTPStore("http://127.0.0.1:1", "").GetRSI(context.Background(), model.Hour4)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestHTTPStore_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad body", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewHTTPStore(srv.URL, "").PutRSI(context.Background(), sampleRSI(model.Day))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPStore_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"day","ma_values":{"ema_7":[]}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL, "").GetMovingAverages(context.Background(), model.Day)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}
