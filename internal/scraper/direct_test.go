package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/parser"
	"github.com/maltedev/olx-scraper/internal/ratelimit"
)

type requestLog struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r.Clone(context.Background()))
}

func TestDirectSourceFetchesEveryPage(t *testing.T) {
	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html>page " + r.URL.RawQuery + "</html>"))
	}))
	defer server.Close()

	capture := newRecordingCapturer()
	src, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{
		Timeout: 5 * time.Second,
		Limiter: ratelimit.NoDelay(),
		Agents:  NewUserAgentPool([]string{"ua-test"}),
		Capture: capture,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "direct", src.Name())

	pages, err := src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 3})
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, server.URL+"/items/q-car-cover", pages[0].URL)
	assert.Equal(t, parser.FormatHTML, pages[0].Format)
	assert.Equal(t, 3, pages[1].Number)
	assert.Equal(t, server.URL+"/items/q-car-cover?page=3", pages[1].URL)

	require.Len(t, log.requests, 3)
	for _, r := range log.requests {
		assert.Equal(t, "/items/q-car-cover", r.URL.Path)
		assert.Equal(t, "ua-test", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
	}

	assert.Contains(t, capture.files, "olx_requests_page_1.html")
	assert.Contains(t, capture.files, "olx_requests_page_2.html")
	assert.Contains(t, capture.files, "olx_requests_page_3.html")
}

func TestDirectSourceTransportFailureSkipsPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	src, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{Timeout: time.Second}, testLogger())
	require.NoError(t, err)

	pages, err := src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 2})
	assert.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDirectSourceFetchPageErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{Timeout: time.Second}, testLogger())
	require.NoError(t, err)

	_, err = src.fetchPage(context.Background(), "car cover", 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransport))
	assert.Contains(t, err.Error(), "503")
}

func TestDirectSourceCapturesChallengePage(t *testing.T) {
	const challenge = "<html><title>Access Denied</title>Are you a robot? (captcha)</html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(challenge))
	}))
	defer server.Close()

	capture := newRecordingCapturer()
	direct, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{Timeout: time.Second, Capture: capture}, testLogger())
	require.NoError(t, err)
	api, err := NewAPISource(Site{BaseURL: server.URL}, APIOptions{Timeout: time.Second, Capture: capture}, testLogger())
	require.NoError(t, err)

	pages, err := direct.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 1})
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = api.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 1})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransport))

	assert.Equal(t, challenge, capture.files["olx_requests_page_1.html"])
	assert.Equal(t, challenge, capture.files["olx_api_response.json"])
}

func TestDirectSourceLogsFailureStack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	src, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{Timeout: time.Second}, logger)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "failure stack")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, "direct.go")
}

func TestDirectSourceOmitsStackAboveDebug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	src, err := NewDirectSource(Site{BaseURL: server.URL}, DirectOptions{Timeout: time.Second}, logger)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 1})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "failed to fetch page")
	assert.NotContains(t, buf.String(), "stack=")
}

func TestDirectSourceStopsOnCancel(t *testing.T) {
	src, err := NewDirectSource(Site{BaseURL: "http://127.0.0.1:1"}, DirectOptions{
		Timeout: time.Second,
		Limiter: ratelimit.NewSimpleRateLimiter(time.Minute, time.Minute),
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Fetch(ctx, Query{Term: "car cover", MaxPages: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDirectSourceRejectsBadProxy(t *testing.T) {
	_, err := NewDirectSource(SiteForCountry("in"), DirectOptions{Proxy: "::not a url"}, testLogger())
	assert.Error(t, err)
}

func TestAPISourceFetch(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	capture := newRecordingCapturer()
	src, err := NewAPISource(Site{BaseURL: server.URL}, APIOptions{
		Timeout: time.Second,
		Agents:  NewUserAgentPool([]string{"ua-api"}),
		Capture: capture,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "api", src.Name())

	pages, err := src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 3})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, parser.FormatJSON, pages[0].Format)
	assert.Equal(t, `{"data":[]}`, pages[0].Content)

	require.NotNil(t, got)
	assert.Equal(t, "/api/relevance/search", got.URL.Path)
	assert.Equal(t, "car cover", got.URL.Query().Get("query"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "XMLHttpRequest", got.Header.Get("X-Requested-With"))
	assert.Equal(t, "ua-api", got.Header.Get("User-Agent"))
	assert.Equal(t, `{"data":[]}`, capture.files["olx_api_response.json"])
}

func TestAPISourceNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src, err := NewAPISource(Site{BaseURL: server.URL}, APIOptions{Timeout: time.Second}, testLogger())
	require.NoError(t, err)

	pages, err := src.Fetch(context.Background(), Query{Term: "car cover", MaxPages: 1})
	assert.Empty(t, pages)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransport))
}
