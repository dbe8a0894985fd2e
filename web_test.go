package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *hotpotatoGame) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	mux, game := newRouter(ctx, cfg, zap.NewNop())
	ts := httptest.NewServer(mux)

	t.Cleanup(func() {
		ts.Close()
		_ = game.manager.Close()
		cancel()
	})

	return ts, game
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, string) {
	t.Helper()

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestServe_HealthAndVersion(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, body := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))

	resp, body = get(t, ts, "/version")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hotpotato v"+releaseVersion+"\n", body)
}

func TestServe_Pages(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, body := get(t, ts, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `href="/play"`)

	resp, body = get(t, ts, "/hotpotato/ABCDEFGH")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `src="/assets/hotpotato/app.js"`)

	resp, _ = get(t, ts, "/play")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_Assets(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, body := get(t, ts, "/assets/hotpotato/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, body)

	resp, _ = get(t, ts, "/assets/hotpotato/app.js")
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, _ = get(t, ts, "/assets/hotpotato/game.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, ts, "/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, ts, "/favicons/favicon.svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	resp, body = get(t, ts, "/robots.txt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "User-agent")
}

func TestServe_NewGameRedirect(t *testing.T) {
	ts, game := newTestServer(t, testConfig())

	resp, _ := get(t, ts, "/hotpotato")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, regexp.MustCompile(`^/hotpotato/[A-Za-z0-9]{8}$`), resp.Header.Get("Location"))
	assert.Equal(t, 0, game.manager.Len(), "sessions start on first join")
}

func TestServe_Prefix(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/games/"
	ts, _ := newTestServer(t, cfg)

	resp, _ := get(t, ts, "/games/hotpotato")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, regexp.MustCompile(`^/games/hotpotato/[A-Za-z0-9]{8}$`), resp.Header.Get("Location"))

	resp, body := get(t, ts, "/games/hotpotato/ABCDEFGH")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-prefix="/games"`)

	resp, _ = get(t, ts, "/healthz")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServe_QRCode(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, body := get(t, ts, "/hotpotato/ABCDEFGH/qr")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "\x89PNG", body[:4])

	resp, _ = get(t, ts, "/hotpotato/not-valid/qr")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServe_ProfileHandlersOnlyWhenEnabled(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())
	resp, _ := get(t, ts, "/pprof/heap")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg := testConfig()
	cfg.profile = true
	ts, _ = newTestServer(t, cfg)
	resp, _ = get(t, ts, "/pprof/cmdline")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.0 kB", humanReadableSize(1000))
	assert.Equal(t, "1.5 MB", humanReadableSize(1_500_000))
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1:5000", realIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:5000", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:5000", realIP(r))

	r.Header.Set("CF-Connecting-IP", "not-an-ip")
	assert.Equal(t, "10.0.0.1:5000", realIP(r))
}
