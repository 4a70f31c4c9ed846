package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/use-agent/browserd/config"
	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
	"github.com/use-agent/browserd/pool"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// Minimal no-op engine stack so the router can be exercised without a browser.

type nopDriver struct{}

func (nopDriver) Start(ctx context.Context) error { return nil }
func (nopDriver) Launch(ctx context.Context, opts engine.LaunchOptions) (engine.Browser, error) {
	return nopBrowser{kind: opts.Kind}, nil
}
func (nopDriver) Stop() error { return nil }

type nopBrowser struct{ kind engine.Kind }

func (b nopBrowser) Kind() engine.Kind { return b.kind }
func (b nopBrowser) NewTarget(ctx context.Context, opts engine.TargetOptions) (engine.Target, error) {
	return &nopTarget{}, nil
}
func (b nopBrowser) Close() error { return nil }

type nopTarget struct{}

func (t *nopTarget) Navigate(ctx context.Context, url string, opts engine.NavigateOptions) (string, error) {
	return url, nil
}
func (t *nopTarget) Click(ctx context.Context, selector string, opts engine.ClickOptions) error {
	return nil
}
func (t *nopTarget) Fill(ctx context.Context, selector, value string, opts engine.FillOptions) error {
	return nil
}
func (t *nopTarget) WaitForSelector(ctx context.Context, selector string, opts engine.WaitOptions) error {
	return nil
}
func (t *nopTarget) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (t *nopTarget) Attribute(ctx context.Context, sel, name string) (string, error) {
	return "", nil
}
func (t *nopTarget) Title(ctx context.Context) (string, error) { return "", nil }
func (t *nopTarget) URL() string { return "about:blank" }
func (t *nopTarget) HTML(ctx context.Context) (string, error) {
	return "<html></html>", nil
}
func (t *nopTarget) Screenshot(ctx context.Context, opts engine.ScreenshotOptions) ([]byte, error) {
	return nil, nil
}
func (t *nopTarget) Evaluate(ctx context.Context, expression string) (any, error) { return nil, nil }
func (t *nopTarget) Close(ctx context.Context) error                              { return nil }

// --- helper functions ---

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Pool: config.PoolConfig{
			EngineKind:         "chromium",
			Headless:           true,
			MaxSessions:        5,
			DefaultTimeout:     30 * time.Second,
			ViewportWidth:      1280,
			ViewportHeight:     720,
			CleanupConcurrency: 2,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *pool.Manager) {
	t.Helper()
	m := pool.NewManager(cfg.Pool, nopDriver{})
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return NewRouter(m, cfg, time.Now()), m
}

func doGet(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, w.Body.String())
	}
	if resp.Error == nil {
		t.Fatalf("error body has no error detail: %s", w.Body.String())
	}
	return resp
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	r, m := newTestRouter(t, testConfig())
	if _, err := m.CreateSession(context.Background(), pool.CreateOptions{}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := doGet(r, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if !resp.Pool.Initialized || resp.Pool.SessionCount != 1 {
		t.Errorf("pool = %+v", resp.Pool)
	}
	if resp.Version == "" || resp.Uptime == "" {
		t.Errorf("version %q / uptime %q should be set", resp.Version, resp.Uptime)
	}
}

func TestHealthEndpointNotInitialized(t *testing.T) {
	cfg := testConfig()
	m := pool.NewManager(cfg.Pool, nopDriver{})
	r := NewRouter(m, cfg, time.Now())

	w := doGet(r, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.Status != "not_initialized" {
		t.Errorf("status = %q, want not_initialized", resp.Status)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	r, m := newTestRouter(t, testConfig())
	for i := 0; i < 2; i++ {
		if _, err := m.CreateSession(context.Background(), pool.CreateOptions{}); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	w := doGet(r, "/api/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.SessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.Count != 2 || len(resp.Sessions) != 2 {
		t.Errorf("count %d with %d sessions, want 2/2", resp.Count, len(resp.Sessions))
	}
}

func TestGetSessionEndpoint(t *testing.T) {
	r, m := newTestRouter(t, testConfig())
	sess, err := m.CreateSession(context.Background(), pool.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := doGet(r, "/api/v1/sessions/"+sess.ID(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var st models.SessionStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if st.ID != sess.ID() || st.State != "ready" {
		t.Errorf("status = %+v", st)
	}
}

func TestGetSessionEndpointNotFound(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doGet(r, "/api/v1/sessions/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Code != models.ErrCodeSessionNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, models.ErrCodeSessionNotFound)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret-key"}}
	r, _ := newTestRouter(t, cfg)

	t.Run("missing key", func(t *testing.T) {
		w := doGet(r, "/api/v1/sessions", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != models.ErrCodeUnauthorized {
			t.Errorf("code = %q", resp.Error.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		w := doGet(r, "/api/v1/sessions", map[string]string{"X-API-Key": "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("header key", func(t *testing.T) {
		w := doGet(r, "/api/v1/sessions", map[string]string{"X-API-Key": "secret-key"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("bearer key", func(t *testing.T) {
		w := doGet(r, "/api/v1/sessions", map[string]string{"Authorization": "Bearer secret-key"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("health bypasses auth", func(t *testing.T) {
		w := doGet(r, "/api/v1/health", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	r, _ := newTestRouter(t, cfg)

	var limited bool
	for i := 0; i < 5; i++ {
		w := doGet(r, "/api/v1/sessions", nil)
		if w.Code == http.StatusTooManyRequests {
			resp := decodeError(t, w)
			if resp.Error.Code != models.ErrCodeRateLimited {
				t.Errorf("code = %q, want %q", resp.Error.Code, models.ErrCodeRateLimited)
			}
			limited = true
			break
		}
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if !limited {
		t.Error("burst of 5 requests against burst limit 2 was never rate limited")
	}
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	w := doGet(r, "/api/v1/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
