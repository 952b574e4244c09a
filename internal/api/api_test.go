package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MagnunAVF/boost-shortener/internal"
	"github.com/MagnunAVF/boost-shortener/internal/api"
)

const baseURL = "http://localhost:3000"

type memoryCache struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return "", internal.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

type testEnv struct {
	app   *fiber.App
	svc   *internal.Service
	store *internal.GormStore
}

func newTestEnv(t *testing.T, deps api.Deps) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&internal.URL{}, &internal.URLAnalytics{}))

	store := internal.NewGormStore(db)
	cache := &memoryCache{items: make(map[string]string)}
	svc := internal.NewService(store, cache, internal.ServiceOptions{})

	deps.Service = svc
	deps.DB = store
	if deps.BaseURL == "" {
		deps.BaseURL = baseURL
	}

	return &testEnv{app: api.NewApp(deps), svc: svc, store: store}
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v), "body: %s", raw)
}

func TestShortenEndpoint(t *testing.T) {
	t.Run("creates a short url", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		resp := postJSON(t, env.app, "/api/urls", `{"url":"https://example.com/a"}`)

		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		var body struct {
			Code     string `json:"code"`
			ShortURL string `json:"shortUrl"`
		}
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.Code)
		assert.LessOrEqual(t, len(body.Code), 6)
		assert.Equal(t, baseURL+"/"+body.Code, body.ShortURL)
	})

	t.Run("returns the same code for a duplicate url", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		var first, second struct {
			Code string `json:"code"`
		}
		resp := postJSON(t, env.app, "/api/urls", `{"url":"https://example.com/a"}`)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		decodeBody(t, resp, &first)

		resp = postJSON(t, env.app, "/api/urls", `{"url":"https://example.com/a"}`)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		decodeBody(t, resp, &second)

		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("accepts a future expiration", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

		resp := postJSON(t, env.app, "/api/urls",
			fmt.Sprintf(`{"url":"https://example.com/a","expiresAt":%q}`, expiry))

		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})

	t.Run("rejects an invalid url", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		resp := postJSON(t, env.app, "/api/urls", `{"url":"not a url"}`)

		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		assert.Contains(t, body.Error, "url must be a valid")
	})

	t.Run("rejects a past expiration", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		expiry := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

		resp := postJSON(t, env.app, "/api/urls",
			fmt.Sprintf(`{"url":"https://example.com/a","expiresAt":%q}`, expiry))

		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		assert.Contains(t, body.Error, "future")
	})

	t.Run("joins multiple validation problems", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		expiry := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

		resp := postJSON(t, env.app, "/api/urls",
			fmt.Sprintf(`{"url":"","expiresAt":%q}`, expiry))

		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		assert.Contains(t, body.Error, "url must be a valid")
		assert.Contains(t, body.Error, ", ")
		assert.Contains(t, body.Error, "future")
	})
}

func TestRedirectEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("redirects to the original url", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		u, err := env.svc.CreateShortURL(ctx, "https://example.com/a", nil)
		require.NoError(t, err)

		resp := get(t, env.app, "/"+u.ShortCode)

		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/a", resp.Header.Get("Location"))
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		resp := get(t, env.app, "/nosuch")

		require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, "URL not found", body.Error)
	})

	t.Run("expired code returns 410", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		past := time.Now().Add(-time.Second)
		u, err := env.svc.CreateShortURL(ctx, "https://example.com/b", &past)
		require.NoError(t, err)

		resp := get(t, env.app, "/"+u.ShortCode)

		require.Equal(t, fiber.StatusGone, resp.StatusCode)
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, "URL expired", body.Error)
	})
}

func TestListEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("returns records most recent first", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		base := time.Now().Add(-time.Hour).Truncate(time.Second)
		for i, target := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
			code, err := internal.GenerateCode()
			require.NoError(t, err)
			require.NoError(t, env.store.Create(ctx, &internal.URL{
				LongURL:   target,
				ShortCode: code,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		resp := get(t, env.app, "/api/urls")

		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var records []internal.URL
		decodeBody(t, resp, &records)
		require.Len(t, records, 3)
		assert.Equal(t, "https://example.com/3", records[0].LongURL)
		assert.Equal(t, "https://example.com/1", records[2].LongURL)
	})

	t.Run("returns an empty array with no records", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		resp := get(t, env.app, "/api/urls")

		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(raw))
	})
}

func TestStatsEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("reports zero clicks for a fresh code", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})
		u, err := env.svc.CreateShortURL(ctx, "https://example.com/a", nil)
		require.NoError(t, err)

		resp := get(t, env.app, "/stats/"+u.ShortCode)

		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var body struct {
			ShortCode  string `json:"shortCode"`
			ClickCount int64  `json:"clickCount"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, u.ShortCode, body.ShortCode)
		assert.Zero(t, body.ClickCount)
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		env := newTestEnv(t, api.Deps{})

		resp := get(t, env.app, "/stats/nosuch")

		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, api.Deps{})

	resp := get(t, env.app, "/health")

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Status string `json:"status"`
		DB     string `json:"db"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "healthy", body.DB)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, api.Deps{RateLimitMax: 2, RateLimitWindow: time.Minute})

	resp := get(t, env.app, "/health")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = get(t, env.app, "/health")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = get(t, env.app, "/health")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
