package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapiapi/internal/catalog"
	"swapiapi/internal/config"
	"swapiapi/internal/entity"
	"swapiapi/internal/ingest"
	"swapiapi/internal/platform/swapi"
	"swapiapi/internal/store"
	"swapiapi/internal/testutil"
)

func upstreamRecords(base string) map[string][]map[string]any {
	return map[string][]map[string]any{
		"people": {
			{
				"name":       "Luke Skywalker",
				"gender":     "male",
				"birth_year": "19BBY",
				"url":        base + "people/1",
				"films":      []any{base + "films/1"},
			},
		},
		"films": {
			{
				"title":        "A New Hope",
				"director":     "George Lucas",
				"producer":     "Gary Kurtz, Rick McCallum",
				"release_date": "1977-05-25",
				"url":          base + "films/1",
				"characters":   []any{base + "people/1"},
				"starships":    []any{base + "starships/12"},
			},
		},
		"starships": {
			{
				"name":           "X-wing",
				"model":          "T-65 X-wing",
				"manufacturer":   "Incom Corporation",
				"starship_class": "Starfighter",
				"url":            base + "starships/12",
				"films":          []any{base + "films/1"},
			},
		},
	}
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		AppAddr:              ":0",
		AppName:              "SWAPI Voting API",
		AppVersion:           "1.0.0",
		SwapiBaseURL:         upstreamURL,
		VerifySwapiSSL:       true,
		SwapiTimeout:         2 * time.Second,
		SwapiRPS:             1000,
		DefaultPageSize:      20,
		MaxPageSize:          100,
		ImportWorkers:        4,
		CORSAllowedOrigins:   []string{"*"},
		RateLimitMaxRequests: 1000,
		RateLimitWindow:      time.Hour,
	}
}

type harness struct {
	handler  http.Handler
	upstream *testutil.Upstream
	repo     *store.CatalogRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	upstream := testutil.NewUpstream(nil)
	t.Cleanup(upstream.Close)
	// Records reference the fake server's own URLs, so seed after start.
	upstream.Seed(upstreamRecords(upstream.BaseURL()))

	cfg := testConfig(upstream.BaseURL())

	db, err := store.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(ctx, db, zerolog.Nop()))

	repo := store.NewCatalogRepo(db)
	client := swapi.NewClient(swapi.Options{
		BaseURL:   cfg.SwapiBaseURL,
		VerifySSL: cfg.VerifySwapiSSL,
		Timeout:   cfg.SwapiTimeout,
		RPS:       cfg.SwapiRPS,
		Backoff:   time.Millisecond,
	})
	importer := ingest.NewService(client, repo, ingest.NewRunRepo(db), ingest.Config{Workers: cfg.ImportWorkers}, zerolog.Nop())
	catalogSvc := catalog.NewService(repo, catalog.Config{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize})

	srv := New(Deps{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Catalog:  catalogSvc,
		Importer: importer,
		Store:    repo,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &harness{handler: srv.Handler(), upstream: upstream, repo: repo}
}

func (h *harness) do(method, path string) testutil.RecordResponse {
	return testutil.Serve(h.handler, testutil.NewRequest(method, path, nil))
}

func TestRoot(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/")
	testutil.AssertResponseCode(t, res.Code, http.StatusOK)
	testutil.AssertResponseBody(t, res.Body, "service", "SWAPI Voting API")
	testutil.AssertResponseBody(t, res.Body, "version", "1.0.0")
	testutil.AssertResponseBody(t, res.Body, "status", "online")
	testutil.AssertResponseBody(t, res.Body, "docs", "/docs")
	testutil.AssertResponseBody(t, res.Body, "redoc", "/redoc")
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", string(res.Raw))

	res = h.do(http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ready", string(res.Raw))
}

type downStore struct{}

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestReadyz_StoreDown(t *testing.T) {
	w := testutil.Serve(readyHandler(downStore{}), testutil.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDocs(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/docs")
	assert.Equal(t, http.StatusMovedPermanently, res.Code)
	assert.Equal(t, "/docs/index.html", res.Header.Get("Location"))

	res = h.do(http.MethodGet, "/docs/doc.json")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "2.0", res.Body["swagger"])
	assert.Empty(t, res.Header.Get("Content-Security-Policy"))

	res = h.do(http.MethodGet, "/redoc")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Raw), "/docs/doc.json")
}

func TestDocs_CoverEveryRoute(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/docs/doc.json")
	require.Equal(t, http.StatusOK, res.Code)
	paths, ok := res.Body["paths"].(map[string]any)
	require.True(t, ok)

	routes, ok := h.handler.(chi.Routes)
	require.True(t, ok)

	seen := 0
	err := chi.Walk(routes, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/docs") || route == "/redoc" {
			return nil
		}
		for _, kind := range entity.Kinds {
			route = strings.Replace(route, "/"+string(kind)+"/", "/{kind}/", 1)
		}
		seen++
		op, ok := paths[route].(map[string]any)
		if assert.True(t, ok, "route %s missing from docs", route) {
			assert.Contains(t, op, strings.ToLower(method), "route %s", route)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Positive(t, seen)
}

func TestUnknownRoutes(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/planets")
	testutil.AssertResponseCode(t, res.Code, http.StatusNotFound)
	testutil.AssertResponseBody(t, res.Body, "detail", "Not Found")

	res = h.do(http.MethodPost, "/import/planets")
	testutil.AssertResponseCode(t, res.Code, http.StatusNotFound)

	res = h.do(http.MethodDelete, "/characters/1")
	testutil.AssertResponseCode(t, res.Code, http.StatusMethodNotAllowed)
	testutil.AssertResponseBody(t, res.Body, "detail", "Method Not Allowed")
}

func TestImportThenServe(t *testing.T) {
	orders := map[string][]string{
		"films first":      {"films", "characters", "starships"},
		"characters first": {"characters", "starships", "films"},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			for _, kind := range order {
				res := h.do(http.MethodPost, "/import/"+kind)
				require.Equal(t, http.StatusAccepted, res.Code, string(res.Raw))
			}

			res := h.do(http.MethodGet, "/characters/1")
			require.Equal(t, http.StatusOK, res.Code)
			assert.Equal(t, "Luke Skywalker", res.Body["name"])
			assert.Equal(t, "19BBY", res.Body["birth_year"])
			films, ok := res.Body["films"].([]any)
			require.True(t, ok)
			require.Len(t, films, 1)
			assert.Equal(t, "A New Hope", films[0].(map[string]any)["title"])

			res = h.do(http.MethodGet, "/films/1")
			require.Equal(t, http.StatusOK, res.Code)
			assert.Equal(t, "1977-05-25", res.Body["release_date"])
			assert.Len(t, res.Body["characters"], 1)
			assert.Len(t, res.Body["starships"], 1)

			res = h.do(http.MethodGet, "/starships/search?q=wing")
			require.Equal(t, http.StatusOK, res.Code)
			require.Len(t, res.List, 1)
			assert.Equal(t, "X-wing", res.List[0]["name"])
		})
	}
}

func TestImport_MessageAndRuns(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodPost, "/import/starships")
	testutil.AssertResponseCode(t, res.Code, http.StatusAccepted)
	testutil.AssertResponseBody(t, res.Body, "message", "Starship import completed.")

	res = h.do(http.MethodGet, "/import/runs?limit=5")
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, res.List, 1)
	assert.Equal(t, "starships", res.List[0]["kind"])
	assert.Equal(t, "completed", res.List[0]["status"])

	res = h.do(http.MethodGet, "/import/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestImport_UpstreamDown(t *testing.T) {
	h := newHarness(t)
	h.upstream.Fail("films", http.StatusServiceUnavailable)

	res := h.do(http.MethodPost, "/import/films")
	testutil.AssertResponseCode(t, res.Code, http.StatusBadGateway)
	testutil.AssertResponseBody(t, res.Body, "detail", "Failed to import films from SWAPI.")

	res = h.do(http.MethodGet, "/films")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, res.List)
}

func TestCatalogErrors(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodGet, "/characters/99")
	testutil.AssertResponseCode(t, res.Code, http.StatusNotFound)
	testutil.AssertResponseBody(t, res.Body, "detail", "Character not found")

	res = h.do(http.MethodGet, "/characters?limit=0")
	testutil.AssertResponseCode(t, res.Code, http.StatusBadRequest)
	assert.NotEmpty(t, res.Body["errors"])

	res = h.do(http.MethodGet, "/films/search?q=")
	testutil.AssertResponseCode(t, res.Code, http.StatusBadRequest)

	res = h.do(http.MethodGet, "/films/search?q=zzz")
	testutil.AssertResponseCode(t, res.Code, http.StatusOK)
	assert.NotNil(t, res.List)
	assert.Empty(t, res.List)
}

func TestBlockedIP(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/api/")
	cfg.BlockedIPs = []string{"203.0.113.7"}
	srv := New(Deps{Config: cfg, Logger: zerolog.Nop(), Store: downStore{}})
	defer srv.Shutdown(context.Background())

	req := testutil.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	res := testutil.Serve(srv.Handler(), req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
