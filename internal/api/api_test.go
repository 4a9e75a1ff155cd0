package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/cavegen/internal/auth"
	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/layout"
	"github.com/annel0/cavegen/internal/logging"
	"github.com/annel0/cavegen/internal/search"
	"github.com/annel0/cavegen/internal/storage"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *RestServer
	catalog *sublevel.Catalog
	repo    *storage.MemoryResultRepo
	signer  *auth.Signer
}

func quietLogger() *logging.Logger {
	return logging.NewWriterLogger("api-test", io.Discard, logging.ERROR)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog, err := sublevel.LoadDir(filepath.Join("..", "..", "assets", "sublevels"))
	require.NoError(t, err)

	signer, err := auth.NewSigner([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	repo := storage.NewMemoryResultRepo()
	rs, err := NewRestServer(Config{
		Catalog:  catalog,
		Repo:     repo,
		Jobs:     search.NewJobManager(search.New(search.WithRepo(repo))),
		Signer:   signer,
		Registry: prometheus.NewRegistry(),
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Stop(context.Background()) })

	return &testEnv{server: rs, catalog: catalog, repo: repo, signer: signer}
}

func (e *testEnv) token(t *testing.T, operator string, scopes ...string) string {
	t.Helper()
	tok, err := e.signer.Issue(operator, scopes...)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// decodeData перекладывает поле data в нужный тип
func decodeData(t *testing.T, resp GenericResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

// firstGoodSeed находит сид с корректной раскладкой
func firstGoodSeed(t *testing.T, spec *sublevel.Spec) (uint32, *layout.Layout) {
	t.Helper()
	for seed := uint32(1); seed < 200; seed++ {
		l, err := layout.Generate(seed, spec)
		if err == nil {
			return seed, l
		}
	}
	t.Fatal("нет ни одного подходящего сида")
	return 0, nil
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sublevels":2`)
}

func TestSublevels(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/sublevels", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []SublevelSummary
	decodeData(t, resp, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "hole-1", list[0].Name)

	w, _ = env.do(t, http.MethodGet, "/api/sublevels/hole-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/sublevels/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestLayout_GenerateThenCache(t *testing.T) {
	env := newTestEnv(t)
	spec, _ := env.catalog.Get("hole-1")
	seed, want := firstGoodSeed(t, spec)

	path := "/api/layouts/hole-1/" + strconv.FormatUint(uint64(seed), 10)
	w, resp := env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first LayoutResponse
	decodeData(t, resp, &first)
	assert.False(t, first.Cached)
	assert.Equal(t, want.Slug(), first.Slug)
	assert.Equal(t, want.ShareCode(), first.ShareCode)
	assert.Equal(t, 1, env.repo.Count())

	w, resp = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var second LayoutResponse
	decodeData(t, resp, &second)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Slug, second.Slug)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	assert.Equal(t, uint64(1), env.server.metrics.generated.Load())
	assert.Equal(t, uint64(1), env.server.metrics.cacheHits.Load())

	// Сохранённая раскладка видна в списке
	w, resp = env.do(t, http.MethodGet, "/api/layouts/hole-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []struct {
		Seed uint32 `json:"seed"`
		Slug string `json:"slug"`
	}
	decodeData(t, resp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, seed, items[0].Seed)
}

func TestLayout_BadInput(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/layouts/hole-1/not-a-seed", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/layouts/hole-1/4294967296", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/layouts/nope/1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/layouts/hole-1?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseSeed(t *testing.T) {
	v, err := parseSeed("0x2A")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	v, err = parseSeed("4294967295")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)

	_, err = parseSeed("-1")
	assert.Error(t, err)
}

func TestShare(t *testing.T) {
	env := newTestEnv(t)
	spec, _ := env.catalog.Get("hole-1")
	seed, l := firstGoodSeed(t, spec)

	w, resp := env.do(t, http.MethodGet, "/api/share/"+l.ShareCode(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var share ShareResponse
	decodeData(t, resp, &share)
	assert.Equal(t, "hole-1", share.Sublevel)
	assert.Equal(t, seed, share.Seed)
	assert.True(t, share.Verified)
	require.NotNil(t, share.Layout)
	assert.Equal(t, l.Slug(), share.Layout.Slug)

	// Слаг неизвестного подуровня расшифровывается, но не проверяется
	code := layout.EncodeShareCode(strings.Replace(l.Slug(), "hole-1", "hole-9", 1))
	w, resp = env.do(t, http.MethodGet, "/api/share/"+code, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &share)
	assert.Equal(t, "hole-9", share.Sublevel)
	assert.False(t, share.Verified)

	w, _ = env.do(t, http.MethodGet, "/api/share/not!base64", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_Auth(t *testing.T) {
	env := newTestEnv(t)
	q := search.Query{Sublevel: "hole-1", Count: 5}

	w, _ := env.do(t, http.MethodPost, "/api/search", "", q)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/search", "garbage", q)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/search", env.token(t, "bob"), q)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSearch_SubmitAndPoll(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice", auth.ScopeSearch)

	w, resp := env.do(t, http.MethodPost, "/api/search", token, search.Query{Sublevel: "hole-1", From: 10, Count: 40, Workers: 2})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job search.Job
	decodeData(t, resp, &job)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, "alice", job.SubmittedBy)

	_, err := env.server.jobs.Wait(context.Background(), job.ID)
	require.NoError(t, err)

	w, resp = env.do(t, http.MethodGet, "/api/search/"+job.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &job)
	assert.Equal(t, search.JobDone, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, uint64(40), job.Result.Scanned)
	assert.Equal(t, len(job.Result.Hits), env.repo.Count())

	w, _ = env.do(t, http.MethodGet, "/api/search/unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice", auth.ScopeSearch)

	w, _ := env.do(t, http.MethodPost, "/api/search", token, map[string]int{"count": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/search", token, search.Query{Sublevel: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch_CancelOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, "alice", auth.ScopeSearch)
	bob := env.token(t, "bob", auth.ScopeSearch)
	admin := env.token(t, "root", auth.ScopeAdmin)

	w, resp := env.do(t, http.MethodPost, "/api/search", alice, search.Query{Sublevel: "hole-1", Count: search.MaxCount, Workers: 1})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job search.Job
	decodeData(t, resp, &job)

	w, _ = env.do(t, http.MethodDelete, "/api/search/"+job.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/api/search/"+job.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done, err := env.server.jobs.Wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, search.JobCancelled, done.Status)
}

func TestAdminWebhooks(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.ScopeAdmin)

	w, _ := env.do(t, http.MethodGet, "/api/admin/webhooks", env.token(t, "alice", auth.ScopeSearch), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := OutboundWebhook{Name: "discord", URL: "https://example.com/hook", Secret: "s3cret", Events: []string{eventbus.EventSeedFound}}
	w, resp := env.do(t, http.MethodPost, "/api/admin/webhooks", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created OutboundWebhook
	decodeData(t, resp, &created)
	assert.Equal(t, uint64(1), created.ID)
	assert.Empty(t, created.Secret)
	assert.Equal(t, 3, created.RetryCount)

	body.Events = []string{"player.joined"}
	w, _ = env.do(t, http.MethodPost, "/api/admin/webhooks", admin, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerInfo(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/api/server", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats ServerStats
	decodeData(t, resp, &stats)
	assert.Equal(t, Version, stats.Version)
	assert.Equal(t, 2, stats.SublevelsLoaded)
}

func TestOutboundWebhooks_DeliverFromBus(t *testing.T) {
	var (
		mu       sync.Mutex
		received [][]byte
		sigs     []string
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, data)
		sigs = append(sigs, r.Header.Get("X-Webhook-Signature"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer target.Close()

	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	owm := NewOutboundWebhookManager(quietLogger())
	defer owm.Close()
	require.NoError(t, owm.Attach(bus))

	_, err := owm.AddWebhook(OutboundWebhook{Name: "t", URL: target.URL, Secret: "k", Events: []string{eventbus.EventSeedFound}})
	require.NoError(t, err)

	ev, err := eventbus.NewEnvelope("search", eventbus.EventSeedFound, search.SeedFound{Sublevel: "hole-1", Seed: 7})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))

	// Не подписан: не доставляется
	other, err := eventbus.NewEnvelope("search", eventbus.EventSearchFinished, map[string]string{})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), other))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var got eventbus.Envelope
	require.NoError(t, json.Unmarshal(received[0], &got))
	assert.Equal(t, ev.ID, got.ID)

	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write(received[0])
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), sigs[0])
}

func TestOutboundWebhooks_RetryAndFailureCount(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	owm := NewOutboundWebhookManager(quietLogger())
	owm.retryDelay = time.Millisecond
	defer owm.Close()

	hook, err := owm.AddWebhook(OutboundWebhook{Name: "t", URL: target.URL, Events: []string{"*"}, RetryCount: 2})
	require.NoError(t, err)

	ev, err := eventbus.NewEnvelope("api", eventbus.EventSearchStarted, map[string]string{})
	require.NoError(t, err)
	owm.Enqueue(ev)

	require.Eventually(t, func() bool {
		w := owm.GetWebhook(hook.ID)
		return w != nil && w.FailureCount == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}
