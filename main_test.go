package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkamal-dev/portfolio/internal/auth"
	"github.com/mkamal-dev/portfolio/internal/config"
	"github.com/mkamal-dev/portfolio/internal/mail"
	"github.com/mkamal-dev/portfolio/internal/ratelimit"
	"github.com/mkamal-dev/portfolio/internal/realtime"
	"github.com/mkamal-dev/portfolio/internal/store"
	"github.com/mkamal-dev/portfolio/internal/visitors"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 Safari/605.1.15"

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type brokenLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (brokenLedger) Get(context.Context) (visitors.Ledger, error)      { return visitors.Ledger{}, errLedgerDown }
func (brokenLedger) Create(context.Context, visitors.Ledger) error     { return errLedgerDown }
func (brokenLedger) IncrementVisits(context.Context) error             { return errLedgerDown }
func (brokenLedger) AddVisitor(context.Context, string) (bool, error) { return false, errLedgerDown }

type testEnv struct {
	app    *app
	router *gin.Engine
	mailer *fakeMailer
}

func newTestEnv(t *testing.T, ledger visitors.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := config.Default()
	cfg.LedgerBackend = config.LedgerMemory
	require.NoError(t, cfg.Validate())

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	logger := zap.NewNop()
	require.NoError(t, initAdmin(ctx, cfg, st, logger))

	if ledger == nil {
		ledger = visitors.NewMemoryStore()
	}
	counter := visitors.NewCounter(ledger)
	hub := realtime.NewHub(nil)
	tracker := visitors.NewTracker(counter, logger, visitors.OnRecorded(func() { hub.Publish(realtime.EventLedger) }))

	mailer := &fakeMailer{}
	a := &app{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		counter:      counter,
		tracker:      tracker,
		mailer:       mailer,
		sessions:     auth.NewSessions("test-secret", time.Hour, false),
		hub:          hub,
		limiter:      ratelimit.NewStore(1000, 1000),
		visitLimiter: ratelimit.NewStore(1000, 1000),
	}
	return &testEnv{app: a, router: newRouter(a), mailer: mailer}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do(formRequest(http.MethodPost, "/admin/login", url.Values{
		"name":     {"admin"},
		"password": {"admin123"},
	}))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/admin/dashboard", w.Header().Get("Location"))
	ck := findCookie(w, auth.CookieName)
	require.NotNil(t, ck)
	return ck
}

func landing(ua string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	return req
}

func TestHome_RendersAndCountsVisits(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := env.do(landing(browserUA))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), HeroName)
	visitor := findCookie(w, visitors.CookieName)
	require.NotNil(t, visitor)

	env.do(landing(browserUA), visitor)
	env.do(landing(browserUA))
	env.app.tracker.Wait()

	l, err := env.app.counter.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), l.TotalVisits)
	assert.Equal(t, int64(2), l.TotalVisitors)
	assert.Equal(t, visitor.Value, l.Visitors[0])
}

func TestHome_LedgerFailureDoesNotBreakPage(t *testing.T) {
	env := newTestEnv(t, brokenLedger{})

	w := env.do(landing(browserUA))
	env.app.tracker.Wait()

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), HeroName)
}

func TestHome_CrawlersAreNotCounted(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(landing("Mozilla/5.0 (compatible; bingbot/2.0)"))
	env.app.tracker.Wait()

	l, err := env.app.counter.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, l.TotalVisits)
}

func TestVisitBeacon(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/visit", nil)
	req.Header.Set("User-Agent", browserUA)
	w := env.do(req)
	env.app.tracker.Wait()

	assert.Equal(t, http.StatusAccepted, w.Code)
	l, err := env.app.counter.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.TotalVisits)
}

func TestVisitBeacon_DoesNotStarveForms(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := env.app.cfg
	env.app.limiter = ratelimit.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	env.app.visitLimiter = ratelimit.NewStore(cfg.VisitRateLimit.RPS, cfg.VisitRateLimit.Burst)
	env.router = newRouter(env.app)

	for i := 0; i < cfg.RateLimit.Burst+5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/visit", nil)
		req.Header.Set("User-Agent", browserUA)
		w := env.do(req)
		require.Equal(t, http.StatusAccepted, w.Code, "beacon %d", i)
	}
	env.app.tracker.Wait()

	w := env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"fullName": {"Ada"},
		"email":    {"ada@example.com"},
		"message":  {"hi"},
	}))
	assert.Equal(t, http.StatusOK, w.Code)

	l, err := env.app.counter.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(cfg.RateLimit.Burst+5), l.TotalVisits)
}

func TestContact(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"fullName": {"Ada Lovelace"},
		"email":    {"ada@example.com"},
		"message":  {"Let's build something"},
	}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Thank you for your message")
	require.Len(t, env.mailer.sent, 1)
	msg := env.mailer.sent[0]
	assert.Equal(t, mail.ContactTemplate, msg.TemplateID)
	assert.Equal(t, "ada@example.com", msg.ReplyTo)
	assert.Equal(t, "Ada Lovelace", msg.Fields["name"])

	w = env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"fullName": {"Ada"},
		"email":    {"not-an-email"},
		"message":  {"hi"},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.mailer.sent, 1)

	env.mailer.err = errors.New("smtp down")
	w = env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"fullName": {"Ada"},
		"email":    {"ada@example.com"},
		"message":  {"hi"},
	}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error sending your message")
}

func TestTestimonials_SubmitAndModerate(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.login(t)

	w := env.do(formRequest(http.MethodPost, "/testimonials", url.Values{
		"name":     {"Grace"},
		"position": {"Engineer"},
		"content":  {"Outstanding work"},
		"rating":   {"4"},
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(formRequest(http.MethodPost, "/testimonials", url.Values{"name": {"NoContent"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var public []store.Testimonial
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/testimonials", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Empty(t, public)

	var all []store.Testimonial
	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/testimonials", nil), session)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.False(t, all[0].Approved)
	assert.Equal(t, 4, all[0].Rating)

	w = env.do(httptest.NewRequest(http.MethodPost, "/admin/testimonials/"+all[0].ID+"/approve", nil), session)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/testimonials", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	require.Len(t, public, 1)
	assert.Equal(t, "Grace", public[0].Name)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/testimonials/"+all[0].ID, nil), session)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/testimonials/"+all[0].ID, nil), session)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_RequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(formRequest(http.MethodPost, "/admin/login", url.Values{
		"name":     {"admin"},
		"password": {"wrong"},
	}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, findCookie(w, auth.CookieName))
}

func TestAdmin_LoginLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.login(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), session)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Signed in as admin")

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/login", nil), session)
	assert.Equal(t, http.StatusFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/logout", nil), session)
	assert.Equal(t, http.StatusFound, w.Code)
	cleared := findCookie(w, auth.CookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestAdmin_ProjectsAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.login(t)

	env.do(landing(browserUA))
	env.app.tracker.Wait()

	w := env.do(formRequest(http.MethodPost, "/admin/projects", url.Values{
		"title":       {"Portfolio"},
		"description": {"This site"},
		"demo":        {"https://demo.example.com"},
		"code":        {"https://github.com/example/portfolio"},
		"image":       {"https://img.example.com/p.png"},
	}), session)
	require.Equal(t, http.StatusCreated, w.Code)
	var created store.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	w = env.do(formRequest(http.MethodPost, "/admin/projects", url.Values{"title": {"Half"}}), session)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This site")

	var projects []store.Project
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &projects))
	assert.Len(t, projects, 1)

	var stats AdminStats
	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil), session)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalVisits)
	assert.Equal(t, int64(1), stats.TotalVisitors)
	assert.Equal(t, int64(1), stats.TotalProjects)
	assert.Len(t, stats.RecentVisitors, 1)

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/export/stats", nil), session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "admin-stats.json")

	w = env.do(httptest.NewRequest(http.MethodDelete, "/admin/projects/"+created.ID, nil), session)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHashIP_StablePerProcess(t *testing.T) {
	assert.Equal(t, hashIP("10.0.0.1"), hashIP("10.0.0.1"))
	assert.NotEqual(t, hashIP("10.0.0.1"), hashIP("10.0.0.2"))
	assert.Len(t, hashIP("10.0.0.1"), 16)
}
