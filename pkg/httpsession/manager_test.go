package httpsession_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/httpsession"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

const (
	secret    = "test-secret-key-that-is-long-enough!!"
	oldSecret = "previous-secret-key-that-is-long-enough"
)

func newManager(t *testing.T, secrets ...string) *httpsession.Manager {
	t.Helper()
	if len(secrets) == 0 {
		secrets = []string{secret}
	}
	m, err := httpsession.NewManager(tracker.DefaultConfig(), secrets)
	require.NoError(t, err)
	return m
}

func withCookies(r *http.Request, w *httptest.ResponseRecorder) *http.Request {
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNewManager_Secrets(t *testing.T) {
	t.Parallel()

	_, err := httpsession.NewManager(tracker.DefaultConfig(), nil)
	assert.ErrorIs(t, err, httpsession.ErrNoSecret)

	_, err = httpsession.NewManager(tracker.DefaultConfig(), []string{"", ""})
	assert.ErrorIs(t, err, httpsession.ErrNoSecret)

	_, err = httpsession.NewManager(tracker.DefaultConfig(), []string{"short"})
	assert.ErrorIs(t, err, httpsession.ErrSecretTooShort)
}

func TestCarrier_RequestAttributes(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "test-agent/1.0")
	r.Header.Set("X-Forwarded-For", "203.0.113.50")

	attrs := m.Carrier(httptest.NewRecorder(), r).Attributes()
	assert.Equal(t, "test-agent/1.0", attrs.UserAgent)
	assert.Equal(t, "203.0.113.50", attrs.ClientIP)
	assert.Empty(t, attrs.SessionID)
	assert.Nil(t, attrs.UserID)
}

func TestCarrier_CookieRoundTrip(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	uid := "42"

	w1 := httptest.NewRecorder()
	c1 := m.Carrier(w1, httptest.NewRequest("GET", "/", nil))
	c1.SetAttributes(tracker.Attributes{SessionID: "sid-1", UserID: &uid})

	cookies := w1.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_tracker_sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	r2 := withCookies(httptest.NewRequest("GET", "/", nil), w1)
	attrs := m.Carrier(httptest.NewRecorder(), r2).Attributes()
	assert.Equal(t, "sid-1", attrs.SessionID)
	require.NotNil(t, attrs.UserID)
	assert.Equal(t, "42", *attrs.UserID)
}

func TestCarrier_RejectsTamperedCookie(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	w1 := httptest.NewRecorder()
	m.Carrier(w1, httptest.NewRequest("GET", "/", nil)).SetAttributes(tracker.Attributes{SessionID: "sid-1"})
	cookie := w1.Result().Cookies()[0]

	for _, value := range []string{cookie.Value + "x", "no-dot", "!!!.???", "e30." + "AAAA"} {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: cookie.Name, Value: value})
		assert.Empty(t, m.Carrier(httptest.NewRecorder(), r).Attributes().SessionID, value)
	}
}

func TestCarrier_SecretRotation(t *testing.T) {
	t.Parallel()
	old := newManager(t, oldSecret)
	rotated := newManager(t, secret, oldSecret)
	fresh := newManager(t, secret)

	w := httptest.NewRecorder()
	old.Carrier(w, httptest.NewRequest("GET", "/", nil)).SetAttributes(tracker.Attributes{SessionID: "sid-old"})

	r := withCookies(httptest.NewRequest("GET", "/", nil), w)
	assert.Equal(t, "sid-old", rotated.Carrier(httptest.NewRecorder(), r).Attributes().SessionID)
	assert.Empty(t, fresh.Carrier(httptest.NewRecorder(), r).Attributes().SessionID)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	var got *httpsession.Carrier
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = httpsession.MustFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.NotNil(t, got)

	_, ok := httpsession.FromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { httpsession.MustFromContext(context.Background()) })
}

type recordingDeliverer struct {
	mu   sync.Mutex
	reqs []delivery.Request
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ delivery.AppInfo, _ string, req delivery.Request) delivery.Result {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
	return delivery.Result{Request: req, Attempts: 1}
}

func TestTrackerThroughCookies(t *testing.T) {
	t.Parallel()
	rec := &recordingDeliverer{}
	tr, err := tracker.New(delivery.AppInfo{Name: "shop"}, "http://analytics.test", tracker.WithDeliveryClient(rec))
	require.NoError(t, err)

	m := newManager(t)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		carrier := httpsession.MustFromContext(r.Context())
		if uid := r.URL.Query().Get("login"); uid != "" {
			tr.AssignUser(carrier, &uid)
		}
		require.NoError(t, tr.TrackVisit(r.Context(), carrier, r.URL.Path, "Page"))
		w.WriteHeader(http.StatusOK)
	}))

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, httptest.NewRequest("GET", "/first", nil))

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, withCookies(httptest.NewRequest("GET", "/second?login=42", nil), w1))

	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, withCookies(httptest.NewRequest("GET", "/third", nil), w2))

	require.NoError(t, tr.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.reqs, 3)

	bySeq := make(map[int64]delivery.Request)
	for _, req := range rec.reqs {
		bySeq[req.ViewSequence] = req
	}
	require.Len(t, bySeq, 3)

	sid := bySeq[1].SessionID
	assert.NotEmpty(t, sid)
	assert.Equal(t, sid, bySeq[2].SessionID)
	assert.Equal(t, sid, bySeq[3].SessionID)
	assert.Nil(t, bySeq[1].UserID)
	require.NotNil(t, bySeq[3].UserID)
	assert.Equal(t, "42", *bySeq[3].UserID)
}

func TestCarrier_SingleCookiePerResponse(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	uid := "7"

	w := httptest.NewRecorder()
	http.SetCookie(w, &http.Cookie{Name: "other", Value: "keep"})
	c := m.Carrier(w, httptest.NewRequest("GET", "/", nil))
	c.SetAttributes(tracker.Attributes{SessionID: "sid-1"})
	c.SetAttributes(tracker.Attributes{SessionID: "sid-1", UserID: &uid})

	var ours []*http.Cookie
	names := make([]string, 0)
	for _, ck := range w.Result().Cookies() {
		names = append(names, ck.Name)
		if ck.Name == "_tracker_sid" {
			ours = append(ours, ck)
		}
	}
	assert.Contains(t, names, "other")
	require.Len(t, ours, 1)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(ours[0])
	attrs := m.Carrier(httptest.NewRecorder(), r).Attributes()
	require.NotNil(t, attrs.UserID)
	assert.Equal(t, "7", *attrs.UserID)
}
