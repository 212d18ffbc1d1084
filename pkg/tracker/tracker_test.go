package tracker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

var testApp = delivery.AppInfo{Name: "shop", Version: "1.0.0", Hash: "deadbeef", Environment: "test"}

type received struct {
	path    string
	header  http.Header
	payload map[string]any
}

// analyticsServer records every request it receives and answers with status
func analyticsServer(t *testing.T, status int) (*httptest.Server, chan received) {
	t.Helper()
	ch := make(chan received, 256)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		ch <- received{path: r.URL.Path, header: r.Header.Clone(), payload: m}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, ch
}

func newTracker(t *testing.T, endpoint string, opts ...tracker.Option) *tracker.Tracker {
	t.Helper()
	opts = append([]tracker.Option{tracker.WithRetry(5, 5*time.Millisecond)}, opts...)
	tr, err := tracker.New(testApp, endpoint, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tr.Close(ctx)
	})
	return tr
}

func next(t *testing.T, ch chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no request received")
		return received{}
	}
}

func strPtr(s string) *string { return &s }

func TestNew_ConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		app      delivery.AppInfo
		endpoint string
		wantErr  error
	}{
		{"missing app info", delivery.AppInfo{}, "http://localhost", tracker.ErrMissingAppInfo},
		{"missing endpoint", testApp, "", tracker.ErrMissingEndpoint},
		{"relative endpoint", testApp, "/api", tracker.ErrInvalidEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := tracker.New(tt.app, tt.endpoint)
			assert.Nil(t, tr)
			assert.ErrorIs(t, err, tracker.ErrConfig)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Panics(t, func() { tracker.MustNew(delivery.AppInfo{}, "") })
}

func TestTracker_Config(t *testing.T) {
	t.Parallel()
	tr := newTracker(t, "http://localhost:4000/api")

	cfg := tr.Config()
	assert.Equal(t, testApp, cfg.App)
	assert.Equal(t, "http://localhost:4000/api", cfg.Endpoint)
	assert.Equal(t, "tracker_session", cfg.SessionKey)
	assert.Equal(t, "_tracker_sid", cfg.CookieName)
	assert.Equal(t, time.Hour, cfg.Store.SessionMaxAge)
	assert.Equal(t, 5, cfg.MaxAttempts)

	tr2 := newTracker(t, "http://localhost:4000/api",
		tracker.WithSessionKey("analytics"),
		tracker.WithCookieName("_a"),
	)
	assert.Equal(t, "analytics", tr2.Config().SessionKey)
	assert.Equal(t, "_a", tr2.Config().CookieName)
}

func TestTracker_TrackVisit_FreshSession(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)
	tr := newTracker(t, server.URL)

	carrier := tracker.NewCarrier(tracker.Attributes{UserAgent: "Mozilla/5.0", ClientIP: "198.51.100.4"})
	require.NoError(t, tr.TrackVisit(context.Background(), carrier, "what", "what"))

	sid := carrier.Attributes().SessionID
	assert.NotEmpty(t, sid, "session id written back to carrier")

	got := next(t, ch)
	assert.Equal(t, "/visits", got.path)
	assert.Equal(t, "198.51.100.4", got.header.Get("X-Forwarded-For"))
	assert.Equal(t, float64(1), got.payload["viewSequence"])
	assert.NotContains(t, got.payload, "eventSequence")
	assert.Equal(t, float64(1), got.payload["globalSequence"])
	assert.Equal(t, "what", got.payload["name"])
	assert.Equal(t, "what", got.payload["title"])
	assert.Equal(t, sid, got.payload["sessionId"])
	assert.Equal(t, "Mozilla/5.0", got.payload["userAgent"])
	assert.Equal(t, "shop", got.payload["appName"])
	assert.Nil(t, got.payload["userId"])
}

func TestTracker_TrackEvent(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)
	tr := newTracker(t, server.URL)

	carrier := tracker.NewCarrier(tracker.Attributes{})
	require.NoError(t, tr.TrackEvent(context.Background(), carrier, "n", "t", map[string]string{"k": "v"}))

	got := next(t, ch)
	assert.Equal(t, "/events", got.path)
	assert.Equal(t, float64(1), got.payload["eventSequence"])
	assert.NotContains(t, got.payload, "viewSequence")
	assert.Equal(t, map[string]any{"k": "v"}, got.payload["data"])
}

func TestTracker_SequencesAccumulatePerSession(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)
	tr := newTracker(t, server.URL)
	ctx := context.Background()

	carrier := tracker.NewCarrier(tracker.Attributes{SessionID: "known-session"})
	require.NoError(t, tr.TrackVisit(ctx, carrier, "home", "Home"))
	first := next(t, ch)
	require.NoError(t, tr.TrackEvent(ctx, carrier, "click", "Buy", nil))
	second := next(t, ch)

	assert.Equal(t, "known-session", first.payload["sessionId"])
	assert.Equal(t, float64(1), first.payload["globalSequence"])
	assert.Equal(t, float64(1), second.payload["eventSequence"])
	assert.Equal(t, float64(2), second.payload["globalSequence"])

	entry, err := tr.Store().Lookup(ctx, "known-session")
	require.NoError(t, err)
	assert.Equal(t, counters.Entry{ViewSequence: 1, EventSequence: 1, LastModified: entry.LastModified}, entry)
}

func TestTracker_AssignUser(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)
	tr := newTracker(t, server.URL)
	ctx := context.Background()

	carrier := tracker.NewCarrier(tracker.Attributes{})
	tr.AssignUser(carrier, strPtr("42"))
	require.NoError(t, tr.TrackVisit(ctx, carrier, "a", "a"))
	assert.Equal(t, "42", next(t, ch).payload["userId"])

	tr.AssignUser(carrier, nil)
	require.NoError(t, tr.TrackVisit(ctx, carrier, "b", "b"))
	got := next(t, ch)
	assert.Contains(t, got.payload, "userId")
	assert.Nil(t, got.payload["userId"])
}

func TestTracker_ConcurrentCallsSameSession(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)
	tr := newTracker(t, server.URL)
	ctx := context.Background()

	carrier := tracker.NewCarrier(tracker.Attributes{SessionID: "shared"})
	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.TrackVisit(ctx, carrier, "page", "Page"))
		}()
	}
	wg.Wait()

	seqs := make([]int, 0, n)
	for range n {
		seqs = append(seqs, int(next(t, ch).payload["viewSequence"].(float64)))
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		assert.Equal(t, i+1, s)
	}
}

func TestTracker_DoesNotBlockOnSlowEndpoint(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	done := make(chan delivery.Result, 1)
	tr := newTracker(t, server.URL, tracker.WithCompletionHook(func(_ context.Context, res delivery.Result) {
		done <- res
	}))
	// Registered last so it runs before the tracker is closed
	t.Cleanup(func() { close(release) })

	start := time.Now()
	require.NoError(t, tr.TrackVisit(context.Background(), tracker.NewCarrier(tracker.Attributes{}), "slow", "slow"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-done:
		t.Fatal("delivery completed while endpoint was blocked")
	default:
	}
}

func TestTracker_CompletionHookOnFailure(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	results := make(chan delivery.Result, 1)
	tr := newTracker(t, server.URL,
		tracker.WithCompletionHook(func(context.Context, delivery.Result) { panic("hook bug") }),
		tracker.WithCompletionHook(func(_ context.Context, res delivery.Result) { results <- res }),
	)

	require.NoError(t, tr.TrackEvent(context.Background(), tracker.NewCarrier(tracker.Attributes{}), "e", "e", nil))

	select {
	case res := <-results:
		assert.False(t, res.OK())
		assert.ErrorIs(t, res.Err, delivery.ErrDeliveryFailed)
		assert.Equal(t, 5, res.Attempts)
		assert.Equal(t, delivery.TypeEvent, res.Request.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("completion hook not called")
	}
	assert.Equal(t, int32(5), attempts.Load())
}

func TestTracker_CloseWaitsForDeliveries(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)

	var delivered atomic.Int32
	tr, err := tracker.New(testApp, server.URL, tracker.WithCompletionHook(func(context.Context, delivery.Result) {
		delivered.Add(1)
	}))
	require.NoError(t, err)

	carrier := tracker.NewCarrier(tracker.Attributes{})
	for range 10 {
		require.NoError(t, tr.TrackVisit(context.Background(), carrier, "p", "p"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Close(ctx))
	assert.Equal(t, int32(10), delivered.Load())
	assert.Len(t, ch, 10)

	err = tr.TrackVisit(context.Background(), carrier, "late", "late")
	assert.ErrorIs(t, err, tracker.ErrClosed)
	assert.NoError(t, tr.Close(ctx))
}

// sweptOnceStore reports the first increment as not found, as if the sweep
// evicted the entry right after it was restored.
type sweptOnceStore struct {
	counters.Store
	swept atomic.Bool
}

func (s *sweptOnceStore) Increment(ctx context.Context, id string, kind counters.Kind) (counters.Entry, error) {
	if s.swept.CompareAndSwap(false, true) {
		if _, err := s.Store.Create(ctx, id); err != nil {
			return counters.Entry{}, err
		}
		return counters.Entry{}, counters.ErrNotFound
	}
	return s.Store.Increment(ctx, id, kind)
}

func TestTracker_RestoresEntrySweptMidCall(t *testing.T) {
	t.Parallel()
	server, ch := analyticsServer(t, http.StatusOK)

	mem := counters.NewMemoryStore(counters.Config{})
	t.Cleanup(func() { _ = mem.Close() })
	tr := newTracker(t, server.URL, tracker.WithStore(&sweptOnceStore{Store: mem}))

	require.NoError(t, tr.TrackVisit(context.Background(), tracker.NewCarrier(tracker.Attributes{}), "x", "x"))
	assert.Equal(t, float64(1), next(t, ch).payload["viewSequence"])
}

// stubDeliverer records requests instead of sending them
type stubDeliverer struct {
	mu   sync.Mutex
	reqs []delivery.Request
}

func (s *stubDeliverer) Deliver(_ context.Context, _ delivery.AppInfo, _ string, req delivery.Request) delivery.Result {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return delivery.Result{Request: req, Attempts: 1}
}

func TestTracker_CustomDeliverer(t *testing.T) {
	t.Parallel()
	stub := &stubDeliverer{}
	tr, err := tracker.New(testApp, "http://analytics.test", tracker.WithDeliveryClient(stub))
	require.NoError(t, err)

	carrier := tracker.NewCarrier(tracker.Attributes{SessionID: "s1", UserID: strPtr("7")})
	require.NoError(t, tr.TrackEvent(context.Background(), carrier, "signup", "Sign up", 123))
	require.NoError(t, tr.TrackVisit(context.Background(), carrier, "home", "Home"))
	require.NoError(t, tr.Close(context.Background()))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.reqs, 2)
	for _, r := range stub.reqs {
		assert.Equal(t, "s1", r.SessionID)
		assert.Equal(t, "7", *r.UserID)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	cfg := tracker.DefaultConfig()
	cfg.App = testApp
	cfg.Endpoint = "https://analytics.example.com/api"
	cfg.Store.Namespace = "custom"

	tr, err := tracker.NewFromConfig(cfg)
	require.NoError(t, err)
	defer tr.Close(context.Background())

	assert.Equal(t, "custom", tr.Config().Store.Namespace)

	_, err = tracker.NewFromConfig(tracker.DefaultConfig())
	assert.ErrorIs(t, err, tracker.ErrMissingAppInfo)
}

func TestTracker_PartialStoreConfigKeepsSweep(t *testing.T) {
	t.Parallel()
	def := counters.DefaultConfig()

	tests := []struct {
		name       string
		opt        tracker.Option
		wantMaxAge time.Duration
	}{
		{"store config with max age only", tracker.WithStoreConfig(counters.Config{SessionMaxAge: time.Minute}), time.Minute},
		{"empty config", tracker.WithConfig(tracker.Config{}), def.SessionMaxAge},
		{"config without store", tracker.WithConfig(tracker.Config{App: testApp, Endpoint: "http://localhost:4000"}), def.SessionMaxAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(t, "http://localhost:4000/api", tt.opt)

			cfg := tr.Config().Store
			assert.Equal(t, def.CleanInterval, cfg.CleanInterval)
			assert.True(t, cfg.SweepEnabled())
			assert.Equal(t, tt.wantMaxAge, cfg.SessionMaxAge)
			assert.Equal(t, def.Namespace, cfg.Namespace)
		})
	}
}

func TestTracker_SweepCanBeDisabled(t *testing.T) {
	t.Parallel()
	tr := newTracker(t, "http://localhost:4000/api",
		tracker.WithStoreConfig(counters.Config{CleanInterval: counters.SweepDisabled}))

	cfg := tr.Config().Store
	assert.False(t, cfg.SweepEnabled())
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
}
