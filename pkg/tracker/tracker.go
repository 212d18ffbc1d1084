package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/logger"
)

// completion is a finished delivery on its way to the result worker
type completion struct {
	ctx context.Context
	res delivery.Result
}

// Tracker maintains per-session counters and ships visit and event records
// to the analytics endpoint without blocking the caller.
type Tracker struct {
	cfg          Config
	store        counters.Store
	ownsStore    bool
	client       Deliverer
	hooks        []CompletionHook
	logger       *slog.Logger
	resultBuffer int

	results    chan completion
	workerDone chan struct{}
	inflight   sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	closeOnce  sync.Once
}

// New creates a tracker for the given application and analytics endpoint.
// It fails with ErrConfig when either is missing or the endpoint is not an
// absolute http(s) URL.
func New(app delivery.AppInfo, endpoint string, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		cfg:          DefaultConfig(),
		logger:       slog.Default(),
		resultBuffer: 1000,
	}
	for _, opt := range opts {
		opt(t)
	}
	if app != (delivery.AppInfo{}) {
		t.cfg.App = app
	}
	if endpoint != "" {
		t.cfg.Endpoint = endpoint
	}
	t.cfg = t.cfg.withDefaults()

	if err := t.cfg.App.Validate(); err != nil {
		return nil, errors.Join(ErrConfig, ErrMissingAppInfo, err)
	}
	if t.cfg.Endpoint == "" {
		return nil, errors.Join(ErrConfig, ErrMissingEndpoint)
	}
	if err := delivery.ValidateEndpoint(t.cfg.Endpoint); err != nil {
		return nil, errors.Join(ErrConfig, ErrInvalidEndpoint, err)
	}

	t.logger = t.logger.With(logger.Component("tracker"))

	if t.store == nil {
		t.store = counters.NewMemoryStore(t.cfg.Store, counters.WithLogger(t.logger))
		t.ownsStore = true
	}
	if t.client == nil {
		t.client = delivery.NewClient(
			delivery.WithMaxAttempts(t.cfg.MaxAttempts),
			delivery.WithBackoff(delivery.FixedBackoff{Interval: t.cfg.RetryInterval}),
		)
	}

	t.results = make(chan completion, t.resultBuffer)
	t.workerDone = make(chan struct{})
	go t.resultWorker()

	return t, nil
}

// NewFromConfig creates a tracker from a loaded Config
func NewFromConfig(cfg Config, opts ...Option) (*Tracker, error) {
	return New(cfg.App, cfg.Endpoint, append([]Option{WithConfig(cfg)}, opts...)...)
}

// MustNew is like New but panics on configuration errors
func MustNew(app delivery.AppInfo, endpoint string, opts ...Option) *Tracker {
	t, err := New(app, endpoint, opts...)
	if err != nil {
		panic(fmt.Sprintf("tracker: %v", err))
	}
	return t
}

// Config returns the tracker configuration
func (t *Tracker) Config() Config {
	return t.cfg
}

// Store returns the entry store used by the tracker
func (t *Tracker) Store() counters.Store {
	return t.store
}

// Ensure makes sure the carrier has a session id and the store has an entry
// for it. A missing session id is generated and written back to the carrier.
func (t *Tracker) Ensure(ctx context.Context, c Carrier) (Attributes, error) {
	attrs := c.Attributes()
	if attrs.SessionID == "" {
		attrs.SessionID = NewSessionID()
		c.SetAttributes(attrs)
	}

	if _, err := t.store.RestoreIfAbsent(ctx, attrs.SessionID); err != nil {
		return attrs, fmt.Errorf("restore session entry: %w", err)
	}
	return attrs, nil
}

// TrackVisit counts a page visit for the carrier's session and ships a visit
// record in the background. It returns once the counter is updated.
func (t *Tracker) TrackVisit(ctx context.Context, c Carrier, name, title string) error {
	return t.track(ctx, c, delivery.TypeVisit, counters.View, name, title, nil)
}

// TrackEvent counts a custom event for the carrier's session and ships an
// event record with data in the background.
func (t *Tracker) TrackEvent(ctx context.Context, c Carrier, name, title string, data any) error {
	return t.track(ctx, c, delivery.TypeEvent, counters.Event, name, title, data)
}

// AssignUser stores userID in the carrier's attributes so subsequent records
// carry it. A nil userID clears it.
func (t *Tracker) AssignUser(c Carrier, userID *string) {
	attrs := c.Attributes()
	attrs.UserID = userID
	c.SetAttributes(attrs)
}

func (t *Tracker) track(ctx context.Context, c Carrier, typ delivery.RequestType, kind counters.Kind, name, title string, data any) error {
	if t.isClosed() {
		return ErrClosed
	}

	attrs, err := t.Ensure(ctx, c)
	if err != nil {
		return err
	}
	ctx = logger.WithSessionID(ctx, attrs.SessionID)

	entry, err := t.store.Increment(ctx, attrs.SessionID, kind)
	if errors.Is(err, counters.ErrNotFound) {
		// Swept between restore and increment
		if _, err = t.store.RestoreIfAbsent(ctx, attrs.SessionID); err == nil {
			entry, err = t.store.Increment(ctx, attrs.SessionID, kind)
		}
	}
	if err != nil {
		return fmt.Errorf("increment %s counter: %w", kind, err)
	}

	req := delivery.Request{
		Type:          typ,
		Name:          name,
		Title:         title,
		ViewSequence:  entry.ViewSequence,
		EventSequence: entry.EventSequence,
		UserAgent:     attrs.UserAgent,
		SessionID:     attrs.SessionID,
		ClientIP:      attrs.ClientIP,
		UserID:        attrs.UserID,
	}
	if typ == delivery.TypeEvent {
		req.Data = data
	}

	return t.dispatch(context.WithoutCancel(ctx), req)
}

// dispatch hands the request to a detached goroutine
func (t *Tracker) dispatch(ctx context.Context, req delivery.Request) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		res := t.client.Deliver(ctx, t.cfg.App, t.cfg.Endpoint, req)
		t.results <- completion{ctx: ctx, res: res}
	}()

	t.logger.DebugContext(ctx, "tracking record dispatched",
		logger.RequestType(string(req.Type)),
		slog.Int64("global_sequence", req.GlobalSequence()),
	)
	return nil
}

// resultWorker logs every delivery result and runs the completion hooks
func (t *Tracker) resultWorker() {
	defer close(t.workerDone)
	for c := range t.results {
		t.logResult(c.ctx, c.res)
		for _, hook := range t.hooks {
			t.runHook(c.ctx, hook, c.res)
		}
	}
}

func (t *Tracker) logResult(ctx context.Context, res delivery.Result) {
	attrs := []any{
		logger.RequestType(string(res.Request.Type)),
		logger.Attempt(res.Attempts),
		logger.Duration(res.Duration),
	}
	if res.Response != nil {
		attrs = append(attrs, logger.StatusCode(res.Response.StatusCode))
	}
	if res.OK() {
		t.logger.DebugContext(ctx, "tracking record delivered", attrs...)
		return
	}
	attrs = append(attrs, logger.Error(res.Err))
	t.logger.WarnContext(ctx, "tracking record dropped", attrs...)
}

func (t *Tracker) runHook(ctx context.Context, hook CompletionHook, res delivery.Result) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.ErrorContext(ctx, "completion hook panicked", slog.Any("panic", r))
		}
	}()
	hook(ctx, res)
}

func (t *Tracker) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Close stops accepting tracking calls and waits for in-flight deliveries
// and their hooks. If ctx expires first, Close returns its error and the
// remaining deliveries finish in the background; Close may be called again.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.closeOnce.Do(func() {
		close(t.results)
	})

	select {
	case <-t.workerDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	if t.ownsStore {
		return t.store.Close()
	}
	return nil
}
