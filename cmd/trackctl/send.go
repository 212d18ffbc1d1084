package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/logger"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

var (
	errDeliveryFailed = errors.New("record was not delivered")
	errInvalidData    = errors.New("--data is not valid JSON")
)

type sendFlags struct {
	session   string
	user      string
	userAgent string
	clientIP  string
	title     string
	data      string
}

func (s *sendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.session, "session", "s", "", "Session id (default: new random id)")
	cmd.Flags().StringVarP(&s.user, "user", "u", "", "User id to attach")
	cmd.Flags().StringVar(&s.userAgent, "user-agent", "trackctl", "User agent to report")
	cmd.Flags().StringVar(&s.clientIP, "ip", "", "Client IP sent as X-Forwarded-For")
	cmd.Flags().StringVarP(&s.title, "title", "t", "", "Title (default: same as name)")
}

func newVisitCmd(root *rootFlags) *cobra.Command {
	s := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "visit <name>",
		Short: "Send a page visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, root, s, delivery.TypeVisit, args[0], nil)
		},
	}
	s.register(cmd)
	return cmd
}

func newEventCmd(root *rootFlags) *cobra.Command {
	s := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "event <name>",
		Short: "Send a custom event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any
			if strings.TrimSpace(s.data) != "" {
				if !json.Valid([]byte(s.data)) {
					return errInvalidData
				}
				data = json.RawMessage(s.data)
			}
			return send(cmd, root, s, delivery.TypeEvent, args[0], data)
		},
	}
	s.register(cmd)
	cmd.Flags().StringVarP(&s.data, "data", "d", "", "Event data as JSON")
	return cmd
}

// output is printed as one JSON line per record
type output struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id"`
	ViewSequence   int64  `json:"view_sequence"`
	EventSequence  int64  `json:"event_sequence"`
	GlobalSequence int64  `json:"global_sequence"`
	StatusCode     int    `json:"status_code,omitempty"`
	Attempts       int    `json:"attempts"`
	Duration       string `json:"duration"`
	Error          string `json:"error,omitempty"`
}

func send(cmd *cobra.Command, root *rootFlags, s *sendFlags, typ delivery.RequestType, name string, data any) error {
	cfg, err := root.trackerConfig()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if root.verbose {
		level = slog.LevelDebug
	}
	log := logger.New(
		logger.WithFormat(logger.FormatText),
		logger.WithLevel(level),
		logger.WithOutput(cmd.ErrOrStderr()),
	)

	client := delivery.NewClient(
		delivery.WithMaxAttempts(cfg.MaxAttempts),
		delivery.WithBackoff(delivery.FixedBackoff{Interval: cfg.RetryInterval}),
		delivery.WithOnAttempt(func(req delivery.Request, a delivery.Attempt) {
			log.Debug("delivery attempt",
				logger.SessionID(req.SessionID),
				logger.Attempt(a.Number),
				logger.StatusCode(a.StatusCode),
				logger.Duration(a.Duration),
				logger.Error(a.Error),
			)
		}),
	)

	var result delivery.Result
	t, err := tracker.NewFromConfig(cfg,
		tracker.WithDeliveryClient(client),
		tracker.WithLogger(log),
		tracker.WithCompletionHook(func(_ context.Context, res delivery.Result) {
			result = res
		}),
	)
	if err != nil {
		return err
	}

	attrs := tracker.Attributes{
		SessionID: s.session,
		UserAgent: s.userAgent,
		ClientIP:  s.clientIP,
	}
	if s.user != "" {
		uid := s.user
		attrs.UserID = &uid
	}
	carrier := tracker.NewCarrier(attrs)

	title := s.title
	if title == "" {
		title = name
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if typ == delivery.TypeEvent {
		err = t.TrackEvent(ctx, carrier, name, title, data)
	} else {
		err = t.TrackVisit(ctx, carrier, name, title)
	}
	if err != nil {
		_ = t.Close(context.Background())
		return err
	}

	// Close waits for the delivery and its completion hook
	if err := t.Close(context.Background()); err != nil {
		return err
	}

	out := output{
		Type:           string(typ),
		SessionID:      result.Request.SessionID,
		ViewSequence:   result.Request.ViewSequence,
		EventSequence:  result.Request.EventSequence,
		GlobalSequence: result.Request.GlobalSequence(),
		Attempts:       result.Attempts,
		Duration:       result.Duration.String(),
	}
	if result.Response != nil {
		out.StatusCode = result.Response.StatusCode
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	if !result.OK() {
		return errDeliveryFailed
	}
	return nil
}
