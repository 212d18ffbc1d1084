// Package logger builds slog loggers for the tracker and its binaries.
//
// New returns a *slog.Logger with JSON or text output, a minimum level and
// static attributes. Handlers are wrapped by LogHandlerDecorator, which pulls
// request scoped values out of the context at log time. The tracking session
// id is always extracted: store it with WithSessionID and log through the
// *Context methods.
//
//	log := logger.New(logger.WithEnvironment("production", "shop"))
//	ctx = logger.WithSessionID(ctx, sid)
//	log.InfoContext(ctx, "visit tracked", logger.RequestType("visit"))
package logger
