// Package httpserver runs the tracking service's HTTP listener with graceful
// shutdown.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives. It then
// calls http.Server.Shutdown and runs drain hooks under the same deadline,
// which is where the tracker flushes in-flight deliveries:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithDrainHook(t.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Listen failures are wrapped with ErrStart; shutdown and drain failures with
// ErrShutdown.
package httpserver
