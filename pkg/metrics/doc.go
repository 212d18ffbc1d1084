// Package metrics exposes Prometheus collectors for the session tracker.
//
// A Collector owns a private registry. Its Observe methods match the hook
// signatures of the tracker, delivery and counters packages, so wiring is a
// matter of passing method values:
//
//	m := metrics.New()
//	client := delivery.NewClient(delivery.WithOnAttempt(m.ObserveAttempt))
//	store := counters.NewMemoryStore(cfg, counters.WithSweepHook(m.ObserveSweep))
//	_ = m.RegisterStoreSize(store.Len)
//	t, _ := tracker.New(app, endpoint,
//		tracker.WithStore(store),
//		tracker.WithDeliveryClient(client),
//		tracker.WithCompletionHook(m.ObserveResult),
//	)
//	http.Handle("/metrics", m.Handler())
package metrics
