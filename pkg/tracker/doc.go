// Package tracker counts page visits and custom events per client session
// and ships them to a remote analytics endpoint.
//
// # Architecture
//
// A Tracker sits between the caller, a counters.Store and a delivery client.
// Callers pass a Carrier, which exposes the session attributes of one client
// (session id, user id, user agent, client ip) wherever they live. The
// tracker never stores those attributes; the store only keeps counters.
//
//	┌────────┐  Carrier  ┌─────────┐ Increment ┌────────────────┐
//	│ Caller │ ────────► │ Tracker │ ────────► │ counters.Store │
//	└────────┘           └─────────┘           └────────────────┘
//	                          │ goroutine per record
//	                          ▼
//	                 ┌─────────────────┐  POST /visits, /events
//	                 │ delivery.Client │ ───────────────────────►
//	                 └─────────────────┘
//	                          │ Result
//	                          ▼
//	                   result worker → log, completion hooks
//
// The counter is incremented synchronously, so each record carries the
// sequence produced by its own call even when calls for the same session run
// concurrently. Delivery, including retries, happens on a detached goroutine:
// TrackVisit and TrackEvent never wait for the network. Failed deliveries are
// logged and passed to completion hooks, then dropped.
//
// # Usage
//
//	tr, err := tracker.New(delivery.AppInfo{
//	    Name:        "shop",
//	    Version:     "1.4.0",
//	    Hash:        "9f1c2e7",
//	    Environment: "production",
//	}, "https://analytics.example.com/api")
//	if err != nil {
//	    log.Fatal(err) // missing app info or endpoint
//	}
//	defer tr.Close(context.Background())
//
//	carrier := tracker.NewCarrier(tracker.Attributes{UserAgent: ua, ClientIP: ip})
//	_ = tr.TrackVisit(ctx, carrier, "product", "Blue shoes")
//	_ = tr.TrackEvent(ctx, carrier, "add_to_cart", "Blue shoes", map[string]any{"sku": "B-42"})
//
// For net/http applications the httpsession package provides a cookie based
// Carrier and middleware.
//
// # Errors
//
//   - ErrConfig (with ErrMissingAppInfo, ErrMissingEndpoint or
//     ErrInvalidEndpoint): returned by New, the tracker cannot start
//   - ErrClosed: tracking call after Close
//
// Delivery failures are never returned to tracking callers.
package tracker
