// Package delivery ships tracking records to a remote analytics endpoint.
//
// A Client turns a Request into an HTTP POST against
// "{endpoint}/visits" or "{endpoint}/events" with a JSON body that combines
// the application identity (AppInfo) with the session counters. The client is
// stateless and safe for concurrent use.
//
// # Retries
//
// Only HTTP 200 counts as success. Transport errors and every other status
// code are retried after a constant delay (one second by default) until five
// attempts have been made. The outcome of the last attempt is returned;
// exhausted deliveries wrap ErrDeliveryFailed.
//
//	client := delivery.NewClient(
//	    delivery.WithBackoff(delivery.FixedBackoff{Interval: 500 * time.Millisecond}),
//	)
//	resp, err := client.Post(ctx, app, "https://analytics.example.com/api", req)
//
// Post blocks until the delivery finishes. Callers that must not wait on the
// network run it in their own goroutine, as the tracker package does.
//
// # Payload
//
// Every body contains environment, appName, appVersion, appHash, userAgent,
// sessionId, globalSequence, name, title and userId (null when unknown).
// Visits add viewSequence. Events add eventSequence and data.
package delivery
