// Package httpsession connects net/http handlers to the tracker.
//
// A Manager turns each request into a tracker.Carrier. The session id and
// user id travel in an HMAC-signed cookie, while the user agent and client ip
// are read from the request itself. ClientIP honours CF-Connecting-IP,
// X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
//
//	sessions, err := httpsession.NewManager(tr.Config(), []string{secret})
//	if err != nil {
//	    return err
//	}
//
//	r := chi.NewRouter()
//	r.Use(sessions.Middleware)
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//	    carrier := httpsession.MustFromContext(r.Context())
//	    _ = tr.TrackVisit(r.Context(), carrier, "home", "Home")
//	    w.Write([]byte("hello"))
//	})
//
// Tracking calls may rewrite the cookie, so they have to run before the
// handler writes the response header.
package httpsession
