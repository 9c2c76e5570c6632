package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with the relay routes.
// api, when non-nil, serves everything under /api/.
func SetupRoutes(sup *Supervisor, api http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", sup.HealthHandler)
	mux.HandleFunc("/health", sup.HealthHandler)
	mux.HandleFunc("/ws", sup.ServeWS)
	mux.HandleFunc("/test", TestPageHandler)
	if api != nil {
		mux.Handle("/api/", api)
	}
	return mux
}
