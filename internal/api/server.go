package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/ratelimit"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/stream"
)

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes(streamServer *stream.Server, rateLimiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1/moderators/{id}").Subrouter()

	// Browser-backed operations are rate limited per moderator.
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter, requestsPerHour))

	limited.HandleFunc("/session", h.CreateSession).Methods("POST", "OPTIONS")
	limited.HandleFunc("/session", h.DeleteSession).Methods("DELETE", "OPTIONS")
	limited.HandleFunc("/authenticate", h.Authenticate).Methods("POST", "OPTIONS")
	limited.HandleFunc("/check-number", h.CheckNumber).Methods("POST", "OPTIONS")
	limited.HandleFunc("/restore", h.Restore).Methods("POST", "OPTIONS")
	limited.HandleFunc("/optimize", h.Optimize).Methods("POST", "OPTIONS")

	// Read-only endpoints are polled by dashboards and stay open.
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/qr", h.GetLoginCode).Methods("GET")
	api.HandleFunc("/pause", h.Pause).Methods("POST", "OPTIONS")
	api.HandleFunc("/resume", h.Resume).Methods("POST", "OPTIONS")
	api.HandleFunc("/wait", h.Wait).Methods("POST", "OPTIONS")
	api.HandleFunc("/status/ws", func(w http.ResponseWriter, r *http.Request) {
		streamServer.HandleStatusStream(w, r, mux.Vars(r)["id"])
	}).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers for the dashboard origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Acting-User")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
