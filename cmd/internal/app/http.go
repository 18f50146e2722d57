package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	authapi "vaultauth/cmd/internal/auth/api"
	"vaultauth/cmd/internal/metrics"
)

// APIPrefix is where the auth API is mounted.
const APIPrefix = "/api/v1"

// newRouter registers health checks, metrics and the versioned API.
func newRouter(log Logger, auth *authapi.Handler, m *metrics.Metrics, ready func(context.Context) error) *mux.Router {
	r := mux.NewRouter()
	r.Use(tagRoute)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			log.Info("readyz.not_ready", "err", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}).Methods(http.MethodGet)

	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	auth.Register(r.PathPrefix(APIPrefix).Subrouter())
	return r
}
