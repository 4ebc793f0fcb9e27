// Package api assembles the HTTP surface: versioned submission and
// rotation routes, the admin subrouter, health, metrics and docs.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"fairlead/pkg/api/handlers"
	"fairlead/pkg/rotation"
	"fairlead/pkg/store"
	"fairlead/pkg/submit"
	"fairlead/pkg/timeline"
)

// Deps carries the wired services the routes need.
type Deps struct {
	Service        *submit.Service
	Recorder       *timeline.Recorder
	RotationLimits rotation.Limits
	MaxPayload     int64
}

// Router builds the full route tree. Authentication and rate limiting
// wrap this router one level up.
func Router(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store not ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterSubmissions(v1, d.Service, d.Recorder, d.MaxPayload)
	handlers.RegisterRotations(v1, d.RotationLimits)
	handlers.RegisterAuthorities(v1)

	admin := r.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin)

	return r
}
