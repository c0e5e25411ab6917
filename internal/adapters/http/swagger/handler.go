// Package swagger serves the OpenAPI document and its browsable UI.
package swagger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SpecPath is where the OpenAPI document is served.
const SpecPath = "/openapi.yaml"

// Register attaches the docs routes to r.
//
//	GET /openapi.yaml  -> embedded OpenAPI spec
//	GET /api-docs/*    -> Swagger UI reading /openapi.yaml
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get(SpecPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
	r.Get("/api-docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/api-docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/api-docs/*", httpSwagger.Handler(httpSwagger.URL(SpecPath)))
}
