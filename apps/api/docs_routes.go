package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/contracts"
)

const swaggerUIPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>VenueDesk API - Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0} #swagger-ui{max-width:1400px;margin:0 auto}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.json',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis]
      });
    </script>
  </body>
</html>`

func registerDocsRoutes(router chi.Router, logger *zap.Logger) {
	router.Get("/docs", docsUIHandler())
	router.Get("/openapi.json", openapiJSONHandler(logger))
}

func docsUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(swaggerUIPage))
	}
}

func openapiJSONHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec, err := contracts.Load(r.Context())
		if err != nil {
			logger.Error("load openapi contract", zap.Error(err))
			http.Error(w, "failed to load OpenAPI", http.StatusInternalServerError)
			return
		}
		b, err := spec.MarshalJSON()
		if err != nil {
			logger.Error("marshal openapi json", zap.Error(err))
			http.Error(w, "failed to marshal OpenAPI", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
