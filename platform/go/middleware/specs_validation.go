package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
	"github.com/zenGate-Global/venuedesk/platform/go/httpjson"
)

// ValidateAuthenticationViaSwagger enforces bearerAuth for operations that declare it.
// For operations that allow anonymous (security: [{}] or no security), the validator will not call it.
// The JWT middleware runs first, so a bearer header without verified credentials is rejected here too.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}
	r := input.RequestValidationInput.Request
	if r == nil {
		return fmt.Errorf("no request in validation input")
	}
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return fmt.Errorf("missing or invalid Authorization header")
	}
	if _, ok := platformauth.UserFromContext(r.Context()); !ok {
		return fmt.Errorf("bearer token was not verified")
	}
	return nil
}

// OpenAPIValidator validates requests against spec before they reach the handlers.
// The document's servers are dropped so matching is done on the full request path.
func OpenAPIValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	spec.Servers = nil
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateAuthenticationViaSwagger,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			problemType := httpjson.ProblemTypeValidation
			switch statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				problemType = httpjson.ProblemTypeForbidden
			case http.StatusNotFound:
				problemType = httpjson.ProblemTypeNotFound
			}
			httpjson.WriteProblem(w, httpjson.NewProblem(statusCode, http.StatusText(statusCode), message, problemType))
		},
	})
}
