// Package contracts embeds the public HTTP contract so the API server validates
// requests and serves documentation from the exact file it was built with.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed api.yaml
var apiYAML []byte

// Load parses and validates the embedded OpenAPI document. Each call returns a
// fresh copy, since the validator middleware mutates the document it is given.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(apiYAML)
	if err != nil {
		return nil, fmt.Errorf("parse api contract: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate api contract: %w", err)
	}
	return spec, nil
}
