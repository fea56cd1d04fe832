// Package httpjson holds the JSON request/response helpers shared by the domain
// handlers, including RFC 7807 problem responses.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

const (
	ProblemTypeValidation = "https://venuedesk.dev/problems/validation-error"
	ProblemTypeNotFound   = "https://venuedesk.dev/problems/not-found"
	ProblemTypeConflict   = "https://venuedesk.dev/problems/conflict"
	ProblemTypeForbidden  = "https://venuedesk.dev/problems/forbidden"
	ProblemTypeInternal   = "https://venuedesk.dev/problems/internal-error"
)

// Problem is an application/problem+json body.
type Problem struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func NewProblem(status int, title, detail, problemType string) Problem {
	return Problem{Type: problemType, Title: title, Status: status, Detail: detail}
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Decode reads a single JSON object from the request body into dst, rejecting
// unknown fields and trailing data.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
