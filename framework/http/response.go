package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"sigs.k8s.io/yaml"

	"github.com/km-arc/go-tenancy/framework/container"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with Laravel-style helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── Encoded responses ────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// YAML sends data as YAML, honoring its json tags.
func (res *Response) YAML(status int, data any) {
	out, err := yaml.Marshal(data)
	if err != nil {
		res.ServerError(err.Error())
		return
	}
	res.w.Header().Set("Content-Type", "application/yaml")
	res.w.WriteHeader(status)
	_, _ = res.w.Write(out)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// ── Errors ───────────────────────────────────────────────────────────────────

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// BadRequest sends 400.
func (res *Response) BadRequest(message ...string) {
	res.Error(http.StatusBadRequest, first(message, "Bad Request."))
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ServiceError reports a failed resolution. Container errors carry their kind
// and dependency path; a disposed container maps to 503.
//
//	greeter, err := routing.Service[Greeter](r)
//	if err != nil {
//	    res.ServiceError(err)
//	    return
//	}
func (res *Response) ServiceError(err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, container.ErrObjectDisposed) {
		status = http.StatusServiceUnavailable
	}
	body := envelope{"message": err.Error()}
	var cerr *container.Error
	if errors.As(err, &cerr) {
		body["kind"] = cerr.Kind.Error()
		body["service"] = cerr.Service.String()
		if len(cerr.Path) > 0 {
			path := make([]string, len(cerr.Path))
			for i, id := range cerr.Path {
				path[i] = id.String()
			}
			body["path"] = path
		}
	}
	res.JSON(status, body)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
