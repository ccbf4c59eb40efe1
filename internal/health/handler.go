// Package health serves the liveness endpoint polled by the hosting platform.
package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Checker defines the interface for checking a dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler handles health check operations.
type Handler struct {
	store   Checker
	backend string
}

// NewHandler creates a new health handler reporting on the quota store.
func NewHandler(store Checker, backend string) *Handler {
	return &Handler{store: store, backend: backend}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status  string `example:"ok"      json:"status"`
		Backend string `example:"github"  json:"backend"`
		Store   string `example:"healthy" json:"store,omitempty"`
	}
}

// Live reports that the process answers. It never touches the store, so
// frequent platform polls cost no remote API calls.
func (h *Handler) Live(_ context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Backend = h.backend

	return resp, nil
}

// Check reports liveness together with the store status. The status code is
// always 200; an unreachable store only degrades the body.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Backend = h.backend

	if err := h.store.Ping(ctx); err != nil {
		resp.Body.Store = "unhealthy"
		resp.Body.Status = "degraded"
	} else {
		resp.Body.Store = "healthy"
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "liveness-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, h.Live)

	huma.Register(api, huma.Operation{
		OperationID: "liveness",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe with store status",
		Tags:        []string{"Health"},
	}, h.Check)
}
