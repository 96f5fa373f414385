package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"salescoach-backend/internal/models"
	"salescoach-backend/internal/services"
)

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"category": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"state conflict", &services.StateConflictError{Code: "SESSION_PAUSED", Message: "paused"}, http.StatusConflict, "SESSION_PAUSED"},
		{"not found", &services.NotFoundError{Message: "Session not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"ownership", &services.UnauthorizedError{Message: "not yours"}, http.StatusForbidden, "FORBIDDEN"},
		{"gateway", &services.TransientGatewayError{Gateway: "completion", Cause: errors.New("timeout")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"persistence", &services.PersistenceError{Cause: errors.New("pg down")}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/training/sessions/x", nil)
			req.Header.Set("X-Request-ID", "req-123")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Fatalf("expected request id to round-trip, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/sessions", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, &services.ValidationError{Fields: map[string]string{
		"difficulty": "Difficulty must be one of: new-joining, basic, advanced, expert, adaptive",
	}})

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if resp.Error.Fields["difficulty"] == "" {
		t.Fatalf("expected field detail, got %+v", resp.Error.Fields)
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"message": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
}
