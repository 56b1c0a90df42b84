package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/secondchance/internal/http/handlers"
	"github.com/geocoder89/secondchance/internal/http/middlewares"
	"github.com/geocoder89/secondchance/internal/service"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
		Details   struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter(maxBytes int64) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID(), middlewares.MaxBodyBytes(maxBytes))
	r.PUT("/profile", func(ctx *gin.Context) {
		var req service.ProfileUpdate
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusOK)
	})
	return r
}

func decodeBindError(t *testing.T, w *httptest.ResponseRecorder) bindErrorResponse {
	t.Helper()

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewBufferString(`{"firstName":42}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "rid-1")

	w := httptest.NewRecorder()
	bindRouter(1 << 20).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	resp := decodeBindError(t, w)

	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}
	if resp.Error.RequestID != "rid-1" {
		t.Fatalf("expected request id to be echoed, got %q", resp.Error.RequestID)
	}
	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "firstName" {
		t.Fatalf("expected detail field to be firstName, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) != 1 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected one type field error, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_SyntaxError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewBufferString(`{"firstName":`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter(1 << 20).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	resp := decodeBindError(t, w)
	if resp.Error.Details.JSON == "" {
		t.Fatalf("expected a json detail, got %+v", resp.Error.Details)
	}
}

func TestBindJSON_BodyTooLarge(t *testing.T) {
	body := `{"firstName":"` + strings.Repeat("a", 64) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter(16).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusRequestEntityTooLarge, w.Body.String())
	}

	if resp := decodeBindError(t, w); resp.Error.Code != "request_too_large" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}
}

func TestValidationDetails(t *testing.T) {
	details := handlers.ValidationDetails(&service.ValidationError{
		Violations: []service.FieldViolation{{Field: "password", Rule: "min", Param: "6"}},
	})

	fields, ok := details["fields"].([]handlers.FieldError)
	if !ok || len(fields) != 1 {
		t.Fatalf("unexpected details: %#v", details)
	}
	if fields[0].Field != "password" || fields[0].Message != "must be at least 6 characters" {
		t.Fatalf("unexpected field error: %+v", fields[0])
	}
}
