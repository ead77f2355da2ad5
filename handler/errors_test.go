package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		code           string
	}{
		{"validation", apperr.Validation(apperr.CodeRequiredField, "client_name is required"), http.StatusUnprocessableEntity, "REQUIRED_FIELD"},
		{"conflict", apperr.New(apperr.KindConflict, apperr.CodeVersionConflict, "stale"), http.StatusConflict, "VERSION_CONFLICT"},
		{"collaborator", apperr.Collaborator(apperr.CodeExporterFail, "down", errors.New("dial")), http.StatusBadGateway, "EXPORTER_UNAVAILABLE"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			respondError(c, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			body := decodeBody(t, w)
			if body["code"] != tt.code {
				t.Errorf("Expected code %s, got %v", tt.code, body["code"])
			}
			if tt.name == "foreign" && body["error"] != "Internal server error" {
				t.Errorf("Expected foreign error hidden, got %v", body["error"])
			}
		})
	}
}

func TestRespondErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	respondError(c, apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidEmail, "bad", map[string]string{"field": "client_email"}))

	details, _ := decodeBody(t, w)["details"].(map[string]any)
	if details["field"] != "client_email" {
		t.Errorf("Expected field detail, got %v", details)
	}
}
