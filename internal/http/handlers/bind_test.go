package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/clinicfinder/internal/domain/appointment"
	"github.com/geocoder89/clinicfinder/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bookingBindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/appointments", func(ctx *gin.Context) {
		var req appointment.CreateRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.JSON(http.StatusCreated, gin.H{"time": req.Time})
	})
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := postJSON(bookingBindRouter(), "/appointments", `{"clinicId":0,"date":"2026-13-01","time":"25:00"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"clinicId":  "required",
		"service":   "required",
		"date":      "isodate",
		"time":      "clocktime",
		"firstName": "required",
		"lastName":  "required",
		"email":     "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"clinicId":"one","service":"Checkup","date":"2030-03-01","time":"09:00","firstName":"Ana","lastName":"Cruz","email":"ana@example.com"}`
	w := postJSON(bookingBindRouter(), "/appointments", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "clinicId" {
		t.Fatalf("expected detail field to be clinicId, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type rule in details.fields, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_AcceptsTwelveHourClock(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"clinicId":3,"service":"Checkup","date":"2030-03-01","time":"2:30 PM","firstName":"Ana","lastName":"Cruz","email":"ana@example.com"}`
	w := postJSON(bookingBindRouter(), "/appointments", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestBindJSON_EmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := postJSON(bookingBindRouter(), "/appointments", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	if resp.Error.Details.JSON != "empty_body" {
		t.Fatalf("expected empty_body, got %q", resp.Error.Details.JSON)
	}
}

func TestBindJSON_MarkupOnlyNamesAreBlank(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		firstName string
	}{
		{name: "markup only", firstName: "<b></b>"},
		{name: "whitespace", firstName: "   "},
		{name: "script", firstName: "<script>alert(1)</script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(map[string]any{
				"clinicId": 3, "service": "Checkup", "date": "2030-03-01", "time": "09:00",
				"firstName": tt.firstName, "lastName": "Cruz", "email": "ana@example.com",
			})
			w := postJSON(bookingBindRouter(), "/appointments", string(payload))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}

			var resp bindErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal error response: %v", err)
			}
			if len(resp.Error.Details.Fields) != 1 {
				t.Fatalf("expected one field error, got %+v", resp.Error.Details.Fields)
			}
			got := resp.Error.Details.Fields[0]
			if got.Field != "firstName" || got.Rule != "notblank" {
				t.Fatalf("expected firstName notblank, got %+v", got)
			}
		})
	}
}

func TestRegisterValidators_Idempotent(t *testing.T) {
	handlers.RegisterValidators()
	handlers.RegisterValidators()
}
