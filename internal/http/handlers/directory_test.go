package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/clinicfinder/internal/cache"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/http/handlers"
	"github.com/geocoder89/clinicfinder/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

// countingClinics counts List calls that reach the store.
type countingClinics struct {
	*memory.ClinicsRepo
	lists int
}

func (c *countingClinics) List(ctx context.Context, f clinic.ListFilter) ([]clinic.Clinic, error) {
	c.lists++
	return c.ClinicsRepo.List(ctx, f)
}

func newDirectoryRouter(t *testing.T) (*gin.Engine, *countingClinics) {
	t.Helper()
	db := memory.NewDB()
	if _, err := db.Clinics().Create(context.Background(), clinic.CreateRequest{Name: "Harbor Clinic", Address: "1 Pier Rd", Status: clinic.StatusOpen}); err != nil {
		t.Fatalf("seed clinic: %v", err)
	}

	clinics := &countingClinics{ClinicsRepo: db.Clinics()}
	h := handlers.NewDirectoryHandler(clinics, db.Doctors(), db.Services(), cache.New(time.Minute, 0), nil)

	r := gin.New()
	r.GET("/clinics", h.ListClinics)
	r.POST("/admin/clinics", h.CreateClinic)
	return r, clinics
}

func TestListClinics_CachedWithETag(t *testing.T) {
	r, clinics := newDirectoryRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clinics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/clinics", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	if clinics.lists != 1 {
		t.Fatalf("expected one store hit, got %d", clinics.lists)
	}
}

func TestCreateClinic_InvalidatesDirectoryCache(t *testing.T) {
	r, clinics := newDirectoryRouter(t)

	list := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clinics", nil))
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v body=%s", err, w.Body.String())
		}
		return body.Count
	}

	if got := list(); got != 1 {
		t.Fatalf("expected 1 clinic, got %d", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/clinics",
		strings.NewReader(`{"name":"<i>Hill</i> Clinic","address":"9 Ridge Ave"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	var created clinic.Clinic
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "Hill Clinic" {
		t.Fatalf("expected markup stripped, got %q", created.Name)
	}
	if created.Status != clinic.StatusOpen {
		t.Fatalf("expected default status open, got %q", created.Status)
	}

	if got := list(); got != 2 {
		t.Fatalf("expected 2 clinics after create, got %d", got)
	}
	if clinics.lists != 2 {
		t.Fatalf("expected cache miss after create, got %d store hits", clinics.lists)
	}
}

func TestListClinics_FreeTextQueriesStayBounded(t *testing.T) {
	db := memory.NewDB()
	c := cache.New(time.Minute, 16)
	h := handlers.NewDirectoryHandler(db.Clinics(), db.Doctors(), db.Services(), c, nil)

	r := gin.New()
	r.GET("/clinics", h.ListClinics)

	for i := 0; i < 500; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clinics?q=x"+strconv.Itoa(i), nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	if got := c.Len(); got > 16 {
		t.Fatalf("expected at most 16 cached responses, got %d", got)
	}
}

func TestListClinics_CacheControlFollowsTTL(t *testing.T) {
	r, _ := newDirectoryRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clinics", nil))

	if got := w.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Fatalf("expected public max-age=60, got %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected json content type, got %q", ct)
	}
}
