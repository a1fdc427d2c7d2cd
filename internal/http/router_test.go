package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/clinicfinder/internal/auth"
	"github.com/geocoder89/clinicfinder/internal/cache"
	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	httpx "github.com/geocoder89/clinicfinder/internal/http"
	"github.com/geocoder89/clinicfinder/internal/repo/memory"
	"github.com/geocoder89/clinicfinder/internal/security"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router   *gin.Engine
	db       *memory.DB
	clinicA  clinic.Clinic
	clinicB  clinic.Clinic
	manager  int64
	password string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	db := memory.NewDB()

	a, err := db.Clinics().Create(ctx, clinic.CreateRequest{Name: "Harbor Clinic", Address: "1 Pier Rd"})
	require.NoError(t, err)
	b, err := db.Clinics().Create(ctx, clinic.CreateRequest{Name: "Hill Clinic", Address: "9 Ridge Ave"})
	require.NoError(t, err)

	const password = "s3cret-pass"
	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	m, err := db.Managers().Create(ctx, user.User{
		Email:        "mgr@example.com",
		PasswordHash: hash,
		FirstName:    "Mara",
		LastName:     "Reyes",
	}, []int64{a.ID})
	require.NoError(t, err)

	_, err = db.Users().Create(ctx, user.User{
		Email:        "admin@example.com",
		PasswordHash: hash,
		FirstName:    "Root",
		LastName:     "Admin",
		Role:         user.RoleAdmin,
		Status:       user.StatusActive,
	})
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	cfg := config.Config{
		Env:                  "test",
		Timezone:             time.UTC,
		SessionTTL:           time.Hour,
		CookieSameSite:       http.SameSiteLaxMode,
		LoginRatePerMinute:   1000,
		BookingRatePerMinute: 1000,
	}

	r := httpx.NewRouter(httpx.Deps{
		Config:       cfg,
		Users:        db.Users(),
		Clinics:      db.Clinics(),
		Doctors:      db.Doctors(),
		Services:     db.Services(),
		Appointments: db.Appointments(),
		Managers:     db.Managers(),
		Jobs:         db.Jobs(),
		Sessions:     session.NewManager(session.NewMemoryStore(), time.Hour),
		MagicLinks:   auth.NewMagicLinks("test-secret", time.Hour, "http://localhost:5173"),
		Cache:        cache.New(time.Minute, 0),
		Now:          func() time.Time { return now },
	})

	return &testApp{router: r, db: db, clinicA: a, clinicB: b, manager: m.ID, password: password}
}

// do sends a request with the given cookies attached.
func (app *testApp) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response: %v", name, w.Header().Values("Set-Cookie"))
	return nil
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (app *testApp) registerPatient(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := app.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"`+email+`","password":"patient-pass","firstName":"Ana","lastName":"Cruz"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return sessionCookie(t, w, session.PatientCookie)
}

func (app *testApp) adminLogin(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := app.do(t, http.MethodPost, "/api/auth/admin-login",
		`{"email":"`+email+`","password":"`+app.password+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w, session.AdminCookie)
}

func bookingBody(clinicID int64, email string) string {
	return `{"clinicId":` + strconv.FormatInt(clinicID, 10) +
		`,"service":"Checkup","date":"2026-10-20","time":"9:00 AM","firstName":"Ana","lastName":"Cruz","email":"` + email + `"}`
}

func TestRouter_UnauthenticatedStaffRoutes(t *testing.T) {
	app := newTestApp(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/clinic-manager/dashboard"},
		{http.MethodGet, "/api/clinic-manager/does-not-exist"},
		{http.MethodGet, "/api/admin/clinic-managers"},
		{http.MethodGet, "/api/admin/does-not-exist"},
	}

	for _, tc := range paths {
		t.Run(tc.path, func(t *testing.T) {
			w := app.do(t, tc.method, tc.path, "")
			require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
			body := decodeError(t, w)
			assert.Equal(t, "unauthorized", body.Error.Code)
			assert.Equal(t, "/admin", body.Error.Details["redirect"])
		})
	}
}

func TestRouter_UnknownPublicRouteIs404(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PatientCannotUseStaffSurface(t *testing.T) {
	app := newTestApp(t)
	patient := app.registerPatient(t, "ana@example.com")

	// patient cookie is not an admin session
	w := app.do(t, http.MethodGet, "/api/clinic-manager/dashboard", "", patient)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_BookingConflictAcrossPatients(t *testing.T) {
	app := newTestApp(t)
	first := app.registerPatient(t, "ana@example.com")
	second := app.registerPatient(t, "ben@example.com")

	w := app.do(t, http.MethodPost, "/api/appointments", bookingBody(app.clinicA.ID, "ana@example.com"), first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/appointments", bookingBody(app.clinicA.ID, "ben@example.com"), second)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var conflict struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, "time_slot_conflict", conflict.Error)
	assert.Equal(t, "2026-10-20", conflict.Details["date"])
	assert.Equal(t, "09:00", conflict.Details["time"])

	// same time at another clinic is a different slot
	w = app.do(t, http.MethodPost, "/api/appointments", bookingBody(app.clinicB.ID, "ben@example.com"), second)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/appointments/availability?clinic_id="+
		strconv.FormatInt(app.clinicA.ID, 10)+"&date=2026-10-20", "")
	require.Equal(t, http.StatusOK, w.Code)
	var avail struct {
		Taken []string `json:"taken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.Equal(t, []string{"09:00"}, avail.Taken)
}

func TestRouter_ManagerScope(t *testing.T) {
	app := newTestApp(t)
	mgr := app.adminLogin(t, "mgr@example.com")

	w := app.do(t, http.MethodGet, "/api/clinic-manager/dashboard", "", mgr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dash struct {
		ClinicIDs []int64 `json:"clinicIds"`
		Today     string  `json:"today"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, []int64{app.clinicA.ID}, dash.ClinicIDs)
	assert.Equal(t, "2026-10-15", dash.Today)

	w = app.do(t, http.MethodGet, "/api/clinic-manager/dashboard?clinic_id="+strconv.FormatInt(app.clinicB.ID, 10), "", mgr)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// admin-only routes are out of reach for a manager
	w = app.do(t, http.MethodGet, "/api/admin/clinic-managers", "", mgr)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestRouter_ManagerOnPatientLoginIsWrongLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/login", `{"email":"mgr@example.com","password":"`+app.password+`"}`)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "wrong_login", decodeError(t, w).Error.Code)
}

func TestRouter_DeactivatedManagerLosesSession(t *testing.T) {
	app := newTestApp(t)
	mgr := app.adminLogin(t, "mgr@example.com")
	adm := app.adminLogin(t, "admin@example.com")

	w := app.do(t, http.MethodGet, "/api/clinic-manager/managed-clinics", "", mgr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPatch, "/api/admin/clinic-managers/"+strconv.FormatInt(app.manager, 10)+"/deactivate", "", adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/clinic-manager/managed-clinics", "", mgr)
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/auth/admin-login", `{"email":"mgr@example.com","password":"`+app.password+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "account_inactive", decodeError(t, w).Error.Code)
}

func TestRouter_BookingScenarioPastDateAccepted(t *testing.T) {
	app := newTestApp(t)

	// ids are shared across entities: two clinics and two principals come first
	c, err := app.db.Clinics().Create(context.Background(), clinic.CreateRequest{Name: "Bay Clinic", Address: "5 Shore Rd"})
	require.NoError(t, err)
	require.Equal(t, int64(5), c.ID)

	first := app.registerPatient(t, "ana@example.com")
	second := app.registerPatient(t, "ben@example.com")

	body := func(email string) string {
		return `{"clinicId":5,"service":"Checkup","date":"2025-03-01","time":"14:30","firstName":"Ana","lastName":"Cruz","email":"` + email + `"}`
	}

	w := app.do(t, http.MethodPost, "/api/appointments", body("ana@example.com"), first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var booked struct {
		Status        string `json:"status"`
		DisplayStatus string `json:"displayStatus"`
		Date          string `json:"date"`
		Time          string `json:"time"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booked))
	assert.Equal(t, "pending_approval", booked.Status)
	assert.Equal(t, "scheduled", booked.DisplayStatus)

	w = app.do(t, http.MethodPost, "/api/appointments", body("ben@example.com"), second)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var conflict struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, "time_slot_conflict", conflict.Error)
	assert.Equal(t, map[string]any{"clinic_id": float64(5), "date": "2025-03-01", "time": "14:30"}, conflict.Details)
}

func TestRouter_ReactivatedManagerSeesNoClinics(t *testing.T) {
	app := newTestApp(t)
	adm := app.adminLogin(t, "admin@example.com")
	managerPath := "/api/admin/clinic-managers/" + strconv.FormatInt(app.manager, 10)

	// give the manager two clinics before deactivating
	w := app.do(t, http.MethodPut, managerPath+"/clinics",
		`{"clinicIds":[`+strconv.FormatInt(app.clinicA.ID, 10)+`,`+strconv.FormatInt(app.clinicB.ID, 10)+`]}`, adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPatch, managerPath+"/deactivate", "", adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = app.do(t, http.MethodPatch, managerPath+"/activate", "", adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	mgr := app.adminLogin(t, "mgr@example.com")

	w = app.do(t, http.MethodGet, "/api/clinic-manager/managed-clinics", "", mgr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"items":[],"count":0}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/clinic-manager/dashboard", "", mgr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dash struct {
		ClinicIDs []int64         `json:"clinicIds"`
		Stats     map[string]int  `json:"stats"`
		Upcoming  json.RawMessage `json:"upcoming"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.NotNil(t, dash.ClinicIDs)
	assert.Empty(t, dash.ClinicIDs)
	for name, n := range dash.Stats {
		assert.Zero(t, n, "stats.%s", name)
	}
	assert.JSONEq(t, `[]`, string(dash.Upcoming))

	w = app.do(t, http.MethodGet, "/api/clinic-manager/appointments", "", mgr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Count)
}

func TestRouter_GuardRunsBeforeContentTypeCheck(t *testing.T) {
	app := newTestApp(t)

	send := func(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("name=x"))
		req.Header.Set("Content-Type", "text/plain")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		return w
	}

	for _, path := range []string{"/api/admin/clinics", "/api/clinic-manager/clinic/doctors", "/api/clinics"} {
		w := send(path)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s: %s", path, w.Body.String())
	}

	// once signed in the body check applies
	adm := app.adminLogin(t, "admin@example.com")
	w := send("/api/admin/clinics", adm)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, w.Body.String())
}
