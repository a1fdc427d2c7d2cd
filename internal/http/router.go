package http

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/clinicfinder/internal/access"
	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/http/handlers"
	"github.com/geocoder89/clinicfinder/internal/http/middlewares"
	"github.com/geocoder89/clinicfinder/internal/observability"
	"github.com/geocoder89/clinicfinder/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type UserRepo interface {
	handlers.AuthUsers
	handlers.UserAdminStore
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type ManagerRepo interface {
	handlers.ManagerStore
	handlers.ManagerScopes
}

// Deps is everything the API needs. Nil Prom, Gatherer and Cache are allowed.
type Deps struct {
	Log          *slog.Logger
	Config       config.Config
	Users        UserRepo
	Clinics      handlers.ClinicStore
	Doctors      handlers.DoctorStore
	Services     handlers.ServiceStore
	Appointments handlers.AppointmentStore
	Managers     ManagerRepo
	Jobs         handlers.AdminJobsRepo
	Sessions     *session.Manager
	MagicLinks   handlers.MagicLinkVerifier
	Cache        handlers.DirectoryCache
	Prom         *observability.Prom
	Gatherer     prometheus.Gatherer
	Checks       map[string]handlers.Pinger
	Now          func() time.Time
	// Stop ends the rate limiter and cache sweepers. Nil disables sweeping.
	Stop <-chan struct{}
}

type sweeper interface {
	RunSweeper(interval time.Duration, stop <-chan struct{})
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.Config.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("clinicfinder"))
	}
	r.Use(middlewares.RequestLogger(log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(d.Config.IsProd()))
	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.CORS(d.Config.CORSAllowedOrigins))
	}

	// health
	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	cookies := session.Cookies{
		Domain:   d.Config.CookieDomain,
		Secure:   d.Config.CookieSecure,
		SameSite: d.Config.CookieSameSite,
	}
	guard := &middlewares.SessionGuard{
		Sessions: d.Sessions,
		Users:    d.Users,
		Cookies:  cookies,
		Prom:     d.Prom,
		Log:      log,
	}
	clock := handlers.Clock{Now: d.Now, Location: d.Config.Timezone, RejectPastDates: d.Config.RejectPastBookings}

	loginLimiter := middlewares.NewRateLimiter(d.Config.LoginRatePerMinute)
	bookingLimiter := middlewares.NewRateLimiter(d.Config.BookingRatePerMinute)
	if d.Stop != nil {
		go loginLimiter.RunSweeper(time.Minute, d.Stop)
		go bookingLimiter.RunSweeper(time.Minute, d.Stop)
		if s, ok := d.Cache.(sweeper); ok {
			go s.RunSweeper(time.Minute, d.Stop)
		}
	}
	loginLimit := loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP)
	bookingLimit := bookingLimiter.RateLimiterMiddleware(middlewares.KeyByPrincipalOrIP)

	authH := handlers.NewAuthHandler(d.Users, d.Sessions, guard, cookies, log)
	dirH := handlers.NewDirectoryHandler(d.Clinics, d.Doctors, d.Services, d.Cache, log)
	apptH := handlers.NewAppointmentsHandler(d.Appointments, d.MagicLinks, clock, d.Prom, log)
	mgrH := handlers.NewManagerHandler(d.Managers, d.Appointments, dirH, clock, log)
	adminMgrH := handlers.NewAdminManagersHandler(d.Managers, d.Sessions, log)
	adminUsersH := handlers.NewAdminUsersHandler(d.Users)
	jobsH := handlers.NewAdminJobsHandler(d.Jobs)

	patient := guard.Require(access.SurfacePatient)
	admin := guard.Require(access.SurfaceAdmin)
	clinicManager := guard.Require(access.SurfaceClinicManager)

	// jsonBody goes after the session guard on every guarded route
	jsonBody := middlewares.RequireJSON()

	api := r.Group("/api")
	api.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	authG := api.Group("/auth")
	{
		authG.POST("/register", loginLimit, jsonBody, authH.Register)
		authG.POST("/login", loginLimit, jsonBody, authH.Login)
		authG.POST("/logout", authH.Logout)
		authG.GET("/me", guard.RequireSession(session.ScopePatient), authH.Me)
		authG.PUT("/profile", patient, jsonBody, authH.UpdateProfile)
		authG.PUT("/password", patient, jsonBody, authH.ChangePassword)

		authG.POST("/admin-login", loginLimit, jsonBody, authH.AdminLogin)
		authG.POST("/admin-logout", authH.AdminLogout)
		authG.GET("/admin-me", guard.RequireSession(session.ScopeAdmin), authH.Me)

		authG.GET("/access", authH.Access)
	}

	clinics := api.Group("/clinics")
	{
		clinics.GET("", dirH.ListClinics)
		clinics.POST("", admin, jsonBody, dirH.CreateClinic)
		clinics.GET("/map-data", dirH.MapData)
		clinics.GET("/:id", dirH.GetClinic)
		clinics.GET("/:id/services", dirH.ClinicServices)
		clinics.GET("/:id/doctors", dirH.ClinicDoctors)
	}

	appts := api.Group("/appointments")
	{
		appts.GET("/availability", apptH.Availability)
		appts.GET("/magic/:token", apptH.MagicGet)
		appts.PATCH("/magic/:token/cancel", loginLimit, jsonBody, apptH.MagicCancel)

		appts.GET("", patient, apptH.ListMine)
		appts.POST("", patient, bookingLimit, jsonBody, apptH.Book)
		appts.PATCH("/:id/cancel", patient, jsonBody, apptH.Cancel)
		appts.PATCH("/:id/reschedule", patient, bookingLimit, jsonBody, apptH.Reschedule)
	}

	adminG := api.Group("/admin", admin, jsonBody)
	{
		adminG.GET("/clinic-managers", adminMgrH.List)
		adminG.POST("/clinic-managers", adminMgrH.Create)
		adminG.GET("/clinic-managers/:id", adminMgrH.Get)
		adminG.PUT("/clinic-managers/:id", adminMgrH.Update)
		adminG.PUT("/clinic-managers/:id/clinics", adminMgrH.Assign)
		adminG.PATCH("/clinic-managers/:id/deactivate", adminMgrH.Deactivate)
		adminG.PATCH("/clinic-managers/:id/activate", adminMgrH.Activate)

		adminG.GET("/clinics", dirH.AdminListClinics)
		adminG.POST("/clinics", dirH.CreateClinic)
		adminG.PUT("/clinics/:id", dirH.UpdateClinic)
		adminG.DELETE("/clinics/:id", dirH.DeleteClinic)
		adminG.PATCH("/clinics/:id/status", dirH.SetClinicStatus)

		adminG.GET("/doctors", dirH.AdminListDoctors)
		adminG.POST("/doctors", dirH.CreateDoctor)
		adminG.PUT("/doctors/:id", dirH.UpdateDoctor)
		adminG.DELETE("/doctors/:id", dirH.DeleteDoctor)

		adminG.GET("/services", dirH.AdminListServices)
		adminG.POST("/services", dirH.CreateService)
		adminG.PUT("/services/:id", dirH.UpdateService)
		adminG.DELETE("/services/:id", dirH.DeleteService)

		adminG.GET("/users", adminUsersH.List)
		adminG.PUT("/users/:id", adminUsersH.Update)

		adminG.GET("/jobs", jobsH.List)
		adminG.GET("/jobs/:id", jobsH.GetByID)
		adminG.POST("/jobs/:id/retry", jobsH.Retry)
	}

	mgr := api.Group("/clinic-manager", clinicManager, jsonBody)
	{
		mgr.GET("/managed-clinics", mgrH.ManagedClinics)
		mgr.GET("/dashboard", mgrH.Dashboard)
		mgr.GET("/appointments", mgrH.Appointments)
		mgr.PATCH("/appointments/:id/status", mgrH.UpdateAppointmentStatus)
		mgr.PATCH("/clinic/status", mgrH.SetClinicStatus)

		mgr.GET("/clinic/doctors", mgrH.ListDoctors)
		mgr.POST("/clinic/doctors", mgrH.CreateDoctor)
		mgr.PUT("/clinic/doctors/:id", mgrH.UpdateDoctor)
		mgr.DELETE("/clinic/doctors/:id", mgrH.DeleteDoctor)

		mgr.GET("/clinic/services", mgrH.ListServices)
		mgr.POST("/clinic/services", mgrH.CreateService)
		mgr.PUT("/clinic/services/:id", mgrH.UpdateService)
		mgr.DELETE("/clinic/services/:id", mgrH.DeleteService)
	}

	// unmatched /api/clinic-manager/* and /api/admin/* paths still need a
	// session before they can learn the route does not exist
	r.NoRoute(guardUnmatched(map[string]gin.HandlerFunc{
		"/api/admin/":          admin,
		"/api/clinic-manager/": clinicManager,
	}), func(c *gin.Context) {
		handlers.RespondNotFound(c, "Route not found")
	})

	return r
}

func guardUnmatched(prefixes map[string]gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for prefix, guard := range prefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				guard(c)
				return
			}
		}
		c.Next()
	}
}
