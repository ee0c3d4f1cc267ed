package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/maglo/invoicing/docs"
	"github.com/maglo/invoicing/internal/api/handler"
	"github.com/maglo/invoicing/internal/api/middleware"
	"github.com/maglo/invoicing/internal/core/service"
)

// Dependencies is everything the router wires into handlers.
type Dependencies struct {
	Workspace *service.Workspace
	Invoices  handler.InvoiceActions
	Cookie    handler.CookieConfig
	Checks    map[string]handler.Check
	Logger    zerolog.Logger
	Now       func() time.Time

	// Registry receives the HTTP metrics. Nil means the default Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(metricsMiddleware(deps.Registry))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Workspace, deps.Cookie)
	invoiceHandler := handler.NewInvoiceHandler(deps.Invoices)
	dashboardHandler := handler.NewDashboardHandler(deps.Now)
	session := middleware.Session(deps.Workspace, deps.Cookie.Name)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, session)
	auth.GET("/me", authHandler.Me, session)

	// --- Invoice routes ---
	v1 := e.Group("/v1", session)
	v1.GET("/invoices", invoiceHandler.List)
	v1.POST("/invoices", invoiceHandler.Create)
	v1.GET("/invoices/:id", invoiceHandler.Get)
	v1.PATCH("/invoices/:id", invoiceHandler.Update)
	v1.DELETE("/invoices/:id", invoiceHandler.Delete)
	v1.POST("/invoices/:id/send", invoiceHandler.Send)

	// --- Dashboard routes ---
	v1.GET("/dashboard/metrics", dashboardHandler.Metrics)
	v1.GET("/dashboard/working-capital", dashboardHandler.WorkingCapital)
	v1.GET("/dashboard/due-dates", dashboardHandler.DueDates)
	v1.GET("/dashboard/vat-summary", dashboardHandler.VATSummary)
	v1.GET("/dashboard/recent-invoices", dashboardHandler.RecentInvoices)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", metricsHandler(deps.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func metricsMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "maglo",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg != nil {
		return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
	}
	return echoprometheus.NewHandler()
}
