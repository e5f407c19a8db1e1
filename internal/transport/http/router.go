package http

import (
	"net/http"

	"github.com/bucket-api/internal/application/otp"
	"github.com/bucket-api/internal/application/product"
	"github.com/bucket-api/internal/application/session"
	"github.com/bucket-api/internal/application/user"
	"github.com/bucket-api/internal/config"
	"github.com/bucket-api/internal/transport/http/handler"
	appmiddleware "github.com/bucket-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{Registry: deps.Metrics}))
	}

	// Product mutations are open when no key pair is configured.
	productAuth := func(next http.Handler) http.Handler { return next }
	if deps.JWTProvider != nil {
		productAuth = appmiddleware.Auth(deps.JWTProvider)
	}
	sessionAuth := appmiddleware.Auth(deps.JWTProvider)

	sensitiveRL := deps.RateLimiter
	if sensitiveRL == nil {
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Registry:  deps.OTPRegistry,
		Mailer:    deps.Mailer,
		TTL:       cfg.OTPTTL,
		SingleUse: cfg.OTPSingleUse,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:   deps.UserRepo,
		BcryptCost: cfg.BcryptCost,
	})
	sessionDeps := session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		SessionRepo:     deps.SessionRepo,
		RefreshTokenDur: cfg.RefreshTokenExpiry,
	}
	if deps.JWTProvider != nil {
		sessionDeps.JWTProvider = deps.JWTProvider
	}
	sessionSvc := session.NewService(sessionDeps)
	productDeps := product.ServiceDeps{
		ProductRepo:   deps.ProductRepo,
		MaxImageBytes: cfg.MaxImageBytes,
	}
	if deps.Images != nil {
		productDeps.Images = deps.Images
	}
	if deps.Events != nil {
		productDeps.Events = deps.Events
	}
	productSvc := product.NewService(productDeps)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	userH := handler.NewUserHandler(userSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	productH := handler.NewProductHandler(productSvc, cfg.MaxImageBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appmiddleware.Metrics)

		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/otp/issue", otpH.Issue)
		r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/refresh", sessionH.Refresh)

		r.Get("/products", productH.List)
		r.Get("/products/{id}", productH.Get)
		r.Get("/products/{id}/image", productH.Image)
		r.Get("/users/{id}/products", productH.ListByOwner)

		// ── Session routes (Bearer required) ─────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
		})

		// ── Catalog mutations ────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(productAuth)
			r.Post("/products", productH.Create)
			r.Put("/products/{id}", productH.Update)
			r.Delete("/products/{id}", productH.Delete)
			r.Post("/products/{id}/image", productH.UploadImage)
		})
	})

	return r
}
