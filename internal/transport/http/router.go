package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/transport/http/handler"
	appmiddleware "github.com/go-api-accounts/internal/transport/http/middleware"
)

var routeIndex = map[string]string{
	"health":          "GET /v1/health",
	"register":        "POST /v1/register",
	"verify_otp":      "POST /v1/verify-otp",
	"login":           "POST /v1/login",
	"forgot_password": "POST /v1/forgot-password",
	"reset_password":  "POST /v1/reset-password",
	"delete_account":  "DELETE /v1/account",
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	healthH := handler.NewHealthHandler(deps.Store, Version, routeIndex)
	accountH := handler.NewAccountHandler(deps.Auth)

	r.Get("/", healthH.Index)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", healthH.Health)

		r.Post("/register", accountH.Register)
		r.Post("/verify-otp", accountH.VerifyOTP)
		r.Post("/login", accountH.Login)
		r.Post("/forgot-password", accountH.ForgotPassword)
		r.Post("/reset-password", accountH.ResetPassword)

		r.With(appmiddleware.RequireBearer).Delete("/account", accountH.DeleteAccount)
	})

	return r
}
