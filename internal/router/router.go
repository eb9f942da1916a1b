package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/utilhub/membership-auth/internal/handler"    // import the handlers that implement business logic
	"github.com/utilhub/membership-auth/internal/middleware" // import middleware for session authentication and tier enforcement
	"github.com/utilhub/membership-auth/internal/model"      // membership tier constants
	"github.com/utilhub/membership-auth/internal/repository" // account repository needed by the auth middleware
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /auth; the
// protected profile and upgrade endpoints share the same prefix but run
// behind SessionAuth, which verifies the bearer token and re-checks the
// account against the store.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, accounts *repository.AccountRepo, jwtSecret string) {
	// Operations that do not require an existing session: register, login,
	// token refresh, logout and the password-reset pair.  Each handler is
	// responsible for generating, exchanging or revoking tokens itself.
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout is registered without middleware: it accepts either a bearer
	// access token or a refresh token in the body and validates whichever
	// it gets, so an expired access token can still end its session.
	g.POST("/logout", a.Logout)
	g.POST("/password-reset/request", a.RequestPasswordReset)
	g.POST("/password-reset/confirm", a.ConfirmPasswordReset)

	// Protected endpoints.  SessionAuth places account_id and email into
	// the request context for the handlers.
	auth := e.Group("/auth", middleware.SessionAuth(jwtSecret, accounts))
	auth.GET("/me", a.Me)
	auth.POST("/upgrade", a.Upgrade)
}

// RegisterUsers registers the authenticated account endpoints.  All routes
// run behind SessionAuth; premium-features additionally runs behind the
// membership gate requiring at least the premium tier (annual passes too).
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, accounts *repository.AccountRepo, jwtSecret string) {
	g := e.Group("/users", middleware.SessionAuth(jwtSecret, accounts))
	g.GET("/stats", u.Stats)
	g.GET("/premium-features", u.PremiumFeatures, middleware.RequireTier(accounts, model.TierPremium))
}

// RegisterPublic registers unauthenticated catalogue endpoints.  The cache
// middleware is built in main (it needs the Redis client) and passed in; it
// may be a pass-through when caching is disabled.
func RegisterPublic(e *echo.Echo, u *handler.UserHandler, cache echo.MiddlewareFunc) {
	e.GET("/features", u.Features, cache)
}
