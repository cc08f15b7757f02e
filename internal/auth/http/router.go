package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/carelinkhq/carelink/internal/auth/guard"
	"github.com/carelinkhq/carelink/internal/auth/service"
	"github.com/carelinkhq/carelink/internal/auth/store"
	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/jwtx"
	"github.com/carelinkhq/carelink/pkg/slogx"

	_ "github.com/carelinkhq/carelink/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Guard is the slice of the guard store the HTTP layer needs: blacklist
// lookups for authentication plus liveness for the readiness probe.
type Guard interface {
	httpx.Blacklist
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	guard Guard

	SessionService *service.SessionService
	Admission      *guard.AdmissionGuard
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	g Guard,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		guard:        g,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			CareLink Authentication Service API
//	@version		0.1.0
//	@description	Authentication service for the CareLink home-care platform: account
//	@description	registration, login, JWT refresh, and session revocation.
//	@description
//	@description				All tokens are signed using RS256 (RSA-SHA256) and can be verified using the JWKS endpoint.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	registerHandler := &RegisterHandler{SessionService: r.SessionService}
	loginHandler := &LoginHandler{SessionService: r.SessionService}
	refreshHandler := &RefreshHandler{SessionService: r.SessionService}
	logoutHandler := &LogoutHandler{SessionService: r.SessionService}

	// POST /auth/register and /auth/login sit behind the shared Redis
	// admission counters; these budgets hold across all instances.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(registerHandler,
			r.Admission.Middleware(guard.ActionRegister),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			r.Admission.Middleware(guard.ActionLogin),
		),
	)

	// POST /auth/refresh - moderate in-process limit; the token itself is
	// the credential here, so the Redis budgets do not apply.
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /auth/logout extracts the bearer token itself rather than via
	// AuthnMiddleware: logout of an expired or malformed token must still
	// be handled, not rejected at the door.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSessions() {
	userInfoHandler := &UserInfoHandler{SessionService: r.SessionService}
	sessionsHandler := &SessionsHandler{SessionService: r.SessionService}

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(userInfoHandler,
			httpx.AuthnMiddleware(r.verifier, r.guard),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(sessionsHandler.HandleList),
			httpx.AuthnMiddleware(r.verifier, r.guard),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(sessionsHandler.HandleRevoke),
			httpx.AuthnMiddleware(r.verifier, r.guard),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.guard, r.keys))
}
