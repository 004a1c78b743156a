package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/authcookie"
	"boomscore/identity/internal/config"
	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/models"
	"boomscore/identity/internal/oauth"
	"boomscore/identity/internal/observe"
	"boomscore/identity/internal/service"
)

type HealthCheck func(ctx context.Context) error

type StateStore interface {
	Issue(ctx context.Context, redirect string) (string, error)
	Consume(ctx context.Context, state string) (string, error)
}

// Deps is everything the HTTP surface is built from. Optional pieces may be nil:
// without States google sign-in is off, without Limiter nothing is rate limited.
type Deps struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	Auth     *service.AuthService
	Accounts *service.AccountService
	Avatars  *service.AvatarService
	Google   *oauth.GoogleProvider
	States   StateStore
	Limiter  middleware.HitCounter
	Recorder observe.Recorder
	Checks   map[string]HealthCheck
	Metrics  http.Handler
	GraphQL  gin.HandlerFunc
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	auth      *service.AuthService
	accounts  *service.AccountService
	avatars   *service.AvatarService
	google    *oauth.GoogleProvider
	states    StateStore
	limiter   middleware.HitCounter
	recorder  observe.Recorder
	transport authcookie.Transport
	checks    map[string]HealthCheck
	metrics   http.Handler
	graphql   gin.HandlerFunc
}

func NewHandlerSet(d Deps) HandlerSet {
	recorder := d.Recorder
	if recorder == nil {
		recorder = observe.Nop()
	}
	return HandlerSet{
		log:       d.Log,
		cfg:       d.Config,
		auth:      d.Auth,
		accounts:  d.Accounts,
		avatars:   d.Avatars,
		google:    d.Google,
		states:    d.States,
		limiter:   d.Limiter,
		recorder:  recorder,
		transport: NewTransport(d.Config),
		checks:    d.Checks,
		metrics:   d.Metrics,
		graphql:   d.GraphQL,
	}
}

// NewTransport builds the cookie transport from configuration: secure cookies in
// production, the refresh cookie scoped to the /auth routes.
func NewTransport(cfg *config.AppConfig) authcookie.Transport {
	secure := cfg.IsProduction()
	access := authcookie.NewPolicy(cfg.Cookie.Name, cfg.Cookie.Domain, cfg.Cookie.SameSite, secure, cfg.AccessTTL())
	refresh := authcookie.NewPolicy(cfg.Cookie.RefreshName, cfg.Cookie.Domain, cfg.Cookie.SameSite, secure, cfg.RefreshTTL()).
		WithPath("/auth")
	return authcookie.NewTransport(access, refresh)
}

func (h HandlerSet) Transport() authcookie.Transport {
	return h.transport
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := router.Group("")
	api.Use(middleware.Authenticate(h.auth, h.transport, h.recorder, h.log))

	window := h.cfg.Security.LoginWindow
	attempts := h.cfg.Security.LoginMaxAttempts

	auth := api.Group("/auth")
	handle(auth, http.MethodPost, "/register", middleware.Public,
		middleware.RateLimit(h.limiter, "register", attempts, window, h.recorder, h.log), h.RegisterAccount)
	handle(auth, http.MethodPost, "/login", middleware.Public,
		middleware.RateLimit(h.limiter, "login", attempts, window, h.recorder, h.log), h.Login)
	handle(auth, http.MethodPost, "/refresh", middleware.Public, h.Refresh)
	handle(auth, http.MethodPost, "/logout", middleware.Public, h.Logout)

	handle(auth, http.MethodGet, "/me", middleware.RequiresAuth, h.Me)
	handle(auth, http.MethodPatch, "/me", middleware.RequiresAuth, h.UpdateProfile)
	handle(auth, http.MethodPost, "/me/avatar", middleware.RequiresAuth, h.UploadAvatar)

	handle(auth, http.MethodGet, "/sessions", middleware.RequiresAuth, h.ListSessions)
	handle(auth, http.MethodDelete, "/sessions/:id", middleware.RequiresAuth, h.RevokeSession)
	handle(auth, http.MethodGet, "/devices", middleware.RequiresAuth, h.ListDevices)
	handle(auth, http.MethodPost, "/devices/:id/trust", middleware.RequiresAuth, h.TrustDevice)
	handle(auth, http.MethodPost, "/devices/:id/block", middleware.RequiresAuth, h.BlockDevice)

	handle(auth, http.MethodGet, "/google", middleware.Public, h.GoogleStart)
	handle(auth, http.MethodGet, "/google/callback", middleware.Public, h.GoogleCallback)

	admin := api.Group("/admin")
	handle(admin, http.MethodPatch, "/users/:id/status", middleware.RequiresRole(models.UserRoleAdmin), h.SetUserStatus)
	handle(admin, http.MethodPatch, "/users/:id/role", middleware.RequiresRole(models.UserRoleAdmin), h.SetUserRole)

	if h.graphql != nil {
		handle(api, http.MethodPost, "/graphql", middleware.Public, h.graphql)
	}
}

// handle registers a route together with its access policy.
func handle(group *gin.RouterGroup, method, path string, policy middleware.Policy, chain ...gin.HandlerFunc) {
	group.Handle(method, path, append([]gin.HandlerFunc{middleware.Guard(policy)}, chain...)...)
}
