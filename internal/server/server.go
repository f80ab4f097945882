package server

import (
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"meetmax/internal/auth"
	"meetmax/internal/chat"
	"meetmax/internal/config"
)

type Server struct {
	Auth           *auth.Service
	Tokens         *auth.TokenService
	Conversations  *chat.Registry
	Messages       *chat.Stream
	Hub            *chat.Hub
	RateLimiter    *auth.RateLimiter
	Audit          *auth.AuditLogger
	Redis          *redis.Client
	Config         config.Config
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, authSvc *auth.Service, conversations *chat.Registry, messages *chat.Stream, hub *chat.Hub, redisClient *redis.Client) *Server {
	return &Server{
		Auth:           authSvc,
		Tokens:         authSvc.Tokens(),
		Conversations:  conversations,
		Messages:       messages,
		Hub:            hub,
		RateLimiter:    &auth.RateLimiter{Redis: redisClient},
		Audit:          &auth.AuditLogger{Redis: redisClient},
		Redis:          redisClient,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  log.New(log.Writer(), "", log.Flags()),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(cors(s.Config.FrontendURL))
	r.Use(withLocale)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Post("/register", s.handleRegister)
		ar.Post("/verify-otp", s.handleVerifyOTP)
		ar.Post("/resend-otp", s.handleResendOTP)
		ar.Post("/login", s.handleLogin)
		ar.Post("/verify-email", s.handleRequestReset)
		ar.Post("/reset-password", s.handleResetPassword)
		ar.Get("/google", s.handleGoogleStart)
		ar.Post("/google/callback", s.handleGoogleCallback)

		ar.With(s.requireRefreshToken).Post("/refresh", s.handleRefresh)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireAccessToken)
			pr.Post("/logout", s.handleLogout)
			pr.Get("/me", s.handleMe)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAccessToken)

		pr.Post("/api/conversations", s.handleCreateConversation)
		pr.Get("/api/conversations", s.handleListConversations)
		pr.Get("/api/conversations/{id}", s.handleGetConversation)
		pr.Delete("/api/conversations/{id}", s.handleDeleteConversation)

		pr.Get("/api/messages", s.handleListMessages)
		pr.Post("/api/messages", s.handleCreateMessage)
		pr.Delete("/api/messages/{messageId}", s.handleDeleteMessage)
	})

	r.Method(http.MethodGet, "/ws", chat.NewWSHandler(s.Hub, s.Conversations, s))

	return r
}
