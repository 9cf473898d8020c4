package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/njwalker/meetingbot/internal/conversation"
	httpmiddleware "github.com/njwalker/meetingbot/internal/http/middleware"
	"github.com/njwalker/meetingbot/internal/webchat"
	"github.com/njwalker/meetingbot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	AdminJWTSecret      string
	CORSAllowedOrigins  []string

	// TurnRateLimit is requests/sec per IP on the turn endpoints; zero
	// disables limiting.
	TurnRateLimit float64
	TurnRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Conversation turns, optionally rate limited
	r.Group(func(turns chi.Router) {
		if cfg.TurnRateLimit > 0 {
			turns.Use(httpmiddleware.RateLimit(cfg.TurnRateLimit, cfg.TurnRateBurst))
		}
		turns.Post("/turns", cfg.ConversationHandler.Turn)
		if cfg.WebChatHandler != nil {
			turns.Route("/chat", func(chat chi.Router) {
				chat.Get("/ws", cfg.WebChatHandler.HandleWebSocket)
				chat.Post("/message", cfg.WebChatHandler.HandleMessage)
				chat.Get("/widget.js", cfg.WebChatHandler.HandleWidgetJS)
			})
		}
	})

	// Conversation state inspection and reset. Protected when an admin
	// secret is configured, open otherwise (local development).
	r.Route("/conversations/{conversationID}", func(conv chi.Router) {
		if cfg.AdminJWTSecret != "" {
			conv.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
		}
		conv.Get("/state", cfg.ConversationHandler.State)
		conv.Post("/reset", cfg.ConversationHandler.Reset)
	})

	return r
}
