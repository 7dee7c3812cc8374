package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors(h.Cfg.CORSOrigins))

	r.Get("/", h.Index)
	r.Get("/health", h.Health)

	r.Post("/upload", h.Upload)
	r.Post("/send_emails", h.SendEmails)
	r.Get("/progress", h.Progress)
	r.Post("/cancel_emails", h.CancelEmails)
	r.Post("/send_test_email", h.SendTestEmail)
	r.Get("/ledger/stats", h.LedgerStats)

	r.Get("/login", h.Login)
	r.Get("/oauth2callback", h.OAuthCallback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ai/generate_email", h.GenerateEmail)
		r.Post("/ai/generate_batch_emails", h.GenerateBatchEmails)

		r.Get("/auth/gmail/authorize", h.GmailAuthorize)
		r.Get("/auth/oauth2callback", h.OAuthCallback)
		r.Get("/auth/gmail/status", h.GmailStatus)
		r.Post("/auth/gmail/disconnect", h.GmailDisconnect)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			// progress is polled every second or two
			if r.URL.Path == "/progress" {
				return
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Origin", "Content-Type", "Accept", "Authorization"}, ", ")
)

// cors echoes allowed origins with credentials enabled and answers
// preflight requests itself.
func cors(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || (!wildcard && !slices.Contains(origins, origin)) {
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Add("Vary", "Origin")
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				headers.Set("Access-Control-Allow-Methods", corsMethods)
				headers.Set("Access-Control-Allow-Headers", corsHeaders)
				headers.Set("Access-Control-Max-Age", "43200")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
