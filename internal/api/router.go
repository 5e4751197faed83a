package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/erazemk/gamelog/internal/covers"
)

// Config carries the dependencies of the API router.
type Config struct {
	DB        *sql.DB
	Covers    *covers.Bucket
	JWTSecret string
	// PublicURL is the base for cover links; derived per request when empty.
	PublicURL string
	// AllowedOrigins lists browser origins allowed by CORS. Empty disables CORS.
	AllowedOrigins []string
	// LoginRateLimit is the number of login attempts allowed per IP per
	// minute. Zero disables the limit.
	LoginRateLimit int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret}
	gamesHandler := &GamesHandler{DB: cfg.DB, Covers: cfg.Covers, PublicURL: cfg.PublicURL}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)

	// Public.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var login http.Handler = http.HandlerFunc(authHandler.Login)
	if cfg.LoginRateLimit > 0 {
		login = httprate.LimitByIP(cfg.LoginRateLimit, time.Minute)(login)
	}
	mux.Handle("POST /api/auth/login", login)

	// Authenticated.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	mux.Handle("GET /api/games", authMW(http.HandlerFunc(gamesHandler.List)))
	mux.Handle("POST /api/games", authMW(http.HandlerFunc(gamesHandler.Create)))
	mux.Handle("GET /api/games/{id}", authMW(http.HandlerFunc(gamesHandler.Get)))
	mux.Handle("PUT /api/games/{id}", authMW(http.HandlerFunc(gamesHandler.Update)))
	mux.Handle("DELETE /api/games/{id}", authMW(http.HandlerFunc(gamesHandler.Delete)))
	mux.Handle("PUT /api/games/{id}/remove-image", authMW(http.HandlerFunc(gamesHandler.RemoveImage)))
	mux.Handle("GET /api/games/{id}/cover", authMW(http.HandlerFunc(gamesHandler.GetCover)))

	if len(cfg.AllowedOrigins) == 0 {
		return mux
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(mux)
}
