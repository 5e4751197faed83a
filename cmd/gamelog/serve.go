package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/gamelog/internal/api"
	"github.com/erazemk/gamelog/internal/covers"
	"github.com/erazemk/gamelog/internal/db"
	"github.com/erazemk/gamelog/internal/store"
)

// pruneInterval is how often expired revoked tokens are dropped.
const pruneInterval = time.Hour

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game store server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.load(cmd, map[string]string{
				"addr":             "addr",
				"db":               "db",
				"covers":           "covers_url",
				"public-url":       "public_url",
				"allowed-origin":   "allowed_origins",
				"login-rate-limit": "login_rate_limit",
				"user":             "username",
			}, false)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "listen address")
	f.StringP("db", "d", "gamelog.sqlite3", "SQLite database path")
	f.String("covers", "", "cover bucket URL (file://, mem://, s3://); default: covers/ beside the database")
	f.String("public-url", "", "externally visible base URL for cover links")
	f.StringSlice("allowed-origin", nil, "browser origin allowed by CORS (repeatable)")
	f.Int("login-rate-limit", 10, "login attempts per IP per minute, 0 to disable")
	f.StringP("user", "u", "admin", "account username created on first run")
	return cmd
}

func serve(ctx context.Context, a *app, out io.Writer) error {
	cfg := a.cfg

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	password, err := ensureAccount(ctx, database, cfg.Username)
	if err != nil {
		return err
	}
	if password != "" {
		printAccount(out, cfg.Username, password)
	}

	bucketURL, err := cfg.CoversBucketURL()
	if err != nil {
		return err
	}
	bucket, err := covers.Open(ctx, bucketURL)
	if err != nil {
		return err
	}
	defer bucket.Close()
	slog.Info("cover storage ready", "url", bucketURL)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading jwt secret: %w", err)
	}

	handler := api.LoggingMiddleware(api.NewRouter(api.Config{
		DB:             database,
		Covers:         bucket,
		JWTSecret:      jwtSecret,
		PublicURL:      cfg.PublicURL,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginRateLimit: cfg.LoginRateLimit,
	}))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pruneTokens(ctx, database)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// ensureAccount creates the login account when the database has none. It
// returns the generated password, or "" if an account already existed.
func ensureAccount(ctx context.Context, database *sql.DB, username string) (string, error) {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, username, string(hash)); err != nil {
		return "", fmt.Errorf("creating account: %w", err)
	}
	slog.Info("account created", "user", username)
	return password, nil
}

// printAccount prints the first-run credentials.
func printAccount(w io.Writer, username, password string) {
	fmt.Fprintln(w, "Account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "It can be changed after logging in.")
	fmt.Fprintln(w)
}

// pruneTokens drops expired revocations until ctx is done.
func pruneTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PruneRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to prune revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("pruned revoked tokens", "count", n)
			}
		}
	}
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
