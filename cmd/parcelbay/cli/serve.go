package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parcelbay/parcelbay/internal/config"
	"github.com/parcelbay/parcelbay/internal/ratelimit"
	"github.com/parcelbay/parcelbay/internal/server"
	"github.com/parcelbay/parcelbay/internal/store"
)

const banner = `
 ___                  _ ___
| _ \__ _ _ _ __ ___ | | _ ) __ _ _  _
|  _/ _' | '_/ _/ -_)| | _ \/ _' | || |
|_| \__,_|_| \__\___||_|___/\__,_|\_, |
                                  |__/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ParcelBay API server",
		Long:  "Start the HTTP server that exposes the staff, customer, and courier REST APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	// 1. Load the YAML config if one is present; defaults otherwise.
	cfg := config.Default()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	// 2. Set up logger
	logLevel := slog.LevelInfo
	if dev || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	// 3. Open the store (SQLite file by default, PostgreSQL by DSN)
	dsn := cfg.Store.DSN
	if env := viper.GetString("store.dsn"); env != "" {
		dsn = env
	}
	if dsn == "" {
		dsn = resolveDataDir()
	}
	st, err := store.Open(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store initialized", "dsn", dsn)

	// 4. Rate limit tier overrides from config
	applyTierLimits(cfg.RateLimit)

	// 5. Session secret
	secret := cfg.Auth.SessionSecret
	if env := viper.GetString("auth.session_secret"); env != "" {
		secret = env
	}
	if secret == "" {
		secret = "parcelbay-dev-secret-change-me"
		logger.Warn("no session secret configured, using insecure development default",
			"hint", "set PARCELBAY_AUTH_SESSION_SECRET")
	}

	sessionTTL := 24 * time.Hour
	if cfg.Auth.SessionTTL != "" {
		if d, err := time.ParseDuration(cfg.Auth.SessionTTL); err == nil {
			sessionTTL = d
		}
	}
	shutdownTimeout := 30 * time.Second
	if cfg.Server.ShutdownTimeout != "" {
		if d, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err == nil {
			shutdownTimeout = d
		}
	}

	// 6. Check for first-run (no admin exists)
	hasAdmin, err := st.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: parcelbay staff create --role admin")
	}

	// 7. Build and start HTTP server
	srvCfg := server.Config{
		Host:            host,
		Port:            port,
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		SessionSecret:   secret,
		SessionTTL:      sessionTTL,
	}

	limiter := ratelimit.NewMemoryStore()
	srv := server.New(srvCfg, st, limiter, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ API base:   http://%s:%d/api/v1\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

// applyTierLimits overrides the built-in tier limits with any non-zero
// values from the configuration file.
func applyTierLimits(rl config.RateLimitConfig) {
	if rl.General > 0 {
		ratelimit.TierGeneral.Limit = rl.General
	}
	if rl.Auth > 0 {
		ratelimit.TierAuth.Limit = rl.Auth
	}
	if rl.APIKey > 0 {
		ratelimit.TierAPIKey.Limit = rl.APIKey
	}
	if rl.Upload > 0 {
		ratelimit.TierUpload.Limit = rl.Upload
	}
	if rl.PasswordReset > 0 {
		ratelimit.TierPasswordReset.Limit = rl.PasswordReset
	}
}
