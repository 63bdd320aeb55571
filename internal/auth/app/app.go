package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/rentora/rentora/internal/auth/http"
	"github.com/rentora/rentora/internal/auth/service"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/internal/auth/store/drivers/sqlite"
	"github.com/rentora/rentora/pkg/cryptox"
	"github.com/rentora/rentora/pkg/jwtx"
	"github.com/rentora/rentora/pkg/mailx"
	"github.com/rentora/rentora/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the auth service together: store, services, mail
// and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Signer
	cipher *cryptox.SecretCipher
	mailer mailx.Mailer

	authService         *service.AuthService
	tokenService        *service.TokenService
	mfaService          *service.MFAService
	biometricService    *service.BiometricService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "rentora-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSigner(cfg.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer
	if cfg.SigningSeed == "" {
		app.logger.Warn("no signing seed configured, using an ephemeral key; tokens will not survive a restart")
	}

	cipher, err := app.initCipher()
	if err != nil {
		return nil, err
	}
	app.cipher = cipher

	app.initMailer()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, housekeeping and database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCipher builds the TOTP seed cipher from the configured key, or
// derives one from the app secret when no dedicated key is set.
func (app *Application) initCipher() (*cryptox.SecretCipher, error) {
	if app.cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(app.cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("AUTH_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		return cryptox.NewSecretCipher(key)
	}

	if app.cfg.AppSecret == "" {
		return nil, fmt.Errorf("either AUTH_ENCRYPTION_KEY or AUTH_APP_SECRET must be set")
	}

	app.logger.Warn("no dedicated encryption key configured, deriving cipher key from app secret")
	return cryptox.NewSecretCipher(cryptox.DeriveCipherKey(app.cfg.AppSecret))
}

func (app *Application) initMailer() {
	if app.cfg.SMTPHost == "" {
		app.logger.Info("no SMTP host configured, mail goes to the log")
		app.mailer = &mailx.LogMailer{Logger: app.logger}
		return
	}

	app.mailer = &mailx.SMTPMailer{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.MailFrom,
		BaseURL:  app.cfg.BaseURL,
	}
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:     app.signer,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.authService = &service.AuthService{
		Store:             app.db,
		Tokens:            app.tokenService,
		Mailer:            app.mailer,
		PendingSessionTTL: app.cfg.PendingSessionTTL,
		ResetTokenTTL:     app.cfg.ResetTokenTTL,
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Tokens: app.tokenService,
		Cipher: app.cipher,
		Issuer: app.cfg.Issuer,
	}

	app.biometricService = &service.BiometricService{
		Store:        app.db,
		Tokens:       app.tokenService,
		ChallengeTTL: app.cfg.ChallengeTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer.Verifier(app.cfg.Issuer),
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.MFAService = app.mfaService
	router.BiometricService = app.biometricService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
