package server

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/encryptcookie"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/gofiber/storage/redis/v3"
	"github.com/gofiber/template/html/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"giftlist/internal/config"
	"giftlist/internal/handlers"
	"giftlist/views"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App   *fiber.App
	Cfg   *config.Config
	Views fiber.Views
	Log   *logrus.Logger

	storage   fiber.Storage
	accessLog io.Closer
}

// New creates a new server with middleware configured. Sessions and rate
// limits live in Redis when REDIS_URL is set, in memory otherwise.
func New(cfg *config.Config, log *logrus.Logger) *Server {
	engine := html.NewFileSystem(http.FS(views.FS), ".html")
	engine.Reload(cfg.IsDev())

	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			} else {
				log.WithError(err).WithField("path", c.Path()).Error("Request failed")
			}

			if c.Get("HX-Request") != "" {
				c.Status(code)
				return c.SendString(handlers.AlertHTML(message))
			}

			return c.Status(code).Render("error", handlers.MergeBranding(fiber.Map{
				"Title":   "Error",
				"Message": message,
			}, cfg))
		},
	})

	accessLog := log.WriterLevel(logrus.InfoLevel)

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Stream: accessLog,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Cookie encryption middleware
	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: deriveEncryptionKey(cfg.SessionSecret),
	}))

	storage := newStorage(cfg)

	sessionMiddleware, _ := session.NewWithStore(session.Config{
		Storage:        storage,
		IdleTimeout:    cfg.SessionIdleTimeout,
		CookieSecure:   cfg.TLSEnabled || !cfg.IsDev(),
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
	app.Use(sessionMiddleware)

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMinute,
		Expiration: 1 * time.Minute,
		Storage:    storage,
		Next: func(c fiber.Ctx) bool {
			// Long-lived or infrastructure endpoints
			switch c.Path() {
			case "/events", "/healthz", "/readyz", "/metrics":
				return true
			}
			return false
		},
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status": "error",
				"error":  "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	staticFS, err := fs.Sub(views.FS, "static")
	if err != nil {
		panic(err)
	}
	app.Get("/static/*", static.New("", static.Config{FS: staticFS}))

	return &Server{
		App:       app,
		Cfg:       cfg,
		Views:     engine,
		Log:       log,
		storage:   storage,
		accessLog: accessLog,
	}
}

// newStorage returns the Redis store, or nil for Fiber's in-memory default.
func newStorage(cfg *config.Config) fiber.Storage {
	if cfg.RedisURL == "" {
		return nil
	}
	return redis.New(redis.Config{
		URL:   cfg.RedisURL,
		Reset: false,
	})
}

// Start starts the server with the configured address and TLS settings.
func (s *Server) Start() error {
	listenConfig := fiber.ListenConfig{DisableStartupMessage: true}
	if s.Cfg.TLSEnabled {
		listenConfig.CertFile = s.Cfg.TLSCertFile
		listenConfig.CertKeyFile = s.Cfg.TLSKeyFile
		listenConfig.TLSConfigFunc = func(tc *tls.Config) { tc.MinVersion = tls.VersionTLS12 }
		s.Log.WithField("addr", s.Cfg.ServerAddr).Info("Starting server with TLS")
	} else {
		s.Log.WithField("addr", s.Cfg.ServerAddr).Info("Starting server")
	}
	return s.App.Listen(s.Cfg.ServerAddr, listenConfig)
}

// Shutdown gracefully shuts down the server and releases its storage.
func (s *Server) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.accessLog.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// deriveEncryptionKey derives a 32-byte encryption key from the session secret.
func deriveEncryptionKey(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(hash[:])
}
