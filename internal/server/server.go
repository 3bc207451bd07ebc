// Package server exposes the search pipeline over HTTP and serves the web UI.
package server

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/time/rate"

	"github.com/aryannaik/pitch-finder/internal/metrics"
)

//go:embed static
var staticFiles embed.FS

type Options struct {
	Port string
	// RatePerSecond limits API requests per client IP. Zero disables the limit.
	RatePerSecond float64
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

func New(opts Options, backend Backend, health HealthCheck) *http.Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: shortuuid.New,
	}))
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger, opts.Metrics))

	handlers := NewHandlers(backend, health, logger)

	api := e.Group("/api")
	if opts.RatePerSecond > 0 {
		api.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(opts.RatePerSecond),
				Burst:     int(opts.RatePerSecond*2) + 1,
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
		}))
	}
	api.GET("/search", handlers.HandleSearch)
	api.POST("/search", handlers.HandleSearchJSON)
	api.GET("/events/:id", handlers.HandleEvent)
	api.GET("/similar", handlers.HandleSimilar)
	api.POST("/parse", handlers.HandleParse)
	api.GET("/status", handlers.HandleStatus)
	api.POST("/prune", handlers.HandlePrune)
	api.GET("/feed", handlers.HandleFeed)

	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	static, _ := fs.Sub(staticFiles, "static")
	e.GET("/*", echo.WrapHandler(http.FileServer(http.FS(static))))

	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server listening", "url", "http://localhost:"+opts.Port)
	return srv
}

func requestLogger(logger *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRoutePath: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if m != nil {
				m.HTTPRequests.WithLabelValues(v.RoutePath, strconv.Itoa(v.Status)).Inc()
			}
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	})
}
