package stub

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/dimcz/livepoll/lib/validator"
)

const DefaultKeepAlive = 15 * time.Second

type Options struct {
	// Rate is the per-client request rate; zero disables limiting.
	Rate      float64
	KeepAlive time.Duration
	AccessLog bool
	Now       func() time.Time
}

type Server struct {
	Echo    *echo.Echo
	Store   *Store
	Hub     *Hub
	Metrics *Metrics
}

func New(opts Options) *Server {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}

	s := &Server{
		Echo:    echo.New(),
		Store:   NewStore(opts.Now),
		Hub:     NewHub(),
		Metrics: NewMetrics(),
	}

	srv := NewWebService(s.Store, s.Hub, s.Metrics, opts.KeepAlive)

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewValidator()

	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	if opts.Rate > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.Rate))))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.GET("/", srv.List)
	api.POST("/poll/add", srv.Post)
	api.GET("/poll/:id", srv.Get)
	api.POST("/poll/:id/vote", srv.Vote)
	api.GET("/poll/:id/results-stream", srv.Stream)

	return s
}
