package observability

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/logger"
	metricspkg "github.com/tphakala/voicecap/internal/observability/metrics"
)

// StatusProvider reports a JSON-serialisable snapshot, typically pipeline stats
type StatusProvider interface {
	Status() any
}

// Endpoint serves /metrics, /health and /status
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	status        StatusProvider
}

// NewEndpoint creates the telemetry endpoint. It returns an error if
// telemetry is not enabled in settings. status may be nil.
func NewEndpoint(settings *conf.Settings, metrics *Metrics, status StatusProvider) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.New("telemetry not enabled in settings")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}

	e := &Endpoint{
		echo:          echo.New(),
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		status:        status,
	}
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.registerRoutes()
	return e, nil
}

func (e *Endpoint) registerRoutes() {
	h := promhttp.HandlerFor(e.metrics.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	e.echo.GET("/metrics", echo.WrapHandler(h))
	e.echo.GET("/health", e.handleHealth)
	e.echo.GET("/status", e.handleStatus)
}

func (e *Endpoint) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Endpoint) handleStatus(c echo.Context) error {
	if e.status == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no status provider"})
	}
	return c.JSON(http.StatusOK, e.status.Status())
}

// Handler returns the endpoint's router
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (e *Endpoint) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.echo.Start(e.listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("telemetry HTTP server error", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
