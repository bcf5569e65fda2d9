package runnable

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"screenshot-batch/internal/env"
	"screenshot-batch/internal/myhttp"

	"github.com/go-logr/logr"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

// Server exposes /healthz, /metrics and the latest batch report while the
// process is running.
type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	debug                  bool

	log    logr.Logger
	meter  metric.Meter
	report http.Handler
	ready  func() bool
}

// NewServer reads its listener settings from the environment. ready reports
// whether the current batch state is healthy; nil means always.
func NewServer(address string, log logr.Logger, meter metric.Meter, report http.Handler, ready func() bool) *Server {
	return &Server{
		address:                address,
		terminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
		debug:                  env.OrDefault("DEBUG", false),
		log:                    log,
		meter:                  meter,
		report:                 report,
		ready:                  ready,
	}
}

func (s *Server) handler() (http.Handler, error) {
	mux, err := myhttp.NewRouter(s.log, s.meter)
	if err != nil {
		return nil, xerrors.Errorf("failed to create router: %w", err)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if s.ready != nil && !s.ready() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(http.StatusText(status)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if s.report != nil {
		mux.HandleWithMiddleware("GET /report", s.report)
	}

	if s.debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}
	return mux, nil
}

// Start serves until ctx is done, then drains connections within the
// termination grace period.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.handler()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}
	return s.serve(ctx, listener, handler)
}

func (s *Server) serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(netutil.LimitListener(listener, s.maxConnections))
	}()
	s.log.Info("serving metrics", "address", listener.Addr().String())

	select {
	case err := <-served:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	time.Sleep(s.lameduck)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}
	<-served
	return nil
}
