package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/runtime"
	"github.com/rzbill/killfeed/internal/server/http/controllers"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
	drain  time.Duration
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = rt.Logger()
	}
	logger = logger.WithComponent("http")
	cfg := rt.Config()

	var observer delivery.Observer = delivery.NoopObserver{}
	m := rt.Metrics()
	if m != nil {
		observer = m
	}

	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt, rt.Poller(observer), observer, logger).RegisterAllRoutes(mux)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	var h http.Handler = mux
	if rl := cfg.HTTP.RateLimit; rl.RPS > 0 {
		lim := newClientLimiter(rl.RPS, rl.Burst)
		h = rateLimit(lim, m, h)
	}
	h = requestID(cors(h))

	drain := cfg.HTTP.ShutdownTimeout
	if drain <= 0 {
		drain = 15 * time.Second
	}
	return &Server{
		rt:     rt,
		logger: logger,
		drain:  drain,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logpkg.ToStdLogger(logger, logpkg.WarnLevel),
		},
	}
}

// ListenAndServe serves until ctx is done, then drains in-flight polls for
// up to the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		if err := s.srv.Shutdown(cctx); err != nil {
			s.logger.Warn("http shutdown", logpkg.Err(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound address once listening.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
