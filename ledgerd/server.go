package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/bidledger/host"
)

const shutdownTimeout = 5 * time.Second

// Server answers JSON requests, one per connection.
type Server struct {
	cfg        Config
	host       *host.Host
	keyManager *KeyManager
	// attester returns the NSM handle; it fails outside an enclave.
	attester func() (EnclaveAttester, error)
	logger   *zap.Logger
	now      func() time.Time
}

func NewServer(cfg Config, h *host.Host, km *KeyManager, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		host:       h,
		keyManager: km,
		attester:   getEnclaveAttester,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Server) listen() (net.Listener, error) {
	if s.cfg.VsockPort != 0 {
		listener, err := vsock.Listen(s.cfg.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		s.logger.Info("listening on vsock", zap.Uint32("port", s.cfg.VsockPort))
		return listener, nil
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp listener: %w", err)
	}
	s.logger.Info("listening on tcp", zap.String("addr", listener.Addr().String()))
	return listener, nil
}

// Run serves until ctx is cancelled, together with the metrics endpoint
// when one is configured.
func (s *Server) Run(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(ctx, listener)
	})

	if s.cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("metrics listening", zap.String("addr", s.cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Serve accepts connections until ctx is cancelled. At most MaxWorkers
// connections are handled at once; extra connections are closed
// immediately.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.logger.Error("failed to close listener", zap.Error(err))
		}
	})
	defer stop()

	semaphore := make(chan struct{}, s.cfg.MaxWorkers)
	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("worker pool initialized", zap.Int("max_workers", s.cfg.MaxWorkers))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("failed to accept connection", zap.Error(err))
			continue
		}

		select {
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(c net.Conn) {
				defer wg.Done()
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			rejectedConnections.Inc()
			s.logger.Info("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.logger.Error("failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close connection", zap.Error(err))
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		s.logger.Warn("failed to read request", zap.Error(err))
		return
	}

	response := s.dispatch(ctx, raw)

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
