package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/questgate/authbroker/internal/config"
	"github.com/questgate/authbroker/internal/keys"
)

// Server owns both listeners (TLS for players, plaintext for game servers)
// and the driver goroutines: two accept loops and one key-rotation ticker.
type Server struct {
	cfg      config.Config
	handler  *Handler
	registry *Registry
	keyStore *keys.Store

	tlsConfig atomic.Pointer[tls.Config]

	clientListener net.Listener
	serverListener net.Listener

	wg sync.WaitGroup
}

// NewServer builds a Server ready to Run. Call ReloadCertificate at least
// once, directly or via Run, before accepting TLS connections.
func NewServer(cfg config.Config, handler *Handler, registry *Registry, keyStore *keys.Store) *Server {
	return &Server{cfg: cfg, handler: handler, registry: registry, keyStore: keyStore}
}

// ReloadCertificate loads a fresh certificate pair from disk and swaps it
// into the live TLS config. Already-established connections are
// unaffected; only subsequent handshakes pick up the new pair.
func (s *Server) ReloadCertificate() error {
	cert, err := tls.LoadX509KeyPair(s.cfg.ServerCert, s.cfg.ServerKey)
	if err != nil {
		return fmt.Errorf("broker: loading certificate pair: %w", err)
	}
	s.tlsConfig.Store(&tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	return nil
}

// baseTLSConfig returns a *tls.Config whose GetConfigForClient always
// resolves to the most recently loaded certificate, so tls.NewListener
// picks up a hot-reloaded certificate without recreating the listener.
func (s *Server) baseTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
			return s.tlsConfig.Load(), nil
		},
	}
}

// Run starts both listeners and the key rotation ticker, blocking until ctx
// is cancelled or an accept loop fails, in which case that error is returned.
func (s *Server) Run(ctx context.Context) error {
	if s.tlsConfig.Load() == nil {
		if err := s.ReloadCertificate(); err != nil {
			return err
		}
	}

	rawClientListener, err := net.Listen("tcp", s.cfg.ClientsAddr())
	if err != nil {
		return fmt.Errorf("broker: binding client listener: %w", err)
	}
	s.clientListener = tls.NewListener(rawClientListener, s.baseTLSConfig())

	s.serverListener, err = net.Listen("tcp", s.cfg.ServersAddr())
	if err != nil {
		rawClientListener.Close()
		return fmt.Errorf("broker: binding game server listener: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx, s.clientListener, KindClient) })
	g.Go(func() error { return s.acceptLoop(gctx, s.serverListener, KindGameServer) })
	g.Go(func() error { s.rotationLoop(gctx); return nil })

	<-gctx.Done()
	s.clientListener.Close()
	s.serverListener.Close()
	if err := g.Wait(); err != nil {
		return err
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, kind ConnKind) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("broker: accepting %s connections: %w", kind, err)
		}

		id := s.registry.Acquire()
		c := NewConnection(id, kind, conn)
		if kind == KindClient {
			s.registry.AddClient(c)
		} else {
			s.registry.AddServer(c)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if kind == KindClient {
					s.registry.RemoveClient(id)
				} else {
					s.registry.RemoveServer(id)
				}
			}()

			handle := s.handler.HandleClientPacket
			if kind == KindGameServer {
				handle = s.handler.HandleGameServerPacket
			}
			RunConnection(ctx, c, handle)
		}()
	}
}

func (s *Server) rotationLoop(ctx context.Context) {
	ticker := newRotationTicker()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if s.keyStore.ShouldRotate() {
				if err := s.keyStore.Rotate(); err != nil {
					slog.Error("key rotation failed", "error", err)
					continue
				}
				slog.Info("signing key rotated")
			}
		}
	}
}
