package net

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/config"
)

// ErrBind marks a listener bind failure so main can exit with the
// dedicated code.
var ErrBind = errors.New("bind failed")

// Server accepts TCP connections and creates Sessions.
// New and dead sessions are communicated via channels.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	cfg      config.NetworkConfig
	log      *zap.Logger
	closeCh  chan struct{}
}

// NewServer binds the listener, optionally wrapping it in TLS.
// A bind failure is distinguishable so main can exit with the bind code.
func NewServer(srvCfg config.ServerConfig, netCfg config.NetworkConfig, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", srvCfg.BindAddress())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, srvCfg.BindAddress(), err)
	}
	if srvCfg.TLS {
		cert, err := tls.LoadX509KeyPair(srvCfg.TLSCert, srvCfg.TLSKey)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("load tls keypair: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	s := &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		cfg:      netCfg,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections, creates
// sessions, and pushes them onto the newConns channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.cfg, s.log)
		sess.onDead = func() { s.NotifyDead(id) }

		s.log.Info("client connected",
			zap.Uint64("session", id),
			zap.String("ip", sess.IP),
		)

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, rejecting client")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID for world cleanup.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections and gives live sessions a brief
// grace period to drain their outbound queues.
func (s *Server) Shutdown(grace time.Duration) {
	close(s.closeCh)
	s.listener.Close()
	time.Sleep(grace)
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
