package net

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/config"
	"github.com/aogo/server/internal/net/packet"
)

// Dispatcher routes one decoded frame to its command handler.
// Implemented by packet.Registry.
type Dispatcher interface {
	Dispatch(sess any, state packet.SessionState, data []byte) error
}

// DiceRoll caches character-creation attributes rolled on this connection,
// consumed by the next LOGIN_NEW_CHAR.
type DiceRoll struct {
	Strength     int
	Agility      int
	Intelligence int
	Charisma     int
	Constitution int
}

// Session represents a single client connection. The reader, dispatcher and
// writer each run in their own goroutine; commands from one connection are
// processed strictly in receive order by the dispatch goroutine.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // readLoop → dispatchLoop
	OutQueue chan []byte // Send → writeLoop

	IP        string
	Username  string
	UserID    int32
	CharIndex int32

	// Per-connection command context, touched only by this session's
	// dispatch goroutine and handlers running on it.
	PendingDice    *DiceRoll
	ActiveMerchant int32 // char index of the merchant whose trade window is open
	ActiveBanker   int32
	LoginAttempts  int
	LoginWindow    int64 // unix minute of the attempt counter

	cfg    config.NetworkConfig
	onDead func()

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktCount   int
	pktResetAt int64

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, cfg config.NetworkConfig, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		conn:     conn,
		InQueue:  make(chan []byte, cfg.InQueueSize),
		OutQueue: make(chan []byte, cfg.OutQueueSize),
		IP:       conn.RemoteAddr().String(),
		cfg:      cfg,
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader, dispatcher and writer goroutines, plus the
// login-deadline watchdog.
func (s *Session) Start(d Dispatcher) {
	go s.readLoop()
	go s.dispatchLoop(d)
	go s.writeLoop()
	go s.loginWatchdog()
}

// Send enqueues a packet on the bounded outbound buffer. Safe to call from
// any goroutine. A full buffer means the consumer cannot keep up; the
// connection is closed rather than allowed to stall the tick.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("outbound buffer full, disconnecting slow consumer")
		s.Close()
	}
}

// Close shuts down the session. Idempotent. World cleanup happens through
// the server's dead-session channel, not here.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onDead != nil {
			s.onDead()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// loginWatchdog closes connections that have not authenticated within the
// login timeout.
func (s *Session) loginWatchdog() {
	if s.cfg.LoginTimeout <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.LoginTimeout)
	defer t.Stop()
	select {
	case <-t.C:
		if s.State() == packet.StateConnected {
			s.log.Info("login handshake timeout")
			s.Close()
		}
	case <-s.closeCh:
	}
}

// readLoop reads frames from the TCP connection and pushes them onto
// InQueue for the dispatch goroutine. Blocking on a full InQueue is safe:
// it only stalls this client.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		if s.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		payload, err := ReadFrame(s.conn, s.cfg.MaxFrame)
		if err != nil {
			if !s.closed.Load() {
				var nerr net.Error
				if errors.As(err, &nerr) && nerr.Timeout() {
					s.log.Info("idle connection closed")
				} else {
					s.log.Debug("read error", zap.Error(err))
				}
			}
			return
		}

		if s.cfg.PacketsPerSecond > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.cfg.PacketsPerSecond {
				s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
				return
			}
		}

		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// dispatchLoop drains InQueue and runs one handler at a time, preserving
// per-connection command order. A protocol error closes the connection.
func (s *Session) dispatchLoop(d Dispatcher) {
	defer s.Close()

	for {
		select {
		case data := <-s.InQueue:
			if err := d.Dispatch(s, s.State(), data); err != nil {
				s.log.Warn("protocol error", zap.Error(err))
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop drains OutQueue to the TCP connection as framed packets.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if s.cfg.WriteTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := WriteFrame(s.conn, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
