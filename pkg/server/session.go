package server

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Session represents one logged-in client connection. Outbound traffic goes
// through a buffered queue drained by a dedicated writer goroutine, so lobby
// broadcasts never block on a slow socket. A full queue kills the session:
// a client that can't keep up with lobby chatter is gone anyway.
type Session struct {
	ID       uint64
	Username string

	conn    net.Conn
	out     chan []byte
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	metrics *Metrics
	log     zerolog.Logger
}

func newSession(id uint64, username string, conn net.Conn, queueDepth int, limiter *rate.Limiter, metrics *Metrics, log zerolog.Logger) *Session {
	return &Session{
		ID:       id,
		Username: username,
		conn:     conn,
		out:      make(chan []byte, queueDepth),
		closed:   make(chan struct{}),
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
	}
}

// Deliver implements lobby.Recipient. It never blocks; a message that does
// not fit closes the session and reports false.
func (s *Session) Deliver(msg []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.out <- msg:
		return true
	default:
		s.log.Warn().Str("user", s.Username).Msg("send queue overflow, dropping session")
		s.metrics.RecordQueueOverflow()
		s.Close()
		return false
	}
}

// Allow reports whether the client is within its command rate budget.
func (s *Session) Allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// Close shuts the connection down. Safe to call from any goroutine, any
// number of times; the writer and reader loops both unwind from it.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// writeLoop drains the outbound queue onto the socket. Runs as a goroutine
// for the life of the session.
func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.out:
			if _, err := s.conn.Write(msg); err != nil {
				s.log.Debug().Err(err).Str("user", s.Username).Msg("session write failed")
				s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// SessionManager tracks all live sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
	metrics  *Metrics
}

// NewSessionManager creates a new session manager
func NewSessionManager(metrics *Metrics) *SessionManager {
	return &SessionManager{
		sessions: make(map[uint64]*Session),
		metrics:  metrics,
	}
}

// CreateSession registers a session for an authenticated user and starts
// its writer goroutine.
func (sm *SessionManager) CreateSession(username string, conn net.Conn, queueDepth int, limiter *rate.Limiter, log zerolog.Logger) *Session {
	id := atomic.AddUint64(&sm.nextID, 1)
	sess := newSession(id, username, conn, queueDepth, limiter, sm.metrics, log)

	sm.mu.Lock()
	sm.sessions[id] = sess
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionCreated()
	}

	go sess.writeLoop()
	return sess
}

// RemoveSession drops a session from the registry and closes it.
func (sm *SessionManager) RemoveSession(id uint64) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, id)
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionDisconnected()
	}

	sess.Close()
}

// CountSessions returns the number of live sessions.
func (sm *SessionManager) CountSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CloseAll closes every session, used during shutdown.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, sess := range sm.sessions {
		sess.Close()
	}
	sm.sessions = make(map[uint64]*Session)
}
