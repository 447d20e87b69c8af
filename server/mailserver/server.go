// Package mailserver implements the mail service's TCP protocol server:
// the listener, the per-connection session loop and the request
// dispatcher keyed by authentication state.
package mailserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plumemail/plume/logger"
	"github.com/plumemail/plume/pkg/metrics"
	serverPkg "github.com/plumemail/plume/server"
	"github.com/plumemail/plume/storage"
)

const DefaultMaxErrorsAllowed = 20 // protocol errors tolerated before the connection is terminated

type Server struct {
	addr     string
	name     string
	hostname string
	store    *storage.Store
	appCtx   context.Context
	cancel   context.CancelFunc

	authFailureDelay time.Duration
	maxErrors        int
	maxLineLength    int

	listenerMutex sync.Mutex
	listener      net.Listener

	// Connection counters
	totalConnections         atomic.Int64
	authenticatedConnections atomic.Int64

	// Active session tracking for shutdown
	activeSessionsMutex sync.RWMutex
	activeSessions      map[*MailSession]struct{}
	sessionsWg          sync.WaitGroup
}

type ServerOptions struct {
	AuthFailureDelay time.Duration // delay applied after a failed authentication (0 = none)
	MaxErrors        int           // protocol errors tolerated before disconnect (0 = default)
	MaxLineLength    int           // maximum frame size in bytes (0 = codec default)
}

func New(appCtx context.Context, name, hostname, addr string, store *storage.Store, options ServerOptions) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("mailserver requires a storage backend")
	}

	serverCtx, serverCancel := context.WithCancel(appCtx)

	maxErrors := options.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrorsAllowed
	}

	return &Server{
		addr:             addr,
		name:             name,
		hostname:         hostname,
		store:            store,
		appCtx:           serverCtx,
		cancel:           serverCancel,
		authFailureDelay: options.AuthFailureDelay,
		maxErrors:        maxErrors,
		maxLineLength:    options.MaxLineLength,
		activeSessions:   make(map[*MailSession]struct{}),
	}, nil
}

// Start runs the accept loop until the application context is cancelled.
// Fatal listener errors are reported on errChan.
func (s *Server) Start(errChan chan error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.cancel()
		errChan <- fmt.Errorf("failed to create listener: %w", err)
		return
	}
	defer listener.Close()

	s.listenerMutex.Lock()
	s.listener = listener
	s.listenerMutex.Unlock()

	logger.Info("mail server listening", "name", s.name, "addr", s.addr, "domain", s.store.Domain())

	// Unblock Accept on shutdown
	go func() {
		<-s.appCtx.Done()
		logger.Debug("mail server stopping", "name", s.name)
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.appCtx.Done():
				logger.Info("mail server stopped", "name", s.name)
				return
			default:
				errChan <- err
				return
			}
		}

		totalCount := s.totalConnections.Add(1)
		authCount := s.authenticatedConnections.Load()

		metrics.ConnectionsTotal.Inc()
		metrics.ConnectionsCurrent.Inc()

		session := newSession(s, conn)
		logger.Debug("new connection", "name", s.name, "remote", session.RemoteIP, "total_connections", totalCount, "authenticated_connections", authCount)

		s.addSession(session)
		s.sessionsWg.Add(1)

		go func() {
			defer s.sessionsWg.Done()
			session.handleConnection()
		}()
	}
}

// Close shuts the server down: the listener stops accepting, every open
// connection is closed, and the remaining session goroutines are given a
// short grace period to unwind.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}

	s.activeSessionsMutex.RLock()
	sessions := make([]*MailSession, 0, len(s.activeSessions))
	for session := range s.activeSessions {
		sessions = append(sessions, session)
	}
	s.activeSessionsMutex.RUnlock()

	for _, session := range sessions {
		session.conn.Close()
	}

	s.waitForSessionsDrain(5 * time.Second)
}

func (s *Server) waitForSessionsDrain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.sessionsWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debug("all sessions drained", "name", s.name)
	case <-time.After(timeout):
		logger.Debug("session drain timeout", "name", s.name, "timeout", timeout)
	}
}

func (s *Server) addSession(session *MailSession) {
	s.activeSessionsMutex.Lock()
	defer s.activeSessionsMutex.Unlock()
	s.activeSessions[session] = struct{}{}
}

func (s *Server) removeSession(session *MailSession) {
	s.activeSessionsMutex.Lock()
	defer s.activeSessionsMutex.Unlock()
	delete(s.activeSessions, session)
}

// GetTotalConnections returns the current total connection count
func (s *Server) GetTotalConnections() int64 {
	return s.totalConnections.Load()
}

// GetAuthenticatedConnections returns the current authenticated connection count
func (s *Server) GetAuthenticatedConnections() int64 {
	return s.authenticatedConnections.Load()
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAddr returns the address the listener is actually bound to, or
// nil before Start has bound it. With a ":0" configured address this is
// the only way to learn the assigned port.
func (s *Server) ListenAddr() net.Addr {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

var _ serverPkg.ConnectionStatsProvider = (*Server)(nil)
