package mailserver

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/plumemail/plume/consts"
	"github.com/plumemail/plume/pkg/metrics"
	serverPkg "github.com/plumemail/plume/server"
	"github.com/plumemail/plume/server/idgen"
	"github.com/plumemail/plume/server/wire"
	"github.com/plumemail/plume/storage"
)

// MailSession is the per-connection protocol state machine. The session
// is anonymous until AUTH_REGISTER or AUTH_LOGIN binds it to an account;
// AUTH_LOGOUT returns it to the anonymous state. Exactly one request is
// read, handled and answered at a time, so responses always arrive in
// request order and a reply is only written after its side effects are
// persisted.
type MailSession struct {
	serverPkg.Session
	server *Server
	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer

	errorsCount int // protocol errors observed during the session
}

func newSession(s *Server, conn net.Conn) *MailSession {
	session := &MailSession{
		server: s,
		conn:   conn,
		reader: wire.NewReader(conn, s.maxLineLength),
		writer: wire.NewWriter(conn),
	}
	session.Id = idgen.New()
	session.RemoteIP = remoteIP(conn)
	session.Protocol = "MAIL"
	session.ServerName = s.name
	session.HostName = s.hostname
	session.Stats = s
	return session
}

func (s *MailSession) handleConnection() {
	defer s.close()

	s.Log("connected")

	for {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			// Transport failures and malformed framing are fatal to the
			// connection and answered with silent teardown.
			switch {
			case errors.Is(err, io.EOF):
				s.Log("client dropped connection")
			case errors.Is(err, wire.ErrFrameTooLarge):
				s.WarnLog("frame too large, closing connection")
			default:
				s.Log("read error: %v", err)
			}
			return
		}

		start := time.Now()
		resp, quit := s.dispatch(&msg)
		if quit {
			return
		}

		status := "ok"
		if resp.Header == wire.TagError {
			status = "error"
		}
		metrics.RequestsTotal.WithLabelValues(string(msg.Header), status).Inc()
		metrics.RequestDuration.WithLabelValues(string(msg.Header)).Observe(time.Since(start).Seconds())

		if err := s.writer.WriteMessage(resp); err != nil {
			s.Log("write error: %v", err)
			return
		}

		if s.errorsCount > s.server.maxErrors {
			s.WarnLog("too many errors, closing connection")
			return
		}
	}
}

// dispatch routes one frame according to the session's authentication
// state. The returned bool requests connection teardown (BYE is
// fire-and-forget: no response is written).
func (s *MailSession) dispatch(msg *wire.Message) (wire.Message, bool) {
	switch msg.Header {
	case wire.TagBye:
		s.Log("client said goodbye")
		return wire.Message{}, true

	case wire.TagAuthRegister:
		if s.authenticated() {
			return s.clientError(consts.ErrAlreadyAuthenticated), false
		}
		return s.handleRegister(msg), false

	case wire.TagAuthLogin:
		if s.authenticated() {
			return s.clientError(consts.ErrAlreadyAuthenticated), false
		}
		return s.handleLogin(msg), false

	case wire.TagAuthLogout:
		if !s.authenticated() {
			return s.clientError(consts.ErrNotAuthenticated), false
		}
		return s.handleLogout(), false

	case wire.TagEmailSending:
		if !s.authenticated() {
			return s.clientError(consts.ErrNotAuthenticated), false
		}
		return s.handleSend(msg), false

	case wire.TagInboxRequest:
		if !s.authenticated() {
			return s.clientError(consts.ErrNotAuthenticated), false
		}
		return s.handleInboxListing(), false

	case wire.TagInboxChoice:
		if !s.authenticated() {
			return s.clientError(consts.ErrNotAuthenticated), false
		}
		return s.handleInboxChoice(msg), false

	case wire.TagStatsRequest:
		if !s.authenticated() {
			return s.clientError(consts.ErrNotAuthenticated), false
		}
		return s.handleStats(), false

	default:
		s.Log("unknown request: %s", msg.Header)
		return s.clientError(consts.ErrUnknownRequest), false
	}
}

func (s *MailSession) authenticated() bool {
	return s.Username != ""
}

// clientError counts a protocol error and turns it into a structured
// ERROR reply. The connection stays open; the counter only matters for
// clients that do nothing but fail.
func (s *MailSession) clientError(err error) wire.Message {
	s.errorsCount++
	return wire.Error(err.Error())
}

func (s *MailSession) handleRegister(msg *wire.Message) wire.Message {
	p, err := msg.AuthPayload()
	if err != nil {
		return s.clientError(err)
	}

	name, err := s.server.store.CreateAccount(p.Username, p.Password)
	if err != nil {
		metrics.AuthenticationAttempts.WithLabelValues("register", "failure").Inc()
		s.Log("registration failed: %v", err)
		return s.clientError(err)
	}

	s.bind(name)
	metrics.AuthenticationAttempts.WithLabelValues("register", "success").Inc()
	s.Log("registered")
	return wire.OK(nil)
}

func (s *MailSession) handleLogin(msg *wire.Message) wire.Message {
	p, err := msg.AuthPayload()
	if err != nil {
		return s.clientError(err)
	}

	name, err := s.server.store.Authenticate(p.Username, p.Password)
	if err != nil {
		metrics.AuthenticationAttempts.WithLabelValues("login", "failure").Inc()
		s.Log("authentication failed")
		// Slow down brute forcing; the reply itself never reveals
		// whether the account exists.
		if s.server.authFailureDelay > 0 {
			time.Sleep(s.server.authFailureDelay)
		}
		return s.clientError(err)
	}

	s.bind(name)
	metrics.AuthenticationAttempts.WithLabelValues("login", "success").Inc()
	s.Log("authenticated")
	return wire.OK(nil)
}

func (s *MailSession) handleLogout() wire.Message {
	s.unbind()
	s.Log("logged out")
	return wire.OK(nil)
}

func (s *MailSession) handleSend(msg *wire.Message) wire.Message {
	p, err := msg.EmailPayload()
	if err != nil {
		return s.clientError(err)
	}

	sender := p.Sender
	if sender == "" {
		sender = s.Username + "@" + s.server.store.Domain()
	}

	env := storage.Envelope{
		Sender:    sender,
		Recipient: p.Destination,
		Subject:   p.Subject,
		Date:      parseClientDate(p.Date),
		Content:   p.Content,
	}

	if err := s.server.store.Deliver(env); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(deliveryOutcome(err)).Inc()
		s.Log("delivery failed for %s: %v", p.Destination, err)
		return s.clientError(err)
	}

	metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
	s.Log("delivered message to %s", p.Destination)
	return wire.OK(nil)
}

func (s *MailSession) handleInboxListing() wire.Message {
	summaries, err := s.server.store.ListMessages(s.Username)
	if err != nil {
		s.Log("inbox listing error: %v", err)
		return s.clientError(err)
	}
	s.Log("listed %d messages", len(summaries))
	return wire.OK(buildInboxPayload(summaries))
}

func (s *MailSession) handleInboxChoice(msg *wire.Message) wire.Message {
	choice, err := msg.ChoicePayload()
	if err != nil {
		return s.clientError(err)
	}

	rec, err := s.server.store.ReadMessage(s.Username, choice)
	if err != nil {
		s.Log("message read error: %v", err)
		return s.clientError(err)
	}
	s.Log("read message %d", choice)
	return wire.OK(buildEmailPayload(rec))
}

func (s *MailSession) handleStats() wire.Message {
	count, size, err := s.server.store.Stats(s.Username)
	if err != nil {
		s.Log("stats error: %v", err)
		return s.clientError(err)
	}
	s.Log("stats: %d messages, %d bytes", count, size)
	return wire.OK(wire.StatsPayload{Count: count, Size: size})
}

// bind attaches the session to an account.
func (s *MailSession) bind(username string) {
	s.Username = username
	authCount := s.server.authenticatedConnections.Add(1)
	metrics.AuthenticatedConnectionsCurrent.Inc()
	s.DebugLog("bound (connections: total=%d, authenticated=%d)", s.server.totalConnections.Load(), authCount)
}

// unbind returns the session to the anonymous state.
func (s *MailSession) unbind() {
	if s.Username == "" {
		return
	}
	s.Username = ""
	s.server.authenticatedConnections.Add(-1)
	metrics.AuthenticatedConnectionsCurrent.Dec()
}

func (s *MailSession) close() {
	s.conn.Close()
	s.server.removeSession(s)

	s.unbind()
	totalCount := s.server.totalConnections.Add(-1)
	metrics.ConnectionsCurrent.Dec()

	s.Log("closed (connections: total=%d, authenticated=%d)", totalCount, s.server.authenticatedConnections.Load())
}

// deliveryOutcome maps a delivery error onto a metrics label.
func deliveryOutcome(err error) string {
	switch {
	case errors.Is(err, consts.ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, consts.ErrUnsupportedRecipient):
		return "unsupported_recipient"
	case errors.Is(err, consts.ErrRecipientNotFound):
		return "lost"
	default:
		return "storage_failure"
	}
}
