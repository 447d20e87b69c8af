package mailserver

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumemail/plume/consts"
	"github.com/plumemail/plume/server/wire"
	"github.com/plumemail/plume/storage"
)

const testDomain = "plume.example"

func newTestServer(t *testing.T, options ServerOptions) *Server {
	t.Helper()
	store, err := storage.New(t.TempDir(), testDomain)
	require.NoError(t, err)
	srv, err := New(context.Background(), "mail-test", "localhost", "127.0.0.1:0", store, options)
	require.NoError(t, err)
	return srv
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	return &testClient{t: t, conn: conn, reader: wire.NewReader(conn, 0), writer: wire.NewWriter(conn)}
}

// startSession attaches a session to one end of an in-memory pipe and
// returns a client speaking to it over the other end.
func startSession(t *testing.T, srv *Server) *testClient {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	session := newSession(srv, serverConn)
	srv.addSession(session)
	srv.totalConnections.Add(1)
	srv.sessionsWg.Add(1)
	go func() {
		defer srv.sessionsWg.Done()
		session.handleConnection()
	}()
	t.Cleanup(func() { clientConn.Close() })
	return newTestClient(t, clientConn)
}

func (c *testClient) send(tag wire.Tag, payload any) {
	c.t.Helper()
	msg := wire.Message{Header: tag}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		msg.Payload = raw
	}
	require.NoError(c.t, c.conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, c.writer.WriteMessage(msg))
}

func (c *testClient) recv() wire.Message {
	c.t.Helper()
	msg, err := c.reader.ReadMessage()
	require.NoError(c.t, err)
	return msg
}

func (c *testClient) roundTrip(tag wire.Tag, payload any) wire.Message {
	c.t.Helper()
	c.send(tag, payload)
	return c.recv()
}

func (c *testClient) expectOK(tag wire.Tag, payload any) wire.Message {
	c.t.Helper()
	resp := c.roundTrip(tag, payload)
	require.Equal(c.t, wire.TagOK, resp.Header, "expected OK for %s, got %s %s", tag, resp.Header, resp.Payload)
	return resp
}

func (c *testClient) expectError(tag wire.Tag, payload any, want error) {
	c.t.Helper()
	resp := c.roundTrip(tag, payload)
	require.Equal(c.t, wire.TagError, resp.Header, "expected ERROR for %s", tag)
	var p wire.ErrorPayload
	require.NoError(c.t, json.Unmarshal(resp.Payload, &p))
	assert.Equal(c.t, want.Error(), p.ErrorMessage)
}

func TestAnonymousSessionGating(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	for _, tag := range []wire.Tag{
		wire.TagAuthLogout,
		wire.TagEmailSending,
		wire.TagInboxRequest,
		wire.TagInboxChoice,
		wire.TagStatsRequest,
	} {
		c.expectError(tag, nil, consts.ErrNotAuthenticated)
	}

	// rejected requests must not poison the connection
	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	creds := wire.AuthPayload{Username: "alice", Password: "Str0ngPass"}
	c.expectOK(wire.TagAuthRegister, creds)

	// an authenticated session cannot authenticate again
	c.expectError(wire.TagAuthRegister, creds, consts.ErrAlreadyAuthenticated)
	c.expectError(wire.TagAuthLogin, creds, consts.ErrAlreadyAuthenticated)

	c.expectOK(wire.TagAuthLogout, nil)
	c.expectError(wire.TagAuthLogout, nil, consts.ErrNotAuthenticated)

	c.expectError(wire.TagAuthLogin, wire.AuthPayload{Username: "alice", Password: "WrongPass1"}, consts.ErrInvalidCredentials)
	c.expectOK(wire.TagAuthLogin, wire.AuthPayload{Username: "ALICE", Password: "Str0ngPass"})
	c.expectOK(wire.TagStatsRequest, nil)
}

func TestRegisterRejections(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.expectError(wire.TagAuthRegister, wire.AuthPayload{Username: "al/ice", Password: "Str0ngPass"}, consts.ErrInvalidUsername)
	c.expectError(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "weak"}, consts.ErrWeakPassword)

	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})
	c.expectOK(wire.TagAuthLogout, nil)

	c.expectError(wire.TagAuthRegister, wire.AuthPayload{Username: "Alice", Password: "An0therPass"}, consts.ErrUsernameTaken)
}

func TestMalformedPayloads(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.expectError(wire.TagAuthRegister, nil, consts.ErrMalformedPayload)
	c.expectError(wire.TagAuthLogin, map[string]any{"username": "alice"}, consts.ErrMalformedPayload)

	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})

	c.expectError(wire.TagEmailSending, map[string]any{"subject": "no destination"}, consts.ErrMalformedPayload)
	c.expectError(wire.TagInboxChoice, map[string]any{}, consts.ErrMalformedPayload)
	c.expectError(wire.TagInboxChoice, map[string]any{"choice": "first"}, consts.ErrMalformedPayload)
}

func TestUnknownRequest(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.expectError(wire.Tag("MAKE_COFFEE"), nil, consts.ErrUnknownRequest)

	// still anonymous, still connected
	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})
}

func TestSendRouting(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})

	c.expectError(wire.TagEmailSending, wire.EmailPayload{Destination: "not-an-address", Subject: "x", Content: "y"}, consts.ErrInvalidRecipient)
	c.expectError(wire.TagEmailSending, wire.EmailPayload{Destination: "stranger@elsewhere.example", Subject: "x", Content: "y"}, consts.ErrUnsupportedRecipient)
	c.expectError(wire.TagEmailSending, wire.EmailPayload{Destination: "ghost@" + testDomain, Subject: "x", Content: "y"}, consts.ErrRecipientNotFound)

	// a failed send to a missing local account still keeps the message
	lost, err := srv.store.ListLost()
	require.NoError(t, err)
	assert.Len(t, lost, 1)
}

func TestInboxChoiceOutOfRange(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "bob", Password: "An0therPass"})

	for _, choice := range []int{0, -1, 1, 42} {
		choice := choice
		c.expectError(wire.TagInboxChoice, wire.ChoicePayload{Choice: &choice}, consts.ErrInvalidSelection)
	}
}

func TestTooManyErrorsDisconnects(t *testing.T) {
	srv := newTestServer(t, ServerOptions{MaxErrors: 2})
	c := startSession(t, srv)

	for i := 0; i < 3; i++ {
		c.expectError(wire.Tag("NONSENSE"), nil, consts.ErrUnknownRequest)
	}

	// the third error pushed the session past its limit
	_, err := c.reader.ReadMessage()
	assert.Error(t, err)
}

func TestByeClosesWithoutResponse(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	c := startSession(t, srv)

	c.send(wire.TagBye, nil)

	_, err := c.reader.ReadMessage()
	assert.Error(t, err)
}

func TestEndToEnd(t *testing.T) {
	srv := newTestServer(t, ServerOptions{})
	errChan := make(chan error, 1)
	go srv.Start(errChan)
	t.Cleanup(srv.Close)

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = srv.ListenAddr()
		return addr != nil
	}, 2*time.Second, 10*time.Millisecond, "listener never came up")

	dial := func() *testClient {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return newTestClient(t, conn)
	}

	alice := dial()
	bob := dial()

	alice.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "alice", Password: "Str0ngPass"})
	bob.expectOK(wire.TagAuthRegister, wire.AuthPayload{Username: "bob", Password: "An0therPass"})

	alice.expectOK(wire.TagEmailSending, wire.EmailPayload{
		Destination: "bob@" + testDomain,
		Subject:     "lunch",
		Date:        time.Now().Format(time.RFC1123Z),
		Content:     "noon at the usual place?",
	})

	// the message is visible to bob as soon as alice's send was answered
	inbox := bob.expectOK(wire.TagInboxRequest, nil)
	var listing wire.InboxPayload
	require.NoError(t, json.Unmarshal(inbox.Payload, &listing))
	require.Len(t, listing.Emails, 1)
	assert.Equal(t, 1, listing.Emails[0].Number)
	assert.Equal(t, "alice@"+testDomain, listing.Emails[0].Sender)
	assert.Equal(t, "lunch", listing.Emails[0].Subject)

	choice := 1
	full := bob.expectOK(wire.TagInboxChoice, wire.ChoicePayload{Choice: &choice})
	var email wire.EmailPayload
	require.NoError(t, json.Unmarshal(full.Payload, &email))
	assert.Equal(t, "alice@"+testDomain, email.Sender)
	assert.Equal(t, "bob@"+testDomain, email.Destination)
	assert.Equal(t, "noon at the usual place?", email.Content)

	stats := bob.expectOK(wire.TagStatsRequest, nil)
	var sp wire.StatsPayload
	require.NoError(t, json.Unmarshal(stats.Payload, &sp))
	assert.Equal(t, 1, sp.Count)
	assert.Greater(t, sp.Size, int64(0))

	// alice's own mailbox stays empty
	stats = alice.expectOK(wire.TagStatsRequest, nil)
	require.NoError(t, json.Unmarshal(stats.Payload, &sp))
	assert.Equal(t, 0, sp.Count)

	alice.send(wire.TagBye, nil)
	bob.send(wire.TagBye, nil)

	require.Eventually(t, func() bool {
		return srv.GetTotalConnections() == 0
	}, 2*time.Second, 10*time.Millisecond, "sessions never drained")
}
