// Package wire implements the framed request/response protocol spoken
// between clients and the mail service.
//
// Each frame is a single JSON object terminated by '\n'. encoding/json
// escapes all control characters inside strings, so the delimiter can
// never appear inside a marshalled frame and a reader can always consume
// exactly one message per line.
//
// Frame shape:
//
//	{"header": "<TAG>", "payload": {...}}
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/plumemail/plume/consts"
)

// Tag identifies the kind of a request or response frame.
type Tag string

// Request tags.
const (
	TagAuthRegister Tag = "AUTH_REGISTER"
	TagAuthLogin    Tag = "AUTH_LOGIN"
	TagAuthLogout   Tag = "AUTH_LOGOUT"
	TagBye          Tag = "BYE"
	TagEmailSending Tag = "EMAIL_SENDING"
	TagInboxRequest Tag = "INBOX_READING_REQUEST"
	TagInboxChoice  Tag = "INBOX_READING_CHOICE"
	TagStatsRequest Tag = "STATS_REQUEST"
)

// Response tags.
const (
	TagOK    Tag = "OK"
	TagError Tag = "ERROR"
)

// DefaultMaxFrameLength bounds a single frame. Subjects and bodies are
// short community messages, not attachments.
const DefaultMaxFrameLength = 1 << 20

// Message is one protocol frame. The payload is kept raw until the tag
// determines its concrete shape.
type Message struct {
	Header  Tag             `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload carries registration and login credentials.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EmailPayload carries an outgoing or stored message.
type EmailPayload struct {
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// ChoicePayload selects a message by 1-based ordinal.
type ChoicePayload struct {
	Choice *int `json:"choice"`
}

// ErrorPayload carries a human-readable error reply.
type ErrorPayload struct {
	ErrorMessage string `json:"error_message"`
}

// EmailSummary is one entry of an inbox listing, most recent first.
type EmailSummary struct {
	Number  int    `json:"number"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// InboxPayload is the OK payload of INBOX_READING_REQUEST.
type InboxPayload struct {
	Emails []EmailSummary `json:"emails"`
}

// StatsPayload is the OK payload of STATS_REQUEST.
type StatsPayload struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// AuthPayload decodes the frame payload as credentials. Both fields are
// required.
func (m *Message) AuthPayload() (AuthPayload, error) {
	var p AuthPayload
	if err := m.decodePayload(&p); err != nil {
		return p, err
	}
	if p.Username == "" || p.Password == "" {
		return p, consts.ErrMalformedPayload
	}
	return p, nil
}

// EmailPayload decodes the frame payload as an outgoing message. The
// destination is required; subject and content may be empty.
func (m *Message) EmailPayload() (EmailPayload, error) {
	var p EmailPayload
	if err := m.decodePayload(&p); err != nil {
		return p, err
	}
	if p.Destination == "" {
		return p, consts.ErrMalformedPayload
	}
	return p, nil
}

// ChoicePayload decodes the frame payload as a message selection. The
// choice field must be present; range checking is the caller's concern.
func (m *Message) ChoicePayload() (int, error) {
	var p ChoicePayload
	if err := m.decodePayload(&p); err != nil {
		return 0, err
	}
	if p.Choice == nil {
		return 0, consts.ErrMalformedPayload
	}
	return *p.Choice, nil
}

func (m *Message) decodePayload(v any) error {
	if len(m.Payload) == 0 {
		return consts.ErrMalformedPayload
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return consts.ErrMalformedPayload
	}
	return nil
}

// OK builds a success response. A nil payload produces an empty one.
func OK(payload any) Message {
	m := Message{Header: TagOK}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			m.Payload = raw
		}
	}
	return m
}

// Error builds a structured error response.
func Error(message string) Message {
	raw, _ := json.Marshal(ErrorPayload{ErrorMessage: message})
	return Message{Header: TagError, Payload: raw}
}

// ErrFrameTooLarge is returned when a frame exceeds the reader's limit.
// It is a framing failure: the connection is no longer in a readable
// state and must be torn down.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum length")

// Reader decodes one frame per line from a connection.
type Reader struct {
	r   *bufio.Reader
	max int
}

// NewReader wraps r with the given frame length limit (0 applies
// DefaultMaxFrameLength).
func NewReader(r io.Reader, max int) *Reader {
	if max <= 0 {
		max = DefaultMaxFrameLength
	}
	return &Reader{r: bufio.NewReaderSize(r, 4096), max: max}
}

// ReadMessage reads exactly one frame. Transport errors and malformed
// framing (oversized line, invalid JSON) are returned as errors; the
// caller must treat them as fatal to the connection.
func (r *Reader) ReadMessage() (Message, error) {
	var m Message

	line, err := r.readLine()
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(line, &m); err != nil {
		return m, fmt.Errorf("malformed frame: %w", err)
	}
	if m.Header == "" {
		return m, fmt.Errorf("malformed frame: missing header")
	}
	return m, nil
}

func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > r.max {
			return nil, ErrFrameTooLarge
		}
		if err == nil {
			return line, nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return nil, err
	}
}

// Writer encodes one frame per line onto a connection.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage serializes one frame and flushes it so the response is on
// the wire before the next request is read.
func (w *Writer) WriteMessage(m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := w.w.Write(raw); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}
