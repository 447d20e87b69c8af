package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/plumemail/plume/consts"
)

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	in := OK(StatsPayload{Count: 3, Size: 1024})
	if err := w.WriteMessage(in); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	r := NewReader(&buf, 0)
	out, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if out.Header != TagOK {
		t.Errorf("Header = %q, want %q", out.Header, TagOK)
	}

	var stats StatsPayload
	if err := out.decodePayload(&stats); err != nil {
		t.Fatalf("decodePayload failed: %v", err)
	}
	if stats.Count != 3 || stats.Size != 1024 {
		t.Errorf("payload = %+v, want count=3 size=1024", stats)
	}
}

func TestFramingNeverEmbedsDelimiter(t *testing.T) {
	// Frames are newline-delimited; a body full of newlines and control
	// characters must still serialize to exactly one line.
	var buf bytes.Buffer
	w := NewWriter(&buf)

	payload := EmailPayload{
		Sender:      "alice@plume.example",
		Destination: "bob@plume.example",
		Subject:     "multi\nline\nsubject",
		Content:     "line one\nline two\r\nline three\x00",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	m := Message{Header: TagEmailSending, Payload: raw}

	if err := w.WriteMessage(m); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	frame := buf.String()
	if n := strings.Count(frame, "\n"); n != 1 {
		t.Fatalf("frame contains %d newlines, want exactly 1 (the delimiter)", n)
	}

	r := NewReader(strings.NewReader(frame), 0)
	out, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	got, err := out.EmailPayload()
	if err != nil {
		t.Fatalf("EmailPayload failed: %v", err)
	}
	if got.Content != payload.Content || got.Subject != payload.Subject {
		t.Errorf("payload mangled in transit: %+v", got)
	}
}

func TestReadMessageMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "hello world\n"},
		{name: "missing header", input: `{"payload":{}}` + "\n"},
		{name: "truncated", input: `{"header":"OK"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input), 0)
			if _, err := r.ReadMessage(); err == nil {
				t.Fatalf("ReadMessage(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestReadMessageFrameTooLarge(t *testing.T) {
	big := `{"header":"OK","payload":{"junk":"` + strings.Repeat("x", 4096) + `"}}` + "\n"
	r := NewReader(strings.NewReader(big), 128)
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestAuthPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "complete", raw: `{"username":"alice","password":"Str0ngPass"}`},
		{name: "missing password", raw: `{"username":"alice"}`, wantErr: true},
		{name: "missing username", raw: `{"password":"Str0ngPass"}`, wantErr: true},
		{name: "empty object", raw: `{}`, wantErr: true},
		{name: "absent payload", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Header: TagAuthLogin}
			if tt.raw != "" {
				m.Payload = []byte(tt.raw)
			}
			_, err := m.AuthPayload()
			if tt.wantErr {
				if !errors.Is(err, consts.ErrMalformedPayload) {
					t.Fatalf("err = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AuthPayload failed: %v", err)
			}
		})
	}
}

func TestChoicePayloadDistinguishesMissingFromZero(t *testing.T) {
	m := Message{Header: TagInboxChoice, Payload: []byte(`{}`)}
	if _, err := m.ChoicePayload(); !errors.Is(err, consts.ErrMalformedPayload) {
		t.Fatalf("missing choice: err = %v, want ErrMalformedPayload", err)
	}

	// A present-but-out-of-range choice is a selection problem, not a
	// payload problem; the codec must pass it through.
	m = Message{Header: TagInboxChoice, Payload: []byte(`{"choice":0}`)}
	choice, err := m.ChoicePayload()
	if err != nil {
		t.Fatalf("zero choice: err = %v, want nil", err)
	}
	if choice != 0 {
		t.Errorf("choice = %d, want 0", choice)
	}
}

func TestErrorResponse(t *testing.T) {
	m := Error("recipient not found")
	if m.Header != TagError {
		t.Errorf("Header = %q, want %q", m.Header, TagError)
	}
	var p ErrorPayload
	if err := m.decodePayload(&p); err != nil {
		t.Fatalf("decodePayload failed: %v", err)
	}
	if p.ErrorMessage != "recipient not found" {
		t.Errorf("ErrorMessage = %q", p.ErrorMessage)
	}
}

func TestReadMessageMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, tag := range []Tag{TagInboxRequest, TagStatsRequest, TagBye} {
		if err := w.WriteMessage(Message{Header: tag}); err != nil {
			t.Fatalf("WriteMessage(%s) failed: %v", tag, err)
		}
	}

	r := NewReader(&buf, 0)
	for _, want := range []Tag{TagInboxRequest, TagStatsRequest, TagBye} {
		m, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if m.Header != want {
			t.Errorf("Header = %q, want %q", m.Header, want)
		}
	}
}
