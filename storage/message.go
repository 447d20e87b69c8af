package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// MessageSummary is the listing view of one stored message.
type MessageSummary struct {
	Sender  string
	Subject string
	Date    time.Time
	Size    int64

	// filename anchors read-by-ordinal to the exact file the listing
	// was built from.
	filename string
}

// MessageRecord is one fully loaded stored message.
type MessageRecord struct {
	Sender    string
	Recipient string
	Subject   string
	Date      time.Time
	Content   string
}

// messageFilename derives the on-disk name of a message from its subject
// and timestamp, with characters unsafe for the filesystem substituted.
// A short random suffix guarantees that two messages with identical
// subject and timestamp cannot overwrite each other.
func messageFilename(subject string, date time.Time) string {
	stamp := date.UTC().Format("20060102T150405Z")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s%s", sanitizeFilename(subject), stamp, suffix, ".eml")
}

// sanitizeFilename substitutes everything outside a conservative
// character set and bounds the length so subjects cannot produce hostile
// or oversized path components.
func sanitizeFilename(s string) string {
	const maxLen = 64
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxLen {
			break
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "no-subject"
	}
	return name
}

// writeMessage persists one message as an RFC 5322 file in dir. The file
// is written to a temporary name first and renamed into place so a crash
// mid-write never leaves a half message visible to listings.
func writeMessage(dir string, rec MessageRecord) error {
	var h mail.Header
	h.SetDate(rec.Date.UTC())
	h.SetText("From", rec.Sender)
	h.SetText("To", rec.Recipient)
	h.SetSubject(rec.Subject)

	tmp, err := os.CreateTemp(dir, ".delivery-*")
	if err != nil {
		return storageErr("create message file", err)
	}
	tmpName := tmp.Name()

	mw, err := mail.CreateSingleInlineWriter(tmp, h)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("write message header", err)
	}
	if _, err := io.WriteString(mw, rec.Content); err != nil {
		mw.Close()
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("write message body", err)
	}
	if err := mw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("finalize message", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr("close message file", err)
	}

	final := filepath.Join(dir, messageFilename(rec.Subject, rec.Date))
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return storageErr("store message", err)
	}
	return nil
}

// readMessage loads one stored message. When wantBody is false the body
// is not decoded, which keeps listings cheap.
func readMessage(path string, wantBody bool) (MessageRecord, error) {
	var rec MessageRecord

	f, err := os.Open(path)
	if err != nil {
		return rec, storageErr("open message", err)
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil {
		return rec, fmt.Errorf("unreadable message file '%s': %w", filepath.Base(path), err)
	}

	h := mr.Header
	rec.Sender, _ = h.Text("From")
	rec.Recipient, _ = h.Text("To")
	rec.Subject, _ = h.Subject()
	if date, err := h.Date(); err == nil {
		rec.Date = date.UTC()
	}

	if wantBody {
		part, err := mr.NextPart()
		if err != nil {
			return rec, fmt.Errorf("unreadable message body '%s': %w", filepath.Base(path), err)
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return rec, storageErr("read message body", err)
		}
		rec.Content = string(body)
	}

	return rec, nil
}
