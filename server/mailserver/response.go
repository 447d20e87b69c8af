package mailserver

import (
	"time"

	"github.com/plumemail/plume/server/wire"
	"github.com/plumemail/plume/storage"
)

// wireDateFormat is the timestamp format presented to clients.
const wireDateFormat = time.RFC1123Z

// clientDateFormats are the layouts accepted for the date field of
// EMAIL_SENDING, most specific first. An unparseable or absent date
// falls back to the delivery time.
var clientDateFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

func parseClientDate(value string) time.Time {
	for _, layout := range clientDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// buildInboxPayload converts mailbox summaries into the OK payload of
// INBOX_READING_REQUEST. Entries are numbered 1-based in the order the
// store returned them, most recent first.
func buildInboxPayload(summaries []storage.MessageSummary) wire.InboxPayload {
	emails := make([]wire.EmailSummary, 0, len(summaries))
	for i, summary := range summaries {
		emails = append(emails, wire.EmailSummary{
			Number:  i + 1,
			Sender:  summary.Sender,
			Subject: summary.Subject,
			Date:    summary.Date.Format(wireDateFormat),
		})
	}
	return wire.InboxPayload{Emails: emails}
}

// buildEmailPayload converts a stored message into the OK payload of
// INBOX_READING_CHOICE.
func buildEmailPayload(rec storage.MessageRecord) wire.EmailPayload {
	return wire.EmailPayload{
		Sender:      rec.Sender,
		Destination: rec.Recipient,
		Subject:     rec.Subject,
		Date:        rec.Date.Format(wireDateFormat),
		Content:     rec.Content,
	}
}
