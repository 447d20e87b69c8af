package storage

import (
	"time"

	"github.com/plumemail/plume/consts"
	"github.com/plumemail/plume/logger"
	"github.com/plumemail/plume/server"
)

// Envelope is one outgoing message handed to the delivery engine.
type Envelope struct {
	Sender    string
	Recipient string
	Subject   string
	Date      time.Time // zero means "now"
	Content   string
}

// Deliver routes an outgoing message to its destination mailbox.
//
// Routing:
//   - unparseable recipient: ErrInvalidRecipient, nothing persisted
//   - a mailbox exists for the local part: persisted there, success,
//     regardless of the domain part (an existing local mailbox wins)
//   - no mailbox, foreign domain: ErrUnsupportedRecipient, nothing persisted
//   - no mailbox, our domain: persisted into the lost bin for operator
//     inspection, but reported to the sender as ErrRecipientNotFound
func (s *Store) Deliver(env Envelope) error {
	addr, err := server.NewAddress(env.Recipient)
	if err != nil {
		return consts.ErrInvalidRecipient
	}

	if env.Date.IsZero() {
		env.Date = time.Now().UTC()
	}
	rec := MessageRecord{
		Sender:    env.Sender,
		Recipient: addr.FullAddress(),
		Subject:   env.Subject,
		Date:      env.Date,
		Content:   env.Content,
	}

	name := addr.LocalPart()

	lock := s.userLock(name)
	lock.Lock()
	defer lock.Unlock()

	if s.AccountExists(name) {
		return writeMessage(s.accountDir(name), rec)
	}

	if addr.Domain() != s.domain {
		return consts.ErrUnsupportedRecipient
	}

	// In-domain recipient without an account: keep the message, fail the
	// send.
	if err := writeMessage(s.lostDir(), rec); err != nil {
		return err
	}
	logger.Info("message moved to lost bin", "recipient", addr.FullAddress(), "sender", env.Sender)
	return consts.ErrRecipientNotFound
}
