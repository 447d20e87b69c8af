package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plumemail/plume/consts"
	"github.com/plumemail/plume/logger"
	"github.com/plumemail/plume/server"
)

// ListMessages enumerates a user's mailbox and returns summaries sorted
// by date descending, most recent first. An empty mailbox is an empty
// slice, not an error.
func (s *Store) ListMessages(username string) ([]MessageSummary, error) {
	name, err := server.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	lock := s.userLock(name)
	lock.RLock()
	defer lock.RUnlock()

	return s.scanMailbox(name)
}

// scanMailbox reads every message record in the user's directory. The
// caller must hold the user lock.
func (s *Store) scanMailbox(name string) ([]MessageSummary, error) {
	return s.scanDir(s.accountDir(name), name)
}

// ListLost enumerates the lost bin. It is never exposed to clients; the
// admin tool uses it for operator inspection.
func (s *Store) ListLost() ([]MessageSummary, error) {
	lock := s.userLock(consts.LostBinDir)
	lock.RLock()
	defer lock.RUnlock()
	return s.scanDir(s.lostDir(), consts.LostBinDir)
}

func (s *Store) scanDir(dir, name string) ([]MessageSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, consts.ErrAccountNotFound
		}
		return nil, storageErr("list mailbox", err)
	}

	summaries := make([]MessageSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), consts.MessageFileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, storageErr("stat message", err)
		}
		rec, err := readMessage(filepath.Join(dir, entry.Name()), false)
		if err != nil {
			// One corrupt record must not make the whole mailbox
			// unreadable. Skip it and leave it for the operator.
			logger.Warn("skipping unreadable message record", "user", name, "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, MessageSummary{
			Sender:   rec.Sender,
			Subject:  rec.Subject,
			Date:     rec.Date,
			Size:     info.Size(),
			filename: entry.Name(),
		})
	}

	// Most recent first; the filename tie-break keeps the ordering
	// stable between a listing and a subsequent read-by-ordinal.
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Date.Equal(summaries[j].Date) {
			return summaries[i].Date.After(summaries[j].Date)
		}
		return summaries[i].filename > summaries[j].filename
	})

	return summaries, nil
}

// ReadMessage loads the full message at the given 1-based ordinal against
// the same descending-date ordering ListMessages produces.
func (s *Store) ReadMessage(username string, ordinal int) (MessageRecord, error) {
	var rec MessageRecord

	name, err := server.NormalizeUsername(username)
	if err != nil {
		return rec, err
	}

	lock := s.userLock(name)
	lock.RLock()
	defer lock.RUnlock()

	summaries, err := s.scanMailbox(name)
	if err != nil {
		return rec, err
	}
	if ordinal < 1 || ordinal > len(summaries) {
		return rec, consts.ErrInvalidSelection
	}

	path := filepath.Join(s.accountDir(name), summaries[ordinal-1].filename)
	return readMessage(path, true)
}

// Stats returns the number of persisted messages in the user's mailbox
// and the sum of their on-disk sizes. Zero messages is a valid result.
func (s *Store) Stats(username string) (count int, size int64, err error) {
	name, err := server.NormalizeUsername(username)
	if err != nil {
		return 0, 0, err
	}

	lock := s.userLock(name)
	lock.RLock()
	defer lock.RUnlock()

	entries, err := os.ReadDir(s.accountDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, consts.ErrAccountNotFound
		}
		return 0, 0, storageErr("stat mailbox", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), consts.MessageFileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, 0, storageErr("stat message", err)
		}
		count++
		size += info.Size()
	}
	return count, size, nil
}
