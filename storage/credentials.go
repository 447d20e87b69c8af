package storage

import (
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/plumemail/plume/consts"
	"github.com/plumemail/plume/server"
)

// dummyHash is a valid bcrypt hash of an unguessable value. Login
// attempts against unknown usernames are verified against it so the
// failure takes as long as a real password mismatch and the reply does
// not reveal whether the account exists.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("plume-no-such-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// CreateAccount validates the username and password policies, persists a
// new account and creates its mailbox directory. The username comparison
// is case-normalized: "Alice" and "alice" are the same account. On
// success the normalized account name is returned.
func (s *Store) CreateAccount(username, password string) (string, error) {
	name, err := server.NormalizeUsername(username)
	if err != nil {
		return "", err
	}

	lock := s.userLock(name)
	lock.Lock()
	defer lock.Unlock()

	if s.AccountExists(name) {
		return "", consts.ErrUsernameTaken
	}

	if err := server.CheckPasswordPolicy(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", storageErr("hash password", err)
	}

	dir := s.accountDir(name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", storageErr("create mailbox directory", err)
	}
	if err := os.WriteFile(filepath.Join(dir, consts.CredentialFile), hash, 0600); err != nil {
		// Leave no half-created account behind
		os.RemoveAll(dir)
		return "", storageErr("write credential", err)
	}

	return name, nil
}

// Authenticate verifies a username/password pair against the stored
// credential. Unknown-user and wrong-password failures are deliberately
// indistinguishable.
func (s *Store) Authenticate(username, password string) (string, error) {
	name, err := server.NormalizeUsername(username)
	if err != nil {
		// Still burn a bcrypt verification so malformed usernames are
		// no faster to probe than wrong passwords.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", consts.ErrInvalidCredentials
	}

	lock := s.userLock(name)
	lock.RLock()
	defer lock.RUnlock()

	hash, err := os.ReadFile(filepath.Join(s.accountDir(name), consts.CredentialFile))
	if err != nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", consts.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", consts.ErrInvalidCredentials
	}

	return name, nil
}
