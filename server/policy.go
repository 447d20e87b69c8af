package server

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/plumemail/plume/consts"
)

// UsernameRegex restricts account names to alphanumerics plus '.', '_', '-'.
const UsernameRegex = `^(?i)[a-z0-9._-]+$`

const MaxUsernameLength = 64
const MinPasswordLength = 8

var usernameRe = regexp.MustCompile(UsernameRegex)

// NormalizeUsername validates an account name against the character policy
// and returns its canonical lowercase form.
func NormalizeUsername(username string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	if name == "" || len(name) > MaxUsernameLength || !usernameRe.MatchString(name) {
		return "", consts.ErrInvalidUsername
	}
	return name, nil
}

// CheckPasswordPolicy enforces the minimum-strength policy on a plaintext
// password before it is hashed: minimum length, at least one digit, one
// lowercase and one uppercase letter.
func CheckPasswordPolicy(password string) error {
	if len(password) < MinPasswordLength {
		return consts.ErrWeakPassword
	}
	var hasDigit, hasLower, hasUpper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	if !hasDigit || !hasLower || !hasUpper {
		return consts.ErrWeakPassword
	}
	return nil
}
