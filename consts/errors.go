package consts

import "errors"

var (
	// Account and credential errors.
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrWeakPassword       = errors.New("password does not meet the strength policy")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Session and protocol errors.
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrUnknownRequest       = errors.New("unknown request")
	ErrMalformedPayload     = errors.New("malformed payload")

	// Delivery errors.
	ErrInvalidRecipient     = errors.New("invalid recipient address")
	ErrUnsupportedRecipient = errors.New("recipient is outside the local domain")
	ErrRecipientNotFound    = errors.New("recipient not found")

	// Mailbox errors.
	ErrInvalidSelection = errors.New("invalid message selection")
	ErrAccountNotFound  = errors.New("account not found")

	// Storage errors.
	ErrStorageFailure = errors.New("storage failure")
)
