package consts

// DefaultPort is the documented listening port for the mail service.
const DefaultPort = 1337

// LostBinDir is the shared directory under the data root that holds
// undeliverable in-domain mail. The "+" prefix keeps it outside the
// username character set, so it can never collide with an account.
const LostBinDir = "+lost"

// CredentialFile is the name of the per-account password hash file.
const CredentialFile = "credential"

// MessageFileExt is the extension of persisted message records.
const MessageFileExt = ".eml"
