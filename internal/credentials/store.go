// Package credentials resolves the IMAP password without ever holding it in
// a config file. The Store interface keeps the pipeline testable without OS
// keychain access.
package credentials

import (
	"github.com/zalando/go-keyring"

	"github.com/mfenwick/receipts2ofx/internal/common"
)

// Service is the keyring service name under which the password is stored,
// keyed by IMAP server host.
const Service = "receipts2ofx"

// Store retrieves a secret for a service/account pair.
type Store interface {
	Password(service, account string) (string, error)
}

// Keyring reads secrets from the OS keychain (macOS Keychain, Secret
// Service, Windows Credential Manager).
type Keyring struct{}

func (Keyring) Password(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		return "", common.NewConfigError("no password found in keyring for "+account, err)
	}
	return secret, nil
}

// Static returns a fixed secret; used when the password comes from the
// environment and in tests.
type Static string

func (s Static) Password(string, string) (string, error) {
	if s == "" {
		return "", common.NewConfigError("empty static password", nil)
	}
	return string(s), nil
}

// ForConfig picks the store for a run: a password already resolved from the
// environment wins, otherwise the OS keyring is consulted.
func ForConfig(envPassword string) Store {
	if envPassword != "" {
		return Static(envPassword)
	}
	return Keyring{}
}
