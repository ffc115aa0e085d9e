// Package cryptox derives login verifiers from passwords. The password never
// leaves the client: the server stores only the salt and the verifier.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/dmitrijs2005/famledger/internal/shared"
	"golang.org/x/crypto/argon2"
)

const SaltSize = 32

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// NewSalt returns SaltSize random bytes for a new account.
func NewSalt() ([]byte, error) {
	return shared.RandBytes(SaltSize)
}

// Verify reports whether password and salt produce verifier.
func Verify(password, salt, verifier []byte) bool {
	key := DeriveMasterKey(password, salt)
	defer shared.WipeByteArray(key)
	return subtle.ConstantTimeCompare(MakeVerifier(key), verifier) == 1
}
