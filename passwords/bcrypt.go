package passwords

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefix = regexp.MustCompile(`^\$2[aby]\$`)

type BcryptVerifier struct{}

func (BcryptVerifier) Name() string     { return "bcrypt" }
func (BcryptVerifier) Upgradable() bool { return false }

func (BcryptVerifier) Verify(stored, plain string) Result {
	if !bcryptPrefix.MatchString(stored) {
		return Malformed
	}
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
	switch err {
	case nil:
		return Match
	case bcrypt.ErrMismatchedHashAndPassword:
		return NoMatch
	default:
		return Malformed
	}
}

// Hash produces the bcrypt value written back on migration.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
