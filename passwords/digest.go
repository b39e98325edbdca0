package passwords

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

var (
	saltedRe = regexp.MustCompile(`^([a-fA-F0-9]{64,128})([A-Za-z0-9+/=]+)$`)
	md5Re    = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	sha1Re   = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)

	pbkdf2Iterations = []int{1000, 10000, 50000}
	pbkdf2KeyLens    = []int{32, 64}
)

// SaltedSHA512Verifier handles hex digests followed by a base64 salt, as
// either sha512(pw+salt), sha512(salt+pw) or PBKDF2-SHA512.
type SaltedSHA512Verifier struct{}

func (SaltedSHA512Verifier) Name() string     { return "salted-sha512" }
func (SaltedSHA512Verifier) Upgradable() bool { return true }

func (SaltedSHA512Verifier) Verify(stored, plain string) Result {
	m := saltedRe.FindStringSubmatch(stored)
	if m == nil {
		return Malformed
	}
	want := strings.ToLower(m[1])
	salt, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return Malformed
	}

	h := sha512.New()
	h.Write([]byte(plain))
	h.Write(salt)
	if hexEqual(h.Sum(nil), want) {
		return Match
	}

	h.Reset()
	h.Write(salt)
	h.Write([]byte(plain))
	if hexEqual(h.Sum(nil), want) {
		return Match
	}

	for _, iter := range pbkdf2Iterations {
		for _, klen := range pbkdf2KeyLens {
			if klen*2 != len(want) {
				continue
			}
			if hexEqual(pbkdf2.Key([]byte(plain), salt, iter, klen, sha512.New), want) {
				return Match
			}
		}
	}
	return NoMatch
}

type MD5Verifier struct{}

func (MD5Verifier) Name() string     { return "md5" }
func (MD5Verifier) Upgradable() bool { return true }

func (MD5Verifier) Verify(stored, plain string) Result {
	if !md5Re.MatchString(stored) {
		return Malformed
	}
	sum := md5.Sum([]byte(plain))
	return boolResult(hexEqual(sum[:], strings.ToLower(stored)))
}

type SHA1Verifier struct{}

func (SHA1Verifier) Name() string     { return "sha1" }
func (SHA1Verifier) Upgradable() bool { return true }

func (SHA1Verifier) Verify(stored, plain string) Result {
	if !sha1Re.MatchString(stored) {
		return Malformed
	}
	sum := sha1.Sum([]byte(plain))
	return boolResult(hexEqual(sum[:], strings.ToLower(stored)))
}

// PlaintextVerifier is the last resort for rows that were never hashed.
type PlaintextVerifier struct{}

func (PlaintextVerifier) Name() string     { return "plaintext" }
func (PlaintextVerifier) Upgradable() bool { return true }

func (PlaintextVerifier) Verify(stored, plain string) Result {
	return boolResult(subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1)
}

func hexEqual(sum []byte, want string) bool {
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum)), []byte(want)) == 1
}

func boolResult(ok bool) Result {
	if ok {
		return Match
	}
	return NoMatch
}
