// Package passwords verifies user passwords against the hash formats that
// accumulated in the usuarios table over the years.
package passwords

import "strings"

// Result is the outcome of a single verifier.
type Result int

const (
	// Malformed means the stored value is not in this verifier's format.
	Malformed Result = iota
	NoMatch
	Match
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case NoMatch:
		return "no-match"
	default:
		return "malformed"
	}
}

// Verifier checks a plaintext password against one stored format.
// Implementations must never panic on hostile input.
type Verifier interface {
	Name() string
	Verify(stored, plain string) Result
	// Upgradable reports whether a match should be rewritten as bcrypt.
	Upgradable() bool
}

// Chain tries verifiers in order. The first one that recognises the stored
// value decides the result.
type Chain struct {
	verifiers []Verifier
}

// NewChain builds the default priority order. The CodeIgniter verifier is
// only included when a legacy key is configured.
func NewChain(legacyKey string) *Chain {
	vs := []Verifier{BcryptVerifier{}}
	if legacyKey != "" {
		vs = append(vs, NewCodeIgniterVerifier([]byte(legacyKey)))
	}
	vs = append(vs,
		SaltedSHA512Verifier{},
		MD5Verifier{},
		SHA1Verifier{},
		PlaintextVerifier{},
	)
	return &Chain{verifiers: vs}
}

// NewChainOf builds a chain from an explicit list, mostly for tests.
func NewChainOf(vs ...Verifier) *Chain {
	return &Chain{verifiers: vs}
}

// Verify returns the deciding result and the verifier that produced it.
// The verifier is nil when every scheme reported Malformed.
func (c *Chain) Verify(stored, plain string) (res Result, by Verifier) {
	defer func() {
		if r := recover(); r != nil {
			res, by = NoMatch, nil
		}
	}()

	stored = strings.TrimSpace(stored)
	if stored == "" || plain == "" {
		return Malformed, nil
	}

	for _, v := range c.verifiers {
		if r := v.Verify(stored, plain); r != Malformed {
			return r, v
		}
	}
	return Malformed, nil
}

// ShouldMigrate tells the caller whether a successful login through v ought
// to be followed by a bcrypt rewrite.
func ShouldMigrate(res Result, v Verifier) bool {
	return res == Match && v != nil && v.Upgradable()
}
