// Package credentials implements password hashing and verification over a
// closed set of algorithms. New digests are always argon2id; pbkdf2 digests
// from the previous scheme are still accepted at login.
package credentials

import (
	"strings"

	"github.com/dmitrijs2005/calauth/internal/cryptox"
)

type Algorithm int

const (
	AlgorithmUnknown Algorithm = iota
	Argon2id
	LegacyPBKDF2
)

// Tag values stored in users.password_algorithm.
const (
	TagArgon2id = "argon2id"
	TagPBKDF2   = "pbkdf2:sha256"
)

// ParseAlgorithm maps a stored tag onto an Algorithm. Rows written before the
// column existed carry an empty tag and are pbkdf2.
func ParseAlgorithm(tag string) Algorithm {
	switch {
	case tag == TagArgon2id:
		return Argon2id
	case tag == "" || strings.HasPrefix(tag, "pbkdf2"):
		return LegacyPBKDF2
	default:
		return AlgorithmUnknown
	}
}

func (a Algorithm) String() string {
	switch a {
	case Argon2id:
		return TagArgon2id
	case LegacyPBKDF2:
		return TagPBKDF2
	default:
		return "unknown"
	}
}

type Hasher struct {
	params cryptox.Argon2Params
}

func NewHasher(params cryptox.Argon2Params) *Hasher {
	return &Hasher{params: params}
}

// NewDefaultHasher uses cryptox.DefaultArgon2Params.
func NewDefaultHasher() *Hasher {
	return NewHasher(cryptox.DefaultArgon2Params)
}

// Hash returns an argon2id digest and the tag to store next to it.
func (h *Hasher) Hash(password string) (digest string, tag string, err error) {
	digest, err = cryptox.HashArgon2id(password, h.params)
	if err != nil {
		return "", "", err
	}
	return digest, Argon2id.String(), nil
}

// Verify checks password against digest using the algorithm named by tag.
// It never returns an error: malformed digests and unknown tags are a
// mismatch.
func (h *Hasher) Verify(digest, tag, password string) bool {
	if digest == "" {
		return false
	}

	var (
		ok  bool
		err error
	)
	switch ParseAlgorithm(tag) {
	case Argon2id:
		ok, err = cryptox.VerifyArgon2id(password, digest)
	case LegacyPBKDF2:
		ok, err = cryptox.VerifyPBKDF2(password, digest)
	case AlgorithmUnknown:
		return false
	}
	return err == nil && ok
}

// NeedsRehash reports whether a digest stored under tag should be replaced
// with a fresh argon2id digest after a successful login.
func (h *Hasher) NeedsRehash(tag string) bool {
	return ParseAlgorithm(tag) != Argon2id
}
