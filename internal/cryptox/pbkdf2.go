package cryptox

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultPBKDF2Iterations is assumed when a legacy method string omits the
// iteration count.
const DefaultPBKDF2Iterations = 600000

var pbkdf2Digests = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// VerifyPBKDF2 checks password against a werkzeug style digest
// pbkdf2:<digest>[:<iterations>]$<salt>$<hex>. The salt is used as raw text.
func VerifyPBKDF2(password, encoded string) (bool, error) {
	method, salt, want, err := splitPBKDF2(encoded)
	if err != nil {
		return false, err
	}

	newHash, iterations, err := parsePBKDF2Method(method)
	if err != nil {
		return false, err
	}

	wantBytes, err := hex.DecodeString(want)
	if err != nil || len(wantBytes) == 0 {
		return false, ErrMalformedHash
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(wantBytes), newHash)

	return subtle.ConstantTimeCompare(got, wantBytes) == 1, nil
}

// HashPBKDF2 produces a werkzeug style digest, the inverse of VerifyPBKDF2.
// The server never stores new passwords this way; tests use it to build
// legacy accounts.
func HashPBKDF2(password, salt, digest string, iterations int) (string, error) {
	newHash, ok := pbkdf2Digests[digest]
	if !ok {
		return "", ErrUnsupportedDigest
	}
	if iterations <= 0 || salt == "" || strings.Contains(salt, "$") {
		return "", ErrMalformedHash
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, newHash().Size(), newHash)
	return fmt.Sprintf("pbkdf2:%s:%d$%s$%s", digest, iterations, salt, hex.EncodeToString(key)), nil
}

func splitPBKDF2(encoded string) (method, salt, sum string, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", ErrMalformedHash
	}
	return parts[0], parts[1], parts[2], nil
}

func parsePBKDF2Method(method string) (func() hash.Hash, int, error) {
	fields := strings.Split(method, ":")
	if fields[0] != "pbkdf2" || len(fields) < 2 || len(fields) > 3 {
		return nil, 0, ErrMalformedHash
	}

	newHash, ok := pbkdf2Digests[fields[1]]
	if !ok {
		return nil, 0, ErrUnsupportedDigest
	}

	iterations := DefaultPBKDF2Iterations
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil || n <= 0 {
			return nil, 0, ErrMalformedHash
		}
		iterations = n
	}
	return newHash, iterations, nil
}
