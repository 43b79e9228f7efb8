// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltLength   = 16
	argon2Prefix = "$argon2id$"
)

var ErrUnsupportedDigest = errors.New("unsupported password digest")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// encode renders the PHC string form shared with other argon2id libraries.
func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

type argonDigest struct {
	params argonParams
	salt   []byte
	key    []byte
}

func parseArgonDigest(encoded string) (argonDigest, error) {
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return argonDigest{}, ErrUnsupportedDigest
	}

	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return argonDigest{}, fmt.Errorf("argon2id digest: want 4 fields, got %d", len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return argonDigest{}, fmt.Errorf("argon2id version: %w", err)
	}
	if version != argon2.Version {
		return argonDigest{}, fmt.Errorf("argon2id version %d: %w", version, ErrUnsupportedDigest)
	}

	var d argonDigest
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d",
		&d.params.memory, &d.params.time, &d.params.threads); err != nil {
		return argonDigest{}, fmt.Errorf("argon2id params: %w", err)
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return argonDigest{}, fmt.Errorf("argon2id salt: %w", err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil {
		return argonDigest{}, fmt.Errorf("argon2id key: %w", err)
	}

	//nolint:gosec // G115: key length is a few dozen bytes
	d.params.keyLen = uint32(len(d.key))

	return d, nil
}

func isBcryptDigest(encoded string) bool {
	_, err := bcrypt.Cost([]byte(encoded))
	return err == nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return currentParams.encode(salt, currentParams.derive(password, salt)), nil
}

// VerifyPassword checks password against an argon2id digest or, for rows
// carried over from the previous store, a bcrypt digest.
func VerifyPassword(password, encoded string) (bool, error) {
	if isBcryptDigest(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("bcrypt compare: %w", err)
		}
	}

	d, err := parseArgonDigest(encoded)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(d.key, d.params.derive(password, d.salt)) == 1, nil
}

// NeedsRehash reports whether a stored digest should be replaced with one
// produced by the current argon2id parameters.
func NeedsRehash(encoded string) bool {
	if isBcryptDigest(encoded) {
		return true
	}
	d, err := parseArgonDigest(encoded)
	if err != nil {
		return true
	}
	return d.params != currentParams
}

type PasswordCheck struct {
	Match bool
	// Rehash is a replacement digest when the stored one is outdated.
	Rehash string
}

var placeholderDigest = sync.OnceValue(func() string {
	digest, err := HashPassword("placeholder-for-unknown-accounts")
	if err != nil {
		panic(fmt.Sprintf("security: placeholder digest: %v", err))
	}
	return digest
})

// CheckPassword verifies password against stored. An empty stored digest is
// checked against a placeholder and never matches, so an unknown account
// costs the same as a wrong password.
func CheckPassword(password, stored string) (PasswordCheck, error) {
	if stored == "" {
		//nolint:errcheck // result is discarded on purpose
		_, _ = VerifyPassword(password, placeholderDigest())
		return PasswordCheck{}, nil
	}

	ok, err := VerifyPassword(password, stored)
	if err != nil || !ok {
		return PasswordCheck{}, err
	}

	check := PasswordCheck{Match: true}
	if NeedsRehash(stored) {
		// a failed rehash leaves the old digest in place
		if digest, hashErr := HashPassword(password); hashErr == nil {
			check.Rehash = digest
		}
	}
	return check, nil
}
