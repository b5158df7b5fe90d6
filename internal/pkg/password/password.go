package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Supported hash schemes.
const (
	SchemePBKDF2 = "pbkdf2-sha256"
	SchemeBcrypt = "bcrypt"
)

const (
	// DefaultRounds matches passlib's pbkdf2_sha256 default so existing hashes
	// and freshly produced ones cost the same to check.
	DefaultRounds = 29000

	// BcryptMaxBytes is the longest input bcrypt accepts.
	BcryptMaxBytes = 72

	saltLen   = 16
	keyLen    = 32
	maxRounds = 10_000_000
)

// ErrTooLong is returned by Hash when the configured scheme cannot take the whole password.
var ErrTooLong = errors.New("password must be at most 72 bytes")

// ab64 is passlib's "adapted base64": standard alphabet with '.' for '+', unpadded.
var ab64 = base64.RawStdEncoding

// Hasher derives and checks one-way password hashes. Hash always uses the
// configured scheme; Verify accepts any supported scheme.
type Hasher struct {
	scheme string
	rounds int
}

// NewHasher returns a Hasher for scheme. rounds is ignored for bcrypt and
// defaults to DefaultRounds when not positive.
func NewHasher(scheme string, rounds int) (*Hasher, error) {
	switch scheme {
	case SchemePBKDF2, SchemeBcrypt:
	default:
		return nil, fmt.Errorf("unsupported password scheme %q", scheme)
	}
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	return &Hasher{scheme: scheme, rounds: rounds}, nil
}

// Hash returns an encoded, salted hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeBcrypt {
		if len(password) > BcryptMaxBytes {
			return "", ErrTooLong
		}
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(b), nil
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := pbkdf2.Key([]byte(password), salt, h.rounds, keyLen, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", SchemePBKDF2, h.rounds, encodeAB64(salt), encodeAB64(sum)), nil
}

// Verify reports whether password produced encoded. Malformed or unknown
// encodings never match.
func (h *Hasher) Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$"+SchemePBKDF2+"$"):
		return verifyPBKDF2(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	default:
		return false
	}
}

func verifyPBKDF2(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return false
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 || rounds > maxRounds {
		return false
	}
	salt, err := decodeAB64(parts[3])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := decodeAB64(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func encodeAB64(b []byte) string {
	return strings.ReplaceAll(ab64.EncodeToString(b), "+", ".")
}

func decodeAB64(s string) ([]byte, error) {
	return ab64.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
