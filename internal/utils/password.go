package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for staff passwords.
const (
	PBKDF2Iterations = 120000
	PBKDF2SaltBytes  = 64
	PBKDF2HashBytes  = 48

	hashAlgorithm = "sha512"
	hashSections  = 5

	// maxIterations bounds the work a stored hash can demand.
	maxIterations = 10_000_000
)

// HashPassword derives a PBKDF2-HMAC-SHA512 key from password with a fresh
// random salt and encodes it as "sha512:<iter>:<len>:<b64 salt>:<b64 hash>".
func HashPassword(password []byte) (string, error) {
	salt := make([]byte, PBKDF2SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encodeHash(password, salt, PBKDF2Iterations, PBKDF2HashBytes), nil
}

func encodeHash(password, salt []byte, iterations, keyLen int) string {
	key := pbkdf2.Key(password, salt, iterations, keyLen, sha512.New)
	return strings.Join([]string{
		hashAlgorithm,
		strconv.Itoa(iterations),
		strconv.Itoa(len(key)),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, ":")
}

// CheckPassword reports whether password matches the encoded hash. A
// malformed hash never matches.
func CheckPassword(password []byte, encoded string) bool {
	parts := strings.Split(encoded, ":")
	if len(parts) != hashSections || parts[0] != hashAlgorithm {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 || iterations > maxIterations {
		return false
	}
	declared, err := strconv.Atoi(parts[2])
	if err != nil {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 || declared != len(want) {
		return false
	}
	got := pbkdf2.Key(password, salt, iterations, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Wipe zeroes b.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
