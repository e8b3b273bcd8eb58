// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

const saltLength = 16

var errMalformedHash = errors.New("malformed password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// passwordParams are the parameters new hashes are written with. Hashes
// encoded with anything else are upgraded on the next successful login.
var passwordParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

// HashPassword encodes password as a PHC-style argon2id string.
func HashPassword(password string) (string, error) {
	return hashWith(password, passwordParams)
}

func hashWith(password string, p argonParams) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	ok, _, err := checkPassword(password, encodedHash)
	return ok, err
}

// checkPassword also reports whether the stored hash was made with
// parameters other than passwordParams.
func checkPassword(password, encodedHash string) (ok, stale bool, err error) {
	p, salt, key, err := parseArgonHash(encodedHash)
	if err != nil {
		return false, false, err
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return subtle.ConstantTimeCompare(key, got) == 1, p != passwordParams, nil
}

var dummyHash = func() string {
	h, err := HashPassword("unknown-account-placeholder")
	if err != nil {
		panic(fmt.Sprintf("security: dummy hash: %v", err))
	}
	return h
}()

// VerifyPasswordTimingSafe costs one argon2 derivation whether or not the
// account exists: a nil or empty encodedHash is checked against a dummy
// hash and always fails. On a match against outdated parameters rehash
// holds a fresh encoding of password.
func VerifyPasswordTimingSafe(
	password string,
	encodedHash *string,
) (ok bool, rehash string, err error) {
	if encodedHash == nil || *encodedHash == "" {
		_, _, _ = checkPassword(password, dummyHash)
		return false, "", nil
	}

	ok, stale, err := checkPassword(password, *encodedHash)
	if err != nil || !ok || !stale {
		return ok, "", err
	}

	rehash, err = HashPassword(password)
	if err != nil {
		// the login itself is still valid
		return true, "", nil
	}
	return true, rehash, nil
}

// parseArgonHash decodes $argon2id$v=V$m=M,t=T,p=P$salt$key.
func parseArgonHash(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(
		parts[2]+","+parts[3],
		"v=%d,m=%d,t=%d,p=%d",
		&version, &p.memory, &p.time, &p.threads,
	); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %d", errMalformedHash, version)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedHash)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.keyLen = uint32(len(key))

	return p, salt, key, nil
}

const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateResetToken returns length characters drawn uniformly from
// [A-Za-z0-9].
func GenerateResetToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate reset token: %w", ErrInvalidInput)
	}

	alphabetLen := big.NewInt(int64(len(resetTokenAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate reset token: %w", err)
		}
		out[i] = resetTokenAlphabet[n.Int64()]
	}

	return string(out), nil
}

// HashToken is used for lookups of single-use tokens so the raw value is
// never persisted.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
