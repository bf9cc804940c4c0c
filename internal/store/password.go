package store

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// projectSalt is the fixed salt used for every password hash. The broker
// does not use a per-user random salt — matching the upstream behavior this
// was ported from. VerifyPassword reads the salt back out of the stored
// hash, so changing projectSalt affects only hashes produced afterward.
var projectSalt = []byte("questgate-authbroker-fixed-salt")

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashPassword returns a PHC-formatted Argon2id hash of password.
func HashPassword(password string) string {
	sum := argon2.IDKey([]byte(password), projectSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(projectSalt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
}

// VerifyPassword reports whether password matches the PHC-formatted hash
// produced by HashPassword, using a constant-time comparison.
func VerifyPassword(password, phcHash string) bool {
	// $argon2id$v=<ver>$m=<mem>,t=<time>,p=<threads>$<salt>$<sum>
	parts := strings.Split(phcHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterTime uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterTime, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, iterTime, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
