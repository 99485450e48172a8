package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithmID = "argon2id"

// Argon2Parameters controls the cost factors for Argon2id password hashing.
type Argon2Parameters struct {
	// Memory is the amount of memory (in kibibytes) to use.
	Memory uint32
	// Time is the number of iterations.
	Time uint32
	// Threads is the degree of parallelism.
	Threads uint8
	// SaltLength is the random salt size in bytes.
	SaltLength uint32
	// KeyLength is the desired length of the derived key in bytes.
	KeyLength uint32
}

// DefaultArgon2Params returns the cost parameters used for credential password hashes.
func DefaultArgon2Params() Argon2Parameters {
	return Argon2Parameters{
		Memory:     64 * 1024, // 64 MiB
		Time:       4,
		Threads:    3,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate ensures the parameters are suitable for Argon2id hashing.
func (p Argon2Parameters) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("argon2: time cost must be greater than zero")
	}
	if p.Threads == 0 {
		return fmt.Errorf("argon2: parallelism must be greater than zero")
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("argon2: memory cost must be at least 8 * threads")
	}
	if p.SaltLength < 16 {
		return fmt.Errorf("argon2: salt length must be at least 16 bytes")
	}
	if p.KeyLength < 16 {
		return fmt.Errorf("argon2: key length must be at least 16 bytes")
	}
	return nil
}

// HashPassword derives an Argon2id hash of the password and encodes it in
// PHC string format, embedding the salt and cost parameters.
func HashPassword(password string, params Argon2Parameters) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithmID,
		argon2.Version,
		params.Memory,
		params.Time,
		params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives the key with the parameters embedded in the stored
// PHC hash and compares in constant time. Malformed hashes verify as false,
// which makes placeholder credentials unusable for login.
func VerifyPassword(password, encodedHash string) bool {
	memory, time, threads, salt, key, err := decodePHC(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

// UnusablePasswordHash returns a random opaque value that is not a valid PHC
// string, so no password can ever verify against it. Used when a credential is
// provisioned before the student has chosen a password.
func UnusablePasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("argon2: generate placeholder: %w", err)
	}
	return "!" + base64.RawStdEncoding.EncodeToString(buf), nil
}

func decodePHC(encodedHash string) (memory, time uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithmID {
		return 0, 0, 0, nil, nil, errors.New("argon2: invalid PHC format")
	}

	version, convErr := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if convErr != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("argon2: unsupported version")
	}

	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); scanErr != nil {
		return 0, 0, 0, nil, nil, errors.New("argon2: invalid cost parameters")
	}
	if memory == 0 || time == 0 || threads == 0 {
		return 0, 0, 0, nil, nil, errors.New("argon2: invalid cost parameters")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, errors.New("argon2: invalid salt encoding")
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("argon2: invalid key encoding")
	}

	return memory, time, threads, salt, key, nil
}
