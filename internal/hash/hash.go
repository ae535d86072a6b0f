package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	memoryKiB   = 40 * 1024
	iterations  = 4
	parallelism = 4
	saltSize    = 16
	keySize     = 32
)

// Argon2Hasher derives password hashes with Argon2id. The parameters are
// fixed for the deployment, changing them invalidates every stored hash.
type Argon2Hasher struct{}

func (Argon2Hasher) Hash(password string) (string, []byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", nil, fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, parallelism, keySize)
	return base64.StdEncoding.EncodeToString(sum), salt, nil
}

func (Argon2Hasher) Verify(password, encodedHash string, salt []byte) bool {
	stored, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil || len(salt) == 0 {
		return false
	}

	sum := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, parallelism, keySize)
	return subtle.ConstantTimeCompare(sum, stored) == 1
}
