// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package apikey

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// prefix identifies Ethos keys in logs and secret scanners.
	prefix = "ethos"

	keyIDBytes  = 8
	secretBytes = 32
	saltBytes   = 16

	// argon2id parameters: 1 pass, 64 MiB, 4 lanes, 32-byte output.
	// Verification happens once per authenticated request, so the
	// cost is chosen to be negligible per request but expensive for
	// offline brute force of a leaked hash.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// base32 without padding keeps the key free of '=' characters, which
// survive copy/paste and URL encoding poorly.
var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrMalformed reports a key that does not match the expected shape.
// Callers should treat it identically to a verification failure.
var ErrMalformed = errors.New("apikey: malformed key")

// Credential is the server-side record of an issued key. The plaintext
// secret is never stored; only Salt and Hash persist.
type Credential struct {
	// KeyID is the public identifier embedded in the key, hex-encoded.
	KeyID string

	// Salt is the per-credential random salt for the argon2id hash.
	Salt []byte

	// Hash is argon2id(secret, Salt).
	Hash []byte
}

// Generate mints a fresh key and its server-side credential. The
// returned plaintext is shown to the agent exactly once at
// registration; it cannot be recovered from the Credential.
func Generate() (plaintext string, cred Credential, err error) {
	keyID := make([]byte, keyIDBytes)
	if _, err := rand.Read(keyID); err != nil {
		return "", Credential{}, fmt.Errorf("apikey: generating key id: %w", err)
	}
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", Credential{}, fmt.Errorf("apikey: generating secret: %w", err)
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", Credential{}, fmt.Errorf("apikey: generating salt: %w", err)
	}

	encodedSecret := secretEncoding.EncodeToString(secret)
	cred = Credential{
		KeyID: hex.EncodeToString(keyID),
		Salt:  salt,
		Hash:  hashSecret(encodedSecret, salt),
	}
	plaintext = fmt.Sprintf("%s_%s_%s", prefix, cred.KeyID, encodedSecret)
	return plaintext, cred, nil
}

// Parse splits a presented key into its key id and secret. Returns
// ErrMalformed if the key does not have the expected shape. The secret
// is returned still encoded; Verify consumes it as-is.
func Parse(key string) (keyID, secret string, err error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != prefix {
		return "", "", ErrMalformed
	}
	keyID, secret = parts[1], parts[2]
	if len(keyID) != keyIDBytes*2 || secret == "" {
		return "", "", ErrMalformed
	}
	if _, err := hex.DecodeString(keyID); err != nil {
		return "", "", ErrMalformed
	}
	return keyID, secret, nil
}

// Verify reports whether secret (as returned by Parse) matches the
// stored credential. Comparison is constant-time in the hash.
func Verify(cred Credential, secret string) bool {
	computed := hashSecret(secret, cred.Salt)
	return subtle.ConstantTimeCompare(computed, cred.Hash) == 1
}

func hashSecret(encodedSecret string, salt []byte) []byte {
	return argon2.IDKey([]byte(encodedSecret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
