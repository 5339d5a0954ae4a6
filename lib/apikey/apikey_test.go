// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package apikey

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateRoundTrip(t *testing.T) {
	plaintext, cred, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.HasPrefix(plaintext, "ethos_") {
		t.Errorf("key %q missing ethos_ prefix", plaintext)
	}

	keyID, secret, err := Parse(plaintext)
	if err != nil {
		t.Fatalf("Parse(generated key): %v", err)
	}
	if keyID != cred.KeyID {
		t.Errorf("parsed key id %q, credential has %q", keyID, cred.KeyID)
	}
	if !Verify(cred, secret) {
		t.Error("Verify rejected the secret it just generated")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	_, cred, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if Verify(cred, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA") {
		t.Error("Verify accepted a wrong secret")
	}
	if Verify(cred, "") {
		t.Error("Verify accepted an empty secret")
	}
}

func TestKeysAreUnique(t *testing.T) {
	k1, c1, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	k2, c2, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if k1 == k2 {
		t.Error("two generated keys are identical")
	}
	if c1.KeyID == c2.KeyID {
		t.Error("two generated key ids are identical")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"ethos",
		"ethos_",
		"ethos_deadbeefdeadbeef",
		"ethos_deadbeefdeadbeef_",
		"other_deadbeefdeadbeef_SECRETSECRET",
		"ethos_nothexnothexnothx_SECRETSECRET",
		"ethos_dead_SECRETSECRET",
		"ethos_deadbeefdeadbeef_SECRET_EXTRA",
	}
	for _, key := range bad {
		if _, _, err := Parse(key); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) = %v, want ErrMalformed", key, err)
		}
	}
}

func TestSecretNotRecoverableFromCredential(t *testing.T) {
	plaintext, cred, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, secret, err := Parse(plaintext)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Contains(string(cred.Hash), secret) || strings.Contains(string(cred.Salt), secret) {
		t.Error("credential contains the plaintext secret")
	}
}
