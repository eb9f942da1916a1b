package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("Passw0rd", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "Passw0rd" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "Passw0rd") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "passw0rd") {
		t.Fatalf("wrong password accepted")
	}
}

func TestVerifyPassword_CorruptHash(t *testing.T) {
	t.Parallel()

	// A corrupt stored hash verifies as false, it never panics.
	if VerifyPassword("not-a-bcrypt-hash", "anything") {
		t.Fatalf("corrupt hash accepted")
	}
}

func TestHashPassword_InvalidCost(t *testing.T) {
	t.Parallel()

	if _, err := HashPassword("Passw0rd", bcrypt.MaxCost+1); err == nil {
		t.Fatalf("expected error for cost above bcrypt maximum")
	}
}
