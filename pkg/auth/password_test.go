package auth

import (
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret", "") {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestHasherMatchesPackageFunctions(t *testing.T) {
	var h Hasher
	hash, err := h.Hash("guest_1700000000000_1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Verify("guest_1700000000000_1234", hash) {
		t.Fatalf("expected verify to pass")
	}
	if !CheckPassword("guest_1700000000000_1234", hash) {
		t.Fatalf("expected CheckPassword to accept Hasher output")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("demo1234"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("12345"); err == nil {
		t.Fatalf("expected short password to fail")
	}
	if err := ValidatePassword("      "); err == nil {
		t.Fatalf("expected blank password to fail")
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); err == nil {
		t.Fatalf("expected overlong password to fail")
	}
}
