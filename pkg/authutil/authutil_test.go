package authutil

import "testing"

func TestHashAndVerify(t *testing.T) {
	salt, err := GenerateSalt(16)
	if err != nil {
		t.Fatalf("salt generation failed: %v", err)
	}
	if len(salt) != 32 {
		t.Fatalf("salt length = %d, want 32 hex chars", len(salt))
	}

	hash := HashPassword("secret", salt)
	if !VerifyPassword("secret", hash, salt) {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword("wrong", hash, salt) {
		t.Fatalf("wrong password accepted")
	}
	if VerifyPassword("secret", hash, "othersalt") {
		t.Fatalf("wrong salt accepted")
	}
}

func TestHashIsDeterministicPerSalt(t *testing.T) {
	if HashPassword("pw", "salt") != HashPassword("pw", "salt") {
		t.Fatalf("hash not deterministic")
	}
	if HashPassword("pw", "salt1") == HashPassword("pw", "salt2") {
		t.Fatalf("different salts yield same hash")
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	a, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	b, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("token length = %d, want 64", len(a))
	}
	if a == b {
		t.Fatalf("two tokens identical")
	}
}
