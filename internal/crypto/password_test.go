package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("chalk-and-slate-9")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if hash == "chalk-and-slate-9" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if err := CheckPassword(hash, "chalk-and-slate-9"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}
	if err := CheckPassword(hash, "chalk-and-slate-8"); err == nil {
		t.Fatalf("expected wrong password to be rejected")
	}
	if err := CheckPassword("", "chalk-and-slate-9"); err == nil {
		t.Fatalf("expected empty hash to be rejected")
	}
}
