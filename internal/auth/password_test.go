package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(bcrypt.MinCost)
}

func TestHash_BcryptFormat(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("operator-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("Hash() = %q, want a cost-4 bcrypt hash", hash)
	}

	again, _ := ps.Hash("operator-password")
	if hash == again {
		t.Error("Hash() produced identical hashes; salt is missing")
	}
}

func TestHash_PasswordLength(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash() rejected a 72-byte password: %v", err)
	}
	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() accepted a 73-byte password")
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		password  string
		wantErr   bool
		wantMatch bool // error must be ErrInvalidPassword
	}{
		{name: "correct password", hash: hash, password: "correct-horse-battery-staple"},
		{name: "wrong password", hash: hash, password: "Tr0ub4dor&3", wantErr: true, wantMatch: true},
		{name: "empty password", hash: hash, password: "", wantErr: true, wantMatch: true},
		{name: "garbage hash", hash: "not-a-bcrypt-hash", password: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrInvalidPassword) != tt.wantMatch {
				t.Errorf("Verify() error = %v, want ErrInvalidPassword match %v", err, tt.wantMatch)
			}
		})
	}
}
