package crypto

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret#1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Secret#1" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := h.Compare(hash, "Secret#1"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "Secret#2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestBcryptHasher_CompareRejectsInputPastLimit(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	password := "Secret#1" + strings.Repeat("a", 64)

	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(hash, password); err != nil {
		t.Errorf("expected a 72-byte password to match, got %v", err)
	}
	if err := h.Compare(hash, password+"TOTALLY-DIFFERENT-SUFFIX"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch for a longer candidate, got %v", err)
	}
}

func TestBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewBcryptHasher(1)
	if h.cost != bcrypt.DefaultCost {
		t.Errorf("expected default cost, got %d", h.cost)
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	err := h.Compare("not-a-hash", "whatever")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected a non-mismatch error for malformed hash, got %v", err)
	}
}

func TestUUIDGenerator_Unique(t *testing.T) {
	g := NewUUIDGenerator()
	a, _ := g.NewID()
	b, _ := g.NewID()
	if a == b {
		t.Fatal("ids must be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("id is not a uuid: %v", err)
	}
}
