package identity

import "testing"

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.Com "); got != "a@x.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Ada   \t Lovelace "); got != "Ada Lovelace" {
		t.Fatalf("NormalizeName=%q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	if !IsConflict(ConflictError{Op: "x", Field: "email"}) {
		t.Fatalf("ConflictError must classify as conflict")
	}
	if !IsNotFound(NotFoundError{Op: "x", Resource: "user"}) {
		t.Fatalf("NotFoundError must classify as not found")
	}
	if !IsInvalidCredentials(OpError{Op: "x", Kind: ErrInvalidCredentials}) {
		t.Fatalf("OpError kind must unwrap")
	}
	if IsInvalidInput(OpError{Op: "x", Kind: ErrNotFound}) {
		t.Fatalf("unexpected invalid_input classification")
	}
}
