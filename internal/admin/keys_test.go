package admin

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
)

type failing struct{ err error }

func (f failing) Validate(context.Context, string) (string, error) { return "", f.err }

func TestStatic(t *testing.T) {
	s := NewStatic([]string{"alpha", "", "beta"})
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	name, err := s.Validate(context.Background(), "beta")
	if err != nil || name != "static-2" {
		t.Errorf("Validate(beta) = %q, %v", name, err)
	}
	if _, err := s.Validate(context.Background(), "gamma"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestAny(t *testing.T) {
	ctx := context.Background()
	v := Any{failing{err: ErrInvalidKey}, NewStatic([]string{"alpha"})}
	if name, err := v.Validate(ctx, "alpha"); err != nil || name != "static-1" {
		t.Errorf("Validate(alpha) = %q, %v", name, err)
	}
	if _, err := v.Validate(ctx, "nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}

	boom := errors.New("db down")
	if _, err := (Any{failing{err: boom}}).Validate(ctx, "alpha"); !errors.Is(err, boom) {
		t.Errorf("expected backend error to surface, got %v", err)
	}
}

func TestHashKey(t *testing.T) {
	if got := HashKey("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("HashKey(abc) = %s", got)
	}
}
