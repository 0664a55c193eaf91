package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := IssueToken("s3cret", 7, "grace", time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	s, err := ParseToken(tok, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID != 7 || s.Source != SourceJWT {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := ParseToken(tok, "other"); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestExpiredToken(t *testing.T) {
	tok, err := IssueToken("s3cret", 7, "", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(tok, "s3cret"); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestIssueTokenRejects(t *testing.T) {
	if _, err := IssueToken("", 7, "", 0, time.Now()); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := IssueToken("s", 0, "", 0, time.Now()); err == nil {
		t.Fatalf("expected invalid user error")
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserID(context.Background()); !errors.Is(err, ErrAnonymous) {
		t.Fatalf("expected ErrAnonymous, got %v", err)
	}
	ctx := WithSession(context.Background(), Session{UserID: 0, Source: SourceConfig})
	if _, err := UserID(ctx); !errors.Is(err, ErrAnonymous) {
		t.Fatalf("zero user should be anonymous")
	}
	ctx = WithSession(context.Background(), Session{UserID: 3, Source: SourceFlag})
	id, err := UserID(ctx)
	if err != nil || id != 3 {
		t.Fatalf("got %d %v", id, err)
	}
}
