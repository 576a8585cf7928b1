package auth

import (
	"testing"
	"time"
)

func TestIssuerRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Issue("student@college.edu", RoleStudent)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "student@college.edu" || claims.Role != RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}

	ctx, err := FromToken(token)
	if err != nil || ctx.Role != RoleStudent {
		t.Fatalf("client-side decode mismatch: %+v %v", ctx, err)
	}
}

func TestIssuerRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	other := NewIssuer("other-secret", time.Hour)
	foreign, _ := other.Issue("s", RoleStudent)
	if _, err := issuer.Verify(foreign); err == nil {
		t.Fatalf("expected signature failure")
	}

	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }
	stale, _ := issuer.Issue("s", RoleStudent)
	issuer.now = time.Now
	if _, err := issuer.Verify(stale); err == nil {
		t.Fatalf("expected expiry failure")
	}
	if _, err := issuer.Verify(""); err != ErrNoToken {
		t.Fatalf("expected no token, got %v", err)
	}
}
