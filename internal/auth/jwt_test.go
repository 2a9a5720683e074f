package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}
	s := NewJWTSigner(priv, "agent-secrets", 5*time.Minute)

	tok, exp, err := s.IssueToken("flow-builder", []Role{RoleService})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired")
	}

	claims, err := s.ParseAndValidate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != "flow-builder" {
		t.Fatalf("unexpected subject %q", claims.Sub)
	}
	if !hasRole(claims, RoleService) || hasRole(claims, RoleAdmin) {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
}

func TestRejectForeignSigner(t *testing.T) {
	priv1, _, _ := GenerateEd25519()
	priv2, _, _ := GenerateEd25519()
	issuer := NewJWTSigner(priv1, "agent-secrets", time.Minute)
	verifier := NewJWTSigner(priv2, "agent-secrets", time.Minute)

	tok, _, err := issuer.IssueToken("svc", []Role{RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ParseAndValidate(tok); err == nil {
		t.Fatal("token from a different key validated")
	}
}
