package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mateit-cloudware/agent-secrets/internal/auth"
	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
)

func newTestServer(t *testing.T) (*Server, string, string) {
	t.Helper()
	cfg := Config{DataDir: t.TempDir()}
	s, err := New(context.Background(), cfg, crypto.NewKeyManager("server-test-secret"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	adminTok, _, err := s.Signer().IssueToken("ops", []auth.Role{auth.RoleAdmin, auth.RoleService})
	if err != nil {
		t.Fatal(err)
	}
	svcTok, _, err := s.Signer().IssueToken("flow-builder", []auth.Role{auth.RoleService})
	if err != nil {
		t.Fatal(err)
	}
	return s, adminTok, svcTok
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthUnauthenticated(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}

func TestEncryptRequiresToken(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/encrypt", "", encryptReq{Plaintext: "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestEncryptDecryptOverHTTP(t *testing.T) {
	s, _, svcTok := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/encrypt", svcTok, encryptReq{Plaintext: "hello", UsePBKDF2: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("encrypt: %d %s", rec.Code, rec.Body.String())
	}
	var encResp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &encResp); err != nil {
		t.Fatal(err)
	}
	env := encResp["envelope"]
	if !strings.HasPrefix(env, "v2:") {
		t.Fatalf("not a current-format envelope: %s", env)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/decrypt", svcTok, decryptReq{Envelope: env, UsePBKDF2: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("decrypt: %d %s", rec.Code, rec.Body.String())
	}
	var decResp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &decResp); err != nil {
		t.Fatal(err)
	}
	if decResp["plaintext"] != "hello" {
		t.Fatalf("round trip mismatch: %q", decResp["plaintext"])
	}
}

func TestDecryptTamperedReturns422(t *testing.T) {
	s, _, svcTok := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/encrypt", svcTok, encryptReq{Plaintext: "x"})
	var encResp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &encResp)
	env := encResp["envelope"]
	// flip a hex digit in the final (ciphertext) field
	mut := []byte(env)
	if mut[len(mut)-1] == '0' {
		mut[len(mut)-1] = '1'
	} else {
		mut[len(mut)-1] = '0'
	}
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/decrypt", svcTok, decryptReq{Envelope: string(mut)})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}
}

func TestRotateRequiresAdmin(t *testing.T) {
	s, adminTok, svcTok := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/rotate", svcTok, rotateReq{NewSecret: "next"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("service token on rotate: want 403, got %d", rec.Code)
	}

	enc := doJSON(t, s.Handler(), http.MethodPost, "/api/encrypt", adminTok, encryptReq{Plaintext: "v"})
	var encResp map[string]string
	_ = json.Unmarshal(enc.Body.Bytes(), &encResp)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/rotate", adminTok, rotateReq{
		Items:     []crypto.RotateItem{{ID: "a", EncryptedData: encResp["envelope"]}},
		NewSecret: "next-secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate: %d %s", rec.Code, rec.Body.String())
	}
	var res crypto.RotateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ItemsProcessed != 1 {
		t.Fatalf("unexpected rotation result: %+v", res)
	}

	hist := doJSON(t, s.Handler(), http.MethodGet, "/api/rotation-history", adminTok, nil)
	if hist.Code != http.StatusOK || !strings.Contains(hist.Body.String(), "startedAt") {
		t.Fatalf("rotation history: %d %s", hist.Code, hist.Body.String())
	}
}

func TestSettingsOverHTTP(t *testing.T) {
	s, _, svcTok := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/settings", svcTok, settingReq{
		Key: "llm_api_key", Type: "secret", Value: "sk-123456789",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create setting: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/settings/llm_api_key", svcTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get setting: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sk-123456789") {
		t.Fatalf("setting value not decrypted: %s", rec.Body.String())
	}

	// listing must mask, not expose
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/settings", svcTok, nil)
	if strings.Contains(rec.Body.String(), "sk-123456789") {
		t.Fatal("secret leaked through listing")
	}
}

func TestCredentialsMaskedOverHTTP(t *testing.T) {
	s, _, svcTok := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/credentials", svcTok, credentialReq{
		Provider: "elevenlabs", Fields: map[string]string{"api_key": "el-secret-123456"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save credentials: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/credentials/elevenlabs", svcTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load credentials: %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "el-secret-123456") {
		t.Fatal("raw credential leaked through admin surface")
	}
	if !strings.Contains(body, "3456") {
		t.Fatalf("expected masked tail in %s", body)
	}
}
