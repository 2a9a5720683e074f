package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestMasterKeyNormalization(t *testing.T) {
	short := NewKeyManager("s")
	long := NewKeyManager("a very long operator supplied secret with plenty of entropy in it")
	k1, err := short.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := long.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(k1) != 32 || len(k2) != 32 {
		t.Fatalf("master key lengths %d/%d, want 32", len(k1), len(k2))
	}
	if bytes.Equal(k1, k2) {
		t.Fatal("distinct secrets derived identical keys")
	}
	again, _ := short.MasterKey()
	if !bytes.Equal(k1, again) {
		t.Fatal("master key not stable across calls")
	}
}

func TestMasterKeyMissing(t *testing.T) {
	km := NewKeyManager("")
	if _, err := km.MasterKey(); !errors.Is(err, ErrNoMasterSecret) {
		t.Fatalf("want ErrNoMasterSecret, got %v", err)
	}
}

func TestKeyManagerFromEnv(t *testing.T) {
	t.Setenv("ENCRYPTION_MASTER_KEY", "")
	t.Setenv("SECRETS_ENCRYPTION_KEY", "fallback-secret")
	t.Setenv("APP_SECRET_KEY", "lowest-priority")
	km, err := NewKeyManagerFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	want := NewKeyManager("fallback-secret")
	a, _ := km.MasterKey()
	b, _ := want.MasterKey()
	if !bytes.Equal(a, b) {
		t.Fatal("env precedence not honored")
	}

	t.Setenv("SECRETS_ENCRYPTION_KEY", "")
	t.Setenv("APP_SECRET_KEY", "")
	if _, err := NewKeyManagerFromEnv(); !errors.Is(err, ErrNoMasterSecret) {
		t.Fatalf("want ErrNoMasterSecret with no sources set, got %v", err)
	}
}

func TestOperationKeyModes(t *testing.T) {
	km := NewKeyManager("secret")
	master, err := km.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	plain, err := km.OperationKey(nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, master) {
		t.Fatal("plain mode must return the master key unchanged")
	}

	salt := []byte("0123456789abcdef")
	derived, err := km.OperationKey(salt, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(derived) != 32 || bytes.Equal(derived, master) {
		t.Fatal("pbkdf2 key must differ from the master key")
	}
	same, _ := km.OperationKey(salt, true)
	if !bytes.Equal(derived, same) {
		t.Fatal("pbkdf2 derivation not reproducible for a fixed salt")
	}
	other, _ := km.OperationKey([]byte("fedcba9876543210"), true)
	if bytes.Equal(derived, other) {
		t.Fatal("distinct salts derived identical keys")
	}
}

func TestSwapSecret(t *testing.T) {
	km := NewKeyManager("first")
	before, err := km.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	beforeCopy := append([]byte(nil), before...)
	km.SwapSecret("second")
	after, err := km.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(beforeCopy, after) {
		t.Fatal("swap did not change the master key")
	}
}
