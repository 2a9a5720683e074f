package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *crypto.Service, storage.ValueStore) {
	t.Helper()
	svc := crypto.NewService(crypto.NewKeyManager("settings-test-secret"))
	values := storage.NewFileValueStore(t.TempDir())
	return NewStore(svc, values), svc, values
}

func TestSecretStoredEncrypted(t *testing.T) {
	ctx := context.Background()
	store, _, values := newTestStore(t)

	if err := store.Set(ctx, "llm_api_key", TypeSecret, "sk-live-12345"); err != nil {
		t.Fatalf("set: %v", err)
	}

	raw, err := values.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if strings.Contains(raw, "sk-live-12345") {
		t.Fatal("plaintext secret reached the store")
	}
	var rec struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatal(err)
	}
	if !crypto.IsCurrentFormat(rec.Value) {
		t.Fatalf("stored secret not a current-format envelope: %s", rec.Value)
	}

	got, err := store.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "sk-live-12345" || got.Type != TypeSecret {
		t.Fatalf("unexpected setting: %+v", got)
	}
}

func TestPlainSettingUntouched(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	if err := store.Set(ctx, "max_turns", TypeNumber, "25"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "max_turns")
	if err != nil || got.Value != "25" {
		t.Fatalf("get: (%+v, %v)", got, err)
	}
}

func TestLegacySecretMigratedOnRead(t *testing.T) {
	ctx := context.Background()
	store, svc, values := newTestStore(t)

	// simulate a value written by the pre-versioning routine: encrypt with
	// the master key and strip the version tag
	enc, err := svc.Encrypt("old-api-key", false)
	if err != nil {
		t.Fatal(err)
	}
	legacy := strings.TrimPrefix(enc, "v2:")
	b, _ := json.Marshal(map[string]string{"type": "secret", "value": legacy})
	if err := values.Put(ctx, "voice_key", string(b)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "voice_key")
	if err != nil {
		t.Fatalf("get legacy: %v", err)
	}
	if got.Value != "old-api-key" {
		t.Fatalf("legacy value not recovered: %q", got.Value)
	}

	// the stored value must now be upgraded to current format
	raw, err := values.Get(ctx, "voice_key")
	if err != nil {
		t.Fatal(err)
	}
	var rec struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatal(err)
	}
	if !crypto.IsCurrentFormat(rec.Value) {
		t.Fatalf("legacy secret not upgraded: %s", rec.Value)
	}

	// and a second read decrypts through the normal path
	again, err := store.Get(ctx, "voice_key")
	if err != nil || again.Value != "old-api-key" {
		t.Fatalf("re-read after migration: (%+v, %v)", again, err)
	}
}

func TestPlaintextDefaultPassthrough(t *testing.T) {
	ctx := context.Background()
	store, _, values := newTestStore(t)
	b, _ := json.Marshal(map[string]string{"type": "secret", "value": "unencrypted-default"})
	if err := values.Put(ctx, "seeded", string(b)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "seeded")
	if err != nil || got.Value != "unencrypted-default" {
		t.Fatalf("seeded default: (%+v, %v)", got, err)
	}
}

func TestListMasksSecrets(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	if err := store.Set(ctx, "api_key", TypeSecret, "sk-very-secret"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "greeting", TypeString, "hello"); err != nil {
		t.Fatal(err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range list {
		switch item.Key {
		case "api_key":
			if strings.Contains(item.Value, "sk-very-secret") || !strings.Contains(item.Value, "•") {
				t.Fatalf("secret not masked in listing: %q", item.Value)
			}
		case "greeting":
			if item.Value != "hello" {
				t.Fatalf("plain value altered: %q", item.Value)
			}
		}
	}
}

func TestGetMissing(t *testing.T) {
	store, _, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
