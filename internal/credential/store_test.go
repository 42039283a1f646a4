package credential

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv(EnvVar, "")
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "config.json"), "fallback-key-0000", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestReadFallsBackThroughLayers(t *testing.T) {
	store := newTestStore(t)

	value, source := store.Resolve()
	if value != "fallback-key-0000" || source != SourceFallback {
		t.Fatalf("expected fallback, got %q from %s", value, source)
	}

	t.Setenv(EnvVar, "env-key-11111111")
	value, source = store.Resolve()
	if value != "env-key-11111111" || source != SourceEnv {
		t.Fatalf("expected env value, got %q from %s", value, source)
	}

	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte(`{"credential":"file-key-22222222"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	value, source = store.Resolve()
	if value != "file-key-22222222" || source != SourceFile {
		t.Fatalf("expected file value, got %q from %s", value, source)
	}
	if store.Source() != SourceFile {
		t.Fatalf("Source = %s, want %s", store.Source(), SourceFile)
	}
}

func TestReadAcceptsLegacyKeyAndIgnoresBlank(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(store.Path(), []byte(`{"apiKey":"legacy-key-3333"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := store.Read(); got != "legacy-key-3333" {
		t.Fatalf("expected legacy key, got %q", got)
	}

	if err := os.WriteFile(store.Path(), []byte(`{"credential":"   "}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := store.Read(); got != "fallback-key-0000" {
		t.Fatalf("blank file value should fall through, got %q", got)
	}

	if err := os.WriteFile(store.Path(), []byte(`not json`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := store.Read(); got != "fallback-key-0000" {
		t.Fatalf("corrupt file should fall through, got %q", got)
	}
}

func TestUpdatePersistsAndIsVisibleToOtherStores(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte(`{"apiKey":"old-key-44444444","theme":"dark"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := store.Update("  new-key-55555555  "); err != nil {
		t.Fatalf("Update: %v", err)
	}

	other, err := NewStore(store.Path(), "other-fallback", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := other.Read(); got != "new-key-55555555" {
		t.Fatalf("second store should observe update, got %q", got)
	}
	if got := os.Getenv(EnvVar); got != "new-key-55555555" {
		t.Fatalf("process env not updated, got %q", got)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["theme"] != "dark" {
		t.Fatalf("unrelated keys must survive, got %v", doc)
	}
	if _, ok := doc["apiKey"]; ok {
		t.Fatalf("legacy key should be replaced, got %v", doc)
	}
}

func TestUpdateRejectsEmptyAndKeepsPrevious(t *testing.T) {
	store := newTestStore(t)
	if err := store.Update("kept-key-66666666"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, value := range []string{"", "   "} {
		err := store.Update(value)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("Update(%q) expected invalid input, got %v", value, err)
		}
	}
	if got := store.Read(); got != "kept-key-66666666" {
		t.Fatalf("previous credential must survive, got %q", got)
	}
}

func TestUpdateReportsStorageFailure(t *testing.T) {
	t.Setenv(EnvVar, "")
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// parent "directory" is a regular file, so MkdirAll fails
	store, err := NewStore(filepath.Join(blocker, "config.json"), "fallback-key-0000", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = store.Update("some-key-77777777")
	if !errors.Is(err, common.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if got := store.Read(); got != "fallback-key-0000" {
		t.Fatalf("unexpected value after failed update: %q", got)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2b7a280550efbcfb18dc9b5da762990f", "2b7a...990f"},
		{"abcdefgh", "abcd...efgh"},
		{"abcdefg", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		got := Mask(tt.in)
		if got != tt.want {
			t.Fatalf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(tt.in) > 8 && strings.Contains(got, tt.in[4:len(tt.in)-4]) {
			t.Fatalf("Mask(%q) leaked the middle of the secret", tt.in)
		}
	}
}

func TestNewStoreValidates(t *testing.T) {
	if _, err := NewStore("", "x", nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty path, got %v", err)
	}
	if _, err := NewStore("/tmp/x.json", "", nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty fallback, got %v", err)
	}
}
