package keystore

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGet_NoKeyFile(t *testing.T) {
	ks := New(filepath.Join(t.TempDir(), ".key"))
	if _, err := ks.Get(); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestCreateThenGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".key")
	ks := New(path)

	created, err := ks.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(created)
	if err != nil {
		t.Fatalf("key is not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("key is %d bytes, want 32", len(raw))
	}

	got, err := ks.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != created {
		t.Fatalf("get = %q, want the created key", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("key file mode = %o, want 0600", perm)
		}
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	ks := New(filepath.Join(t.TempDir(), ".key"))
	first, err := ks.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ks.Create(); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("err = %v, want ErrKeyExists", err)
	}
	// The original key must survive the rejected attempt.
	got, err := ks.Get()
	if err != nil || got != first {
		t.Fatalf("get = %q, %v; want the original key", got, err)
	}
}

func TestGetOrCreate(t *testing.T) {
	ks := New(filepath.Join(t.TempDir(), ".key"))

	key, created, err := ks.GetOrCreate()
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !created || key == "" {
		t.Fatalf("first call: key=%q created=%v, want a fresh key", key, created)
	}

	again, created, err := ks.GetOrCreate()
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created || again != key {
		t.Fatalf("second call: key=%q created=%v, want the stored key back", again, created)
	}
}

func TestGet_IgnoresCommentsAndOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".key")
	content := "# header comment\nOTHER_VAR=nope\nENCRYPTION_KEY=s3cret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := New(path).Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("get = %q, want s3cret", got)
	}
	if strings.Contains(got, "\n") {
		t.Fatal("key must be a single line")
	}
}
