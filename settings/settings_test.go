package settings

import (
	"os"
	"path/filepath"
	"testing"
)

const testBaseURL = "https://translate.example.com/api"

func TestFilePathUsesXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	want := filepath.Join(tmp, "loksync", "auth.json")
	if got := FilePath(); got != want {
		t.Fatalf("FilePath() = %q, want %q", got, want)
	}
}

func TestHostKey(t *testing.T) {
	if got := HostKey(testBaseURL); got != "translate.example.com" {
		t.Fatalf("HostKey() = %q", got)
	}
	if got := HostKey("not a url"); got != "not a url" {
		t.Fatalf("HostKey(raw) = %q, want passthrough", got)
	}
}

func TestSetGetRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetToken(testBaseURL, "tok-1234567890"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	path := filepath.Join(tmp, "loksync", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetToken(testBaseURL); got != "tok-1234567890" {
		t.Fatalf("GetToken() = %q", got)
	}

	if err := Remove(testBaseURL); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if got := GetToken(testBaseURL); got != "" {
		t.Fatalf("GetToken after remove = %q, want empty", got)
	}

	if err := Remove("https://missing.example.com"); err != nil {
		t.Fatalf("Remove(missing) should be no-op, got: %v", err)
	}

	if err := SetToken(testBaseURL, "tok"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auth.json should be removed, stat err=%v", err)
	}
}

func TestResolveTokenPriority(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetToken(testBaseURL, "stored-token"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	t.Setenv(TokenEnvVar, "env-token")

	if got := ResolveToken(testBaseURL, "flag-token"); got != "flag-token" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveToken(testBaseURL, ""); got != "env-token" {
		t.Fatalf("env should win over store, got %q", got)
	}

	t.Setenv(TokenEnvVar, "")
	if got := ResolveToken(testBaseURL, ""); got != "stored-token" {
		t.Fatalf("stored token expected, got %q", got)
	}
}

func TestResolveToken_Absent(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	t.Setenv(TokenEnvVar, "")

	if got := ResolveToken(testBaseURL, ""); got != "" {
		t.Fatalf("ResolveToken with nothing configured = %q, want empty", got)
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("short"); got != "****" {
		t.Fatalf("MaskToken(short) = %q", got)
	}
	if got := MaskToken("12345678"); got != "****" {
		t.Fatalf("MaskToken(8 chars) = %q", got)
	}
	if got := MaskToken("123456789"); got != "1234...6789" {
		t.Fatalf("MaskToken(9 chars) = %q", got)
	}
}
