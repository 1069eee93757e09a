package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/minios-linux/loksync/config"
	"github.com/minios-linux/loksync/lockfile"
	"github.com/minios-linux/loksync/remote"
)

// fakeService is an in-memory translation service backed by httptest.
type fakeService struct {
	mu           sync.Mutex
	uploads      int
	downloads    int
	lastUpload   map[string]string
	translations map[string]map[string]string

	srv *httptest.Server
}

func newFakeService(t *testing.T, translations map[string]map[string]string) *fakeService {
	t.Helper()
	fs := &fakeService{translations: translations}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		fs.mu.Lock()
		defer fs.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/upload"):
			var req struct {
				Locale  string            `json:"locale"`
				Strings map[string]string `json:"strings"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			fs.uploads++
			fs.lastUpload = req.Strings
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/translations"):
			fs.downloads++
			type result struct {
				LanguageCode string            `json:"language_code"`
				Translations map[string]string `json:"translations"`
			}
			var resp struct {
				Results []result `json:"results"`
			}
			for code, tr := range fs.translations {
				resp.Results = append(resp.Results, result{LanguageCode: code, Translations: tr})
			}
			json.NewEncoder(w).Encode(resp)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeService) counts() (uploads, downloads int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.uploads, fs.downloads
}

// newProjectRepo builds a git checkout with a translations dir, a
// .loksync.yaml pointing at the fake service, and a local bare remote.
func newProjectRepo(t *testing.T, serviceURL string) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "translations"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	en := `{
  "app": {
    "title": "Example"
  },
  "greeting": "Hello {name}"
}
`
	if err := os.WriteFile(filepath.Join(dir, "translations", "en.json"), []byte(en), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	yml := "service:\n  base_url: " + serviceURL + "\n  project: demo\ngit:\n  branch: master\n"
	if err := os.WriteFile(filepath.Join(dir, config.SyncFileName), []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bareDir := t.TempDir()
	if _, err := git.PlainInit(bareDir, true); err != nil {
		t.Fatalf("PlainInit bare: %v", err)
	}
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	if err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}

	return dir
}

// setGlobals points the package-level flags at the fixture and isolates
// the token store and CI env from the host.
func setGlobals(t *testing.T, dir, token string) {
	t.Helper()
	oldRoot, oldToken := rootDir, tokenFlag
	rootDir, tokenFlag = dir, ""
	t.Cleanup(func() { rootDir, tokenFlag = oldRoot, oldToken })

	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("LOKSYNC_TOKEN", token)
	t.Setenv("GITHUB_EVENT_NAME", "")
}

func ruTranslations() map[string]map[string]string {
	return map[string]map[string]string{
		"ru": {
			"app.title": "Пример",
			"greeting":  "Привет {name}",
		},
	}
}

func TestSyncScheduleRunsFullChain(t *testing.T) {
	fs := newFakeService(t, ruTranslations())
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "test-token")

	if err := runSync("schedule"); err != nil {
		t.Fatalf("runSync: %v", err)
	}

	uploads, downloads := fs.counts()
	if uploads != 1 || downloads != 1 {
		t.Fatalf("uploads = %d, downloads = %d, want 1 and 1", uploads, downloads)
	}
	if fs.lastUpload["greeting"] != "Hello {name}" {
		t.Errorf("uploaded strings missing greeting, got %v", fs.lastUpload)
	}

	ru, err := os.ReadFile(filepath.Join(dir, "translations", "ru.json"))
	if err != nil {
		t.Fatalf("ru.json not written: %v", err)
	}
	if !strings.Contains(string(ru), "Привет {name}") {
		t.Errorf("ru.json content = %s", ru)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	if !strings.Contains(commit.Message, "[skip ci]") {
		t.Errorf("commit message %q lacks the skip-CI marker", commit.Message)
	}
}

func TestSyncSecondRunProducesNoNewCommit(t *testing.T) {
	fs := newFakeService(t, ruTranslations())
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "test-token")

	if err := runSync("schedule"); err != nil {
		t.Fatalf("first runSync: %v", err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	first, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	// Identical remote content must leave the tree clean.
	if err := runSync("schedule"); err != nil {
		t.Fatalf("second runSync: %v", err)
	}
	second, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if first.Hash() != second.Hash() {
		t.Fatal("second sync with identical remote content produced a new commit")
	}
}

func TestSyncPushTriggerUploadsOnly(t *testing.T) {
	fs := newFakeService(t, ruTranslations())
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "test-token")

	if err := runSync("push"); err != nil {
		t.Fatalf("runSync: %v", err)
	}

	uploads, downloads := fs.counts()
	if uploads != 1 {
		t.Fatalf("uploads = %d, want 1", uploads)
	}
	if downloads != 0 {
		t.Fatalf("downloads = %d, want 0 on a push trigger", downloads)
	}
	if _, err := os.Stat(filepath.Join(dir, "translations", "ru.json")); !os.IsNotExist(err) {
		t.Fatal("push trigger must not write translated locales")
	}
}

func TestSyncWithoutCredentialIsSoftSkip(t *testing.T) {
	fs := newFakeService(t, ruTranslations())
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "")

	if err := runSync("schedule"); err != nil {
		t.Fatalf("missing credential must not be an error: %v", err)
	}

	uploads, downloads := fs.counts()
	if uploads != 0 || downloads != 0 {
		t.Fatalf("service contacted without a credential: uploads = %d, downloads = %d", uploads, downloads)
	}
	if _, err := os.Stat(filepath.Join(dir, "translations", "ru.json")); !os.IsNotExist(err) {
		t.Fatal("no files may change without a credential")
	}
}

func TestUploaderRecordsLockChecksums(t *testing.T) {
	fs := newFakeService(t, nil)
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "test-token")

	proj, err := loadProject()
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}
	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}
	client := remote.NewClient(proj.Service.BaseURL, proj.Service.Project, "test-token")
	up := &serviceUploader{proj: proj, client: client, lock: lock}

	if err := up.UploadSource(context.Background()); err != nil {
		t.Fatalf("UploadSource: %v", err)
	}

	// Freshly recorded checksums mean nothing is pending.
	reloaded, err := lockfile.Load(proj.Root)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	src := map[string]string{"app.title": "Example", "greeting": "Hello {name}"}
	if changed := reloaded.FilterChanged(sourceTarget(proj), src); len(changed) != 0 {
		t.Fatalf("pending after upload = %v, want none", changed)
	}
}

func TestDownloaderSkipsSourceLocale(t *testing.T) {
	translations := ruTranslations()
	translations["en"] = map[string]string{"app.title": "Tampered"}
	fs := newFakeService(t, translations)
	dir := newProjectRepo(t, fs.srv.URL)
	setGlobals(t, dir, "test-token")

	proj, err := loadProject()
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}
	client := remote.NewClient(proj.Service.BaseURL, proj.Service.Project, "test-token")
	down := &serviceDownloader{proj: proj, client: client}

	changed, err := down.DownloadAll(context.Background())
	if err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1 (ru only)", changed)
	}

	en, err := os.ReadFile(proj.ResourcePath("en"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(en), "Tampered") {
		t.Fatal("source locale overwritten by download")
	}
}
