// loksync: synchronizes translation resources between a repository and a
// remote translation management service.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/loksync/config"
	"github.com/minios-linux/loksync/gitrepo"
	"github.com/minios-linux/loksync/i18n"
	"github.com/minios-linux/loksync/langmeta"
	"github.com/minios-linux/loksync/lockfile"
	"github.com/minios-linux/loksync/pipeline"
	"github.com/minios-linux/loksync/remote"
	"github.com/minios-linux/loksync/resource"
	"github.com/minios-linux/loksync/settings"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir   string
	tokenFlag string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loksync",
		Short: "Synchronize translation resources with a remote service",
		Long: `loksync: keeps i18next-style JSON translation resources in sync with a
remote translation management service.

Designed to run from CI as well as locally. The source-locale file is the
canonical source of truth for keys and is uploaded to the service;
translated locales are downloaded back, written wholesale, and committed
with a skip-CI marker so the push does not re-trigger the workflow.

Commands:
  status      Show project info and translation coverage
  upload      Upload the source locale to the service
  download    Download translated locales from the service
  sync        Full pipeline: upload, then download and commit when the
              trigger allows it
  auth        Manage the stored service token

Without a configured credential (--token, LOKSYNC_TOKEN, or the token
store) the sync is skipped with exit status 0, so forks without secrets
pass CI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&tokenFlag, "token", "", "Service API token (or LOKSYNC_TOKEN env var)")

	root.AddCommand(
		newStatusCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newSyncCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loksync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Project helpers
// ---------------------------------------------------------------------------

func loadProject() (*config.Project, error) {
	proj, err := config.Detect(rootDir)
	if err != nil {
		return nil, err
	}
	if proj.TranslationsDir == "" {
		return nil, fmt.Errorf("no translations directory found under %s (create one or set translations_dir in %s)", rootDir, config.SyncFileName)
	}
	return proj, nil
}

// requireService additionally checks that the remote service is
// configured, which upload/download/sync need and status does not.
func requireService(proj *config.Project) error {
	if proj.Service.BaseURL == "" || proj.Service.Project == "" {
		return fmt.Errorf("remote service not configured: set service.base_url and service.project in %s", config.SyncFileName)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted")
		cancel()
	}()

	return ctx, cancel
}

// ---------------------------------------------------------------------------
// Pipeline collaborators
// ---------------------------------------------------------------------------

// serviceUploader uploads the source-locale resource and records
// checksums in the lock file afterwards.
type serviceUploader struct {
	proj   *config.Project
	client *remote.Client
	lock   *lockfile.LockFile
}

func (u *serviceUploader) UploadSource(ctx context.Context) error {
	src, err := resource.ParseFile(u.proj.ResourcePath(u.proj.SourceLocale))
	if err != nil {
		return fmt.Errorf("reading source locale %s: %w", u.proj.SourceLocale, err)
	}

	entries := src.Flatten()
	target := sourceTarget(u.proj)

	changed := u.lock.FilterChanged(target, entries)
	logInfo("%d of %d source strings changed since last upload", len(changed), len(entries))

	if err := u.client.Upload(ctx, u.proj.SourceLocale, entries); err != nil {
		return err
	}

	u.lock.UpdateBatch(target, entries)
	u.lock.Clean(target, src.Keys())
	if err := u.lock.Save(); err != nil {
		logWarning("Saving %s: %v", lockfile.LockFileName, err)
	}
	return nil
}

// sourceTarget is the lock file key for the source-locale resource.
func sourceTarget(proj *config.Project) string {
	return lockfile.TargetKey(filepath.Join(proj.RelTranslationsDir(), proj.SourceLocale+".json"))
}

// serviceDownloader fetches every locale from the service and rewrites
// the local resource files wholesale, counting the ones that actually
// changed on disk.
type serviceDownloader struct {
	proj   *config.Project
	client *remote.Client
}

func (d *serviceDownloader) DownloadAll(ctx context.Context) (int, error) {
	all, err := d.client.DownloadAll(ctx)
	if err != nil {
		return 0, err
	}

	codes := make([]string, 0, len(all))
	for code := range all {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	changed := 0
	for _, code := range codes {
		locale := langmeta.Canonical(code)
		if locale == d.proj.SourceLocale {
			// The source locale is authoritative locally, never overwritten.
			continue
		}

		file := resource.FromFlat(locale, all[code])
		data, err := file.Marshal()
		if err != nil {
			return changed, fmt.Errorf("encoding %s: %w", locale, err)
		}

		path := d.proj.ResourcePath(locale)
		if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return changed, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return changed, fmt.Errorf("writing %s: %w", path, err)
		}

		meta := langmeta.Resolve(locale)
		logInfo("  %s %s (%s): %d strings", meta.Flag, locale, meta.Name, file.Len())
		changed++
	}

	return changed, nil
}

// repoCommitter commits and pushes translation updates via go-git.
type repoCommitter struct {
	proj *config.Project
}

func (c *repoCommitter) CommitAndPush(ctx context.Context) (bool, error) {
	repo, err := gitrepo.Open(c.proj.Root)
	if err != nil {
		return false, err
	}

	committed, err := repo.Commit(gitrepo.CommitOptions{
		Dir:         c.proj.RelTranslationsDir(),
		Message:     c.proj.Git.CommitMessage,
		AuthorName:  c.proj.Git.AuthorName,
		AuthorEmail: c.proj.Git.AuthorEmail,
	})
	if err != nil || !committed {
		return committed, err
	}

	if err := repo.Push(ctx, c.proj.Git.Remote, c.proj.Git.Branch); err != nil {
		return true, err
	}
	return true, nil
}

func buildRunner(proj *config.Project, token string) (*pipeline.Runner, error) {
	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(proj.Service.BaseURL, proj.Service.Project, token)

	return &pipeline.Runner{
		Uploader:   &serviceUploader{proj: proj, client: client, lock: lock},
		Downloader: &serviceDownloader{proj: proj, client: client},
		Committer:  &repoCommitter{proj: proj},
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
	}, nil
}

// ---------------------------------------------------------------------------
// sync (the full pipeline)
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var trigger string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload, then download and commit when the trigger allows it",
		Long: `Run the full synchronization pipeline.

The source locale is always uploaded first. Whether translations are
downloaded and committed afterwards depends on the trigger kind:

  push       upload only (keeps the service current with new keys)
  schedule   upload, download, commit + push
  manual     upload, download, commit + push
  auto       detect from GITHUB_EVENT_NAME (default)

Without a configured credential the whole run is skipped with exit
status 0. A push conflict on the final commit is fatal; rerun the sync
after the remote settles.

Examples:
  loksync sync                       Auto-detect the trigger from CI env
  loksync sync --trigger schedule    Force the full chain
  loksync sync --trigger push        Upload only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(trigger)
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "auto", "Trigger kind: auto, push, schedule, manual")

	return cmd
}

func runSync(trigger string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	if err := requireService(proj); err != nil {
		return err
	}

	trig, err := pipeline.ParseTrigger(trigger)
	if err != nil {
		return err
	}

	token := settings.ResolveToken(proj.Service.BaseURL, tokenFlag)
	plan := pipeline.Decide(token != "", trig)

	if !plan.Upload {
		logWarning(i18n.T("No credential found, skipping synchronization"))
		return nil
	}

	runner, err := buildRunner(proj, token)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logInfo("Trigger: %s", trig)
	res, err := runner.Run(ctx, plan)
	if err != nil {
		return err
	}

	if res.Downloaded && !res.Committed {
		logInfo(i18n.T("Nothing to commit, working tree clean"))
	}
	logSuccess(i18n.T("Synchronization complete"))
	return nil
}

// ---------------------------------------------------------------------------
// upload (source locale only)
// ---------------------------------------------------------------------------

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the source locale to the service",
		Long: `Upload the source-locale resource file to the remote service.

The source locale is the canonical set of keys; the service reconciles
its own state against it. Skipped with exit status 0 when no credential
is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload()
		},
	}

	return cmd
}

func runUpload() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	if err := requireService(proj); err != nil {
		return err
	}

	token := settings.ResolveToken(proj.Service.BaseURL, tokenFlag)
	if token == "" {
		logWarning(i18n.T("No credential found, skipping synchronization"))
		return nil
	}

	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		return err
	}
	client := remote.NewClient(proj.Service.BaseURL, proj.Service.Project, token)
	uploader := &serviceUploader{proj: proj, client: client, lock: lock}

	ctx, cancel := signalContext()
	defer cancel()

	logInfo(i18n.T("Uploading source locale"))
	if err := uploader.UploadSource(ctx); err != nil {
		return err
	}
	logSuccess("Uploaded %s", proj.SourceLocale)
	return nil
}

// ---------------------------------------------------------------------------
// download (all translated locales)
// ---------------------------------------------------------------------------

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download translated locales from the service",
		Long: `Download every locale from the remote service and rewrite the local
resource files wholesale. Local edits to translated locales are
overwritten; the source locale is never touched.

Skipped with exit status 0 when no credential is configured. Does not
commit; use 'loksync sync' for the full pipeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload()
		},
	}

	return cmd
}

func runDownload() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	if err := requireService(proj); err != nil {
		return err
	}

	token := settings.ResolveToken(proj.Service.BaseURL, tokenFlag)
	if token == "" {
		logWarning(i18n.T("No credential found, skipping synchronization"))
		return nil
	}

	client := remote.NewClient(proj.Service.BaseURL, proj.Service.Project, token)
	downloader := &serviceDownloader{proj: proj, client: client}

	ctx, cancel := signalContext()
	defer cancel()

	logInfo(i18n.T("Downloading translations"))
	changed, err := downloader.DownloadAll(ctx)
	if err != nil {
		return err
	}
	logSuccess(i18n.N("Updated %d file", "Updated %d files", changed), changed)
	return nil
}

// ---------------------------------------------------------------------------
// status (read-only: project info + coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project info and translation coverage",
		Long: `Show the detected project structure and per-locale translation coverage.

Also reports how many source strings changed since the last upload, based
on the checksums recorded in ` + lockfile.LockFileName + `. Does not
modify any files and does not contact the service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}

	return cmd
}

func runStatus() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}

	// Project info header
	fmt.Fprintf(os.Stderr, "\n%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	fmt.Fprintf(os.Stderr, "  Name:       %s\n", proj.Name)
	fmt.Fprintf(os.Stderr, "  Root:       %s\n", proj.Root)
	fmt.Fprintf(os.Stderr, "  Trans dir:  %s\n", proj.RelTranslationsDir())
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", proj.SourceLocale)

	if proj.Service.BaseURL != "" {
		fmt.Fprintf(os.Stderr, "  Service:    %s (project %s)\n", proj.Service.BaseURL, proj.Service.Project)
		if settings.ResolveToken(proj.Service.BaseURL, tokenFlag) != "" {
			fmt.Fprintf(os.Stderr, "  Credential: configured\n")
		} else {
			fmt.Fprintf(os.Stderr, "  Credential: not configured (sync will be skipped)\n")
		}
	} else {
		fmt.Fprintf(os.Stderr, "  Service:    not configured\n")
	}

	fmt.Fprintln(os.Stderr)

	src, err := resource.ParseFile(proj.ResourcePath(proj.SourceLocale))
	if err != nil {
		logWarning("Source locale %s unreadable: %v", proj.SourceLocale, err)
		return nil
	}

	logInfo(i18n.N("Found %d translation file", "Found %d translation files", len(proj.Locales)), len(proj.Locales))

	// Coverage table
	fmt.Fprintf(os.Stderr, "\n%sTranslation Coverage%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))
	fmt.Fprintf(os.Stderr, "%-12s %-20s %-12s %-8s\n", "Locale", "Language", "Translated", "Percent")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))

	for _, locale := range proj.TargetLocales() {
		meta := langmeta.Resolve(locale)
		name := meta.Name
		if name == "" {
			name = "Unknown"
		}

		file, err := resource.ParseFile(proj.ResourcePath(locale))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-12s %-20s %-12s %-8s\n", locale, name, "missing", "-")
			continue
		}

		total, translated, _ := file.Coverage(src)
		percent := 0
		if total > 0 {
			percent = translated * 100 / total
		}
		fmt.Fprintf(os.Stderr, "%-12s %-20s %-12s %d%%\n", locale, name, fmt.Sprintf("%d/%d", translated, total), percent)
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))
	fmt.Fprintf(os.Stderr, "Source strings: %d\n", src.Len())

	// Pending changes since last upload
	lock, err := lockfile.Load(proj.Root)
	if err == nil {
		changed := lock.FilterChanged(sourceTarget(proj), src.Flatten())
		if len(changed) > 0 {
			fmt.Fprintln(os.Stderr)
			logInfo("%d source strings changed since last upload", len(changed))
		}
	}

	fmt.Fprintln(os.Stderr)
	return nil
}

// ---------------------------------------------------------------------------
// auth (token management)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored service token",
		Long: `Manage the service API token stored in ` + settings.FilePath() + `.

The token lookup order at run time is: --token flag, then the
` + settings.TokenEnvVar + ` environment variable, then the store. CI
runs normally use the environment variable; the store is for local use.

Examples:
  loksync auth login                     Prompt for a token
  loksync auth login --url https://translate.example.com/api
  loksync auth logout                    Remove the token for this project's service
  loksync auth logout --all              Remove all stored tokens
  loksync auth list                      Show stored tokens (masked)`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// serviceURL resolves the base URL for auth commands: the --url flag
// wins, otherwise the project configuration.
func serviceURL(urlFlag string) (string, error) {
	if urlFlag != "" {
		return urlFlag, nil
	}
	proj, err := config.Detect(rootDir)
	if err == nil && proj.Service.BaseURL != "" {
		return proj.Service.BaseURL, nil
	}
	return "", fmt.Errorf("no service URL: pass --url or set service.base_url in %s", config.SyncFileName)
}

func newAuthLoginCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a service API token",
		Long: `Store an API token for the remote translation service.

Reads the token from --token or prompts for it on stdin. The token is
stored per service host, so multiple services can be authenticated at
once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := serviceURL(url)
			if err != nil {
				return err
			}

			token := tokenFlag
			if token == "" {
				fmt.Fprintf(os.Stderr, "Enter API token for %s: ", settings.HostKey(baseURL))
				scanner := bufio.NewScanner(os.Stdin)
				if !scanner.Scan() {
					return fmt.Errorf("no input received")
				}
				token = strings.TrimSpace(scanner.Text())
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}

			if err := settings.SetToken(baseURL, token); err != nil {
				return err
			}
			logSuccess("%s (%s)", i18n.T("Token saved"), settings.MaskToken(token))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Service base URL (default: from project config)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var (
		url string
		all bool
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess(i18n.T("Token removed"))
				return nil
			}

			baseURL, err := serviceURL(url)
			if err != nil {
				return err
			}
			if err := settings.Remove(baseURL); err != nil {
				return err
			}
			logSuccess(i18n.T("Token removed"))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Service base URL (default: from project config)")
	cmd.Flags().BoolVar(&all, "all", false, "Remove all stored tokens")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored tokens (masked)",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo(i18n.T("No stored tokens"))
				return
			}

			hosts := make([]string, 0, len(store))
			for host := range store {
				hosts = append(hosts, host)
			}
			sort.Strings(hosts)

			fmt.Fprintf(os.Stderr, "\n%sStored tokens%s (%s)\n", colorBlue, colorReset, settings.FilePath())
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, host := range hosts {
				fmt.Fprintf(os.Stderr, "  %-40s %s\n", host, settings.MaskToken(store[host].Token))
			}
			fmt.Fprintln(os.Stderr)
		},
	}

	return cmd
}
