// Package config implements auto-detection of project settings
// (translations directory, locales, source locale) and loading of the
// optional .loksync.yaml configuration file.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSourceLocale is the canonical source-of-truth locale. The
// source-locale file is what gets uploaded to the translation service.
const DefaultSourceLocale = "en"

// Defaults applied when .loksync.yaml leaves git settings unset.
const (
	DefaultRemote        = "origin"
	DefaultBranch        = "main"
	DefaultCommitMessage = "Update translations [skip ci]"
	DefaultAuthorName    = "translations-bot"
	DefaultAuthorEmail   = "translations@minios.dev"
)

// Service identifies the remote translation management service.
type Service struct {
	// BaseURL is the service API root, e.g. https://translate.example.com/api.
	BaseURL string
	// Project is the service-side project identifier.
	Project string
}

// Git holds the committer settings.
type Git struct {
	Remote        string
	Branch        string
	AuthorName    string
	AuthorEmail   string
	CommitMessage string
}

// Project holds the resolved project configuration.
type Project struct {
	// Name is the project name (directory base name unless configured).
	Name string
	// Root is the absolute project root (the git checkout).
	Root string
	// TranslationsDir is the absolute directory holding <locale>.json files.
	TranslationsDir string
	// SourceLocale is the canonical upload locale.
	SourceLocale string
	// Locales detected from existing resource files (source included).
	Locales []string

	Service Service
	Git     Git
}

// ResourcePath returns the path to the resource file for a locale.
func (p *Project) ResourcePath(locale string) string {
	return filepath.Join(p.TranslationsDir, locale+".json")
}

// TargetLocales returns the locales excluding the source locale.
func (p *Project) TargetLocales() []string {
	var out []string
	for _, l := range p.Locales {
		if l != p.SourceLocale {
			out = append(out, l)
		}
	}
	return out
}

// RelTranslationsDir returns the translations dir relative to the
// project root, for git staging and display.
func (p *Project) RelTranslationsDir() string {
	rel, err := filepath.Rel(p.Root, p.TranslationsDir)
	if err != nil {
		return p.TranslationsDir
	}
	return rel
}

// Detect auto-detects project settings from the working directory.
// A .loksync.yaml file, when present, overrides the detected values.
func Detect(rootDir string) (*Project, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	p := &Project{
		Name:         filepath.Base(absRoot),
		Root:         absRoot,
		SourceLocale: DefaultSourceLocale,
		Git: Git{
			Remote:        DefaultRemote,
			Branch:        DefaultBranch,
			AuthorName:    DefaultAuthorName,
			AuthorEmail:   DefaultAuthorEmail,
			CommitMessage: DefaultCommitMessage,
		},
	}

	// Candidate translation directories, most specific first.
	for _, candidate := range []string{
		filepath.Join(absRoot, "translations"),
		filepath.Join(absRoot, "src", "translations"),
		filepath.Join(absRoot, "public", "translations"),
	} {
		if isResourceDir(candidate) {
			p.TranslationsDir = candidate
			break
		}
	}

	sf, err := loadSyncFile(absRoot)
	if err != nil {
		return nil, err
	}
	if sf != nil {
		sf.apply(p)
	}

	if len(p.Locales) == 0 && p.TranslationsDir != "" {
		p.Locales = detectLocales(p.TranslationsDir)
	}

	return p, nil
}

// isResourceDir checks whether a directory contains <locale>.json files.
func isResourceDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if isLocaleCode(strings.TrimSuffix(name, ".json")) {
			return true
		}
	}
	return false
}

// detectLocales finds locale codes from resource file names.
func detectLocales(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var locales []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		locale := strings.TrimSuffix(name, ".json")
		if isLocaleCode(locale) {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)
	return locales
}

// isLocaleCode checks if a string looks like a locale code.
// Supports: en, ru, de, pt-BR, zh-CN (BCP 47 with hyphens).
func isLocaleCode(s string) bool {
	if len(s) == 2 {
		return s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 && len(parts[0]) == 2 && len(parts[1]) >= 2 {
		return parts[0][0] >= 'a' && parts[0][0] <= 'z' &&
			parts[0][1] >= 'a' && parts[0][1] <= 'z'
	}
	return false
}
