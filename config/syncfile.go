// Package config — .loksync.yaml configuration file support.
//
// When a .loksync.yaml file exists in the project root, its values
// override auto-detection. The service section is the only part that
// cannot be detected and is required for any remote operation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SyncFileName is the configuration file name.
const SyncFileName = ".loksync.yaml"

// syncFile is the top-level .loksync.yaml structure.
type syncFile struct {
	// Name overrides the project name.
	Name string `yaml:"name,omitempty"`
	// TranslationsDir is relative to the project root.
	TranslationsDir string `yaml:"translations_dir,omitempty"`
	// SourceLocale overrides the canonical upload locale (default "en").
	SourceLocale string `yaml:"source_locale,omitempty"`
	// Locales overrides locale auto-detection.
	Locales []string `yaml:"locales,omitempty"`

	Service struct {
		BaseURL string `yaml:"base_url"`
		Project string `yaml:"project"`
	} `yaml:"service"`

	Git struct {
		Remote        string `yaml:"remote,omitempty"`
		Branch        string `yaml:"branch,omitempty"`
		AuthorName    string `yaml:"author_name,omitempty"`
		AuthorEmail   string `yaml:"author_email,omitempty"`
		CommitMessage string `yaml:"commit_message,omitempty"`
	} `yaml:"git,omitempty"`
}

// loadSyncFile loads and validates .loksync.yaml from the given
// directory. Returns nil if no .loksync.yaml exists.
func loadSyncFile(rootDir string) (*syncFile, error) {
	path := filepath.Join(rootDir, SyncFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var sf syncFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if sf.Service.BaseURL != "" && sf.Service.Project == "" {
		return nil, fmt.Errorf("%s: service.base_url is set but service.project is missing", path)
	}
	if sf.Service.Project != "" && sf.Service.BaseURL == "" {
		return nil, fmt.Errorf("%s: service.project is set but service.base_url is missing", path)
	}

	return &sf, nil
}

// apply overlays file values onto a detected project.
func (sf *syncFile) apply(p *Project) {
	if sf.Name != "" {
		p.Name = sf.Name
	}
	if sf.TranslationsDir != "" {
		p.TranslationsDir = filepath.Join(p.Root, sf.TranslationsDir)
	}
	if sf.SourceLocale != "" {
		p.SourceLocale = sf.SourceLocale
	}
	if len(sf.Locales) > 0 {
		p.Locales = sf.Locales
	}

	p.Service.BaseURL = sf.Service.BaseURL
	p.Service.Project = sf.Service.Project

	if sf.Git.Remote != "" {
		p.Git.Remote = sf.Git.Remote
	}
	if sf.Git.Branch != "" {
		p.Git.Branch = sf.Git.Branch
	}
	if sf.Git.AuthorName != "" {
		p.Git.AuthorName = sf.Git.AuthorName
	}
	if sf.Git.AuthorEmail != "" {
		p.Git.AuthorEmail = sf.Git.AuthorEmail
	}
	if sf.Git.CommitMessage != "" {
		p.Git.CommitMessage = sf.Git.CommitMessage
	}
}
