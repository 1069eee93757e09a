// Package gitrepo implements the commit-and-push step over the
// checked-out repository using go-git.
//
// Only files under the translations directory are staged. A clean tree
// is a successful no-op: invoking the committer when the download
// produced no changes must not fail the run. The commit message carries
// the skip-CI marker so the push does not re-trigger the workflow that
// produced it. A push conflict (concurrent update of the branch) is
// returned as-is; there is no merge, rebase, or retry.
package gitrepo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SkipCIMarker is the commit message token that suppresses CI runs.
const SkipCIMarker = "[skip ci]"

// Repo wraps an opened git working copy.
type Repo struct {
	repo *git.Repository
	wt   *git.Worktree
}

// Open opens the repository containing the project root.
func Open(root string) (*Repo, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	return &Repo{repo: repo, wt: wt}, nil
}

// CommitOptions configures one commit of translation updates.
type CommitOptions struct {
	// Dir is the directory to stage, relative to the repository root.
	Dir string
	// Message is the commit message. The skip-CI marker is appended
	// when missing.
	Message string

	AuthorName  string
	AuthorEmail string
}

// EnsureSkipCI appends the skip-CI marker to a message that lacks it.
func EnsureSkipCI(message string) string {
	if strings.Contains(message, SkipCIMarker) {
		return message
	}
	return strings.TrimRight(message, " \n") + " " + SkipCIMarker
}

// Commit stages everything under opts.Dir and commits. When no staged
// change exists the commit is skipped and (false, nil) is returned.
func (r *Repo) Commit(opts CommitOptions) (bool, error) {
	dir := filepath.ToSlash(opts.Dir)

	// Staging a path that is absent from the worktree errors in go-git,
	// and a missing translations dir is just a clean tree.
	if _, err := r.wt.Filesystem.Lstat(dir); err != nil {
		return false, nil
	}
	if err := r.wt.AddWithOptions(&git.AddOptions{Path: dir}); err != nil {
		return false, fmt.Errorf("staging %s: %w", dir, err)
	}

	status, err := r.wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}
	if !hasStagedChanges(status) {
		return false, nil
	}

	_, err = r.wt.Commit(EnsureSkipCI(opts.Message), &git.CommitOptions{
		Author: &object.Signature{
			Name:  opts.AuthorName,
			Email: opts.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// hasStagedChanges reports whether any file is staged for commit.
func hasStagedChanges(status git.Status) bool {
	for _, fs := range status {
		switch fs.Staging {
		case git.Added, git.Modified, git.Deleted, git.Renamed, git.Copied:
			return true
		}
	}
	return false
}

// Push pushes the branch to the remote. An up-to-date remote is a
// successful no-op; any other failure, including a non-fast-forward
// conflict, is surfaced unrecovered.
func (r *Repo) Push(ctx context.Context, remote, branch string) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pushing %s to %s: %w", branch, remote, err)
	}
	return nil
}

// HeadMessage returns the message of the current HEAD commit.
func (r *Repo) HeadMessage() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("reading HEAD commit: %w", err)
	}
	return commit.Message, nil
}
