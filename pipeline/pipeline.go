// Package pipeline implements the synchronization sequence between the
// repository and the translation service:
//
//	gate → upload → (schedule/manual only) download → commit
//
// The sequence is strictly linear. The gate checks the service
// credential: when it is absent every stage is skipped and the run
// still succeeds (a soft skip, not a failure). The download stage never
// runs on a push trigger, so a push-triggered upload cannot feed its
// own output back into the repository. The commit stage runs only when
// the download stage ran. The first stage error aborts the run; there
// are no retries and no compensation for partially completed runs.
//
// Which stages run is decided up front by Decide, a pure function, so
// the gating rules are testable apart from the side-effecting stages.
package pipeline

import (
	"context"
	"fmt"
	"os"
)

// TriggerKind is the reason a run was started.
type TriggerKind string

const (
	// TriggerScheduled is a timer-driven run.
	TriggerScheduled TriggerKind = "schedule"
	// TriggerManual is an explicit dispatch by a person.
	TriggerManual TriggerKind = "manual"
	// TriggerPush is a run caused by a content push. Push runs upload
	// only, to avoid the push→upload→download→push feedback loop.
	TriggerPush TriggerKind = "push"
)

// ParseTrigger parses a --trigger flag value. "auto" resolves from the
// CI environment.
func ParseTrigger(s string) (TriggerKind, error) {
	switch s {
	case "auto", "":
		return DetectTrigger(), nil
	case "push":
		return TriggerPush, nil
	case "schedule":
		return TriggerScheduled, nil
	case "manual":
		return TriggerManual, nil
	default:
		return "", fmt.Errorf("unknown trigger %q (valid: auto, push, schedule, manual)", s)
	}
}

// DetectTrigger resolves the trigger kind from the CI environment.
// Outside CI (or for an unrecognized event) it returns TriggerManual,
// so a local invocation behaves like a manual dispatch.
func DetectTrigger() TriggerKind {
	switch os.Getenv("GITHUB_EVENT_NAME") {
	case "push":
		return TriggerPush
	case "schedule":
		return TriggerScheduled
	default:
		return TriggerManual
	}
}

// Plan says which stages a run will execute.
type Plan struct {
	Upload   bool
	Download bool
	Commit   bool
}

// Decide is the pure gating function. credentialPresent is the secret
// gate result; trigger is the run's trigger kind.
func Decide(credentialPresent bool, trigger TriggerKind) Plan {
	if !credentialPresent {
		return Plan{}
	}
	plan := Plan{Upload: true}
	if trigger == TriggerScheduled || trigger == TriggerManual {
		plan.Download = true
		plan.Commit = true
	}
	return plan
}

// Uploader sends the source-locale strings to the translation service.
type Uploader interface {
	UploadSource(ctx context.Context) error
}

// Downloader fetches all locales from the service and overwrites the
// local resource files wholesale. It reports how many files changed.
type Downloader interface {
	DownloadAll(ctx context.Context) (changed int, err error)
}

// Committer stages the translation files, commits with the skip-CI
// marker, and pushes. It reports whether a commit was produced; a clean
// working tree is a successful no-op.
type Committer interface {
	CommitAndPush(ctx context.Context) (committed bool, err error)
}

// Result reports which stages of a run actually happened.
type Result struct {
	// Skipped is true when the secret gate short-circuited the run.
	Skipped bool
	// Uploaded is true once the upload stage succeeded.
	Uploaded bool
	// Downloaded is true once the download stage succeeded.
	Downloaded bool
	// ChangedFiles is the number of resource files the download rewrote
	// with different content.
	ChangedFiles int
	// Committed is true when the commit stage produced a commit.
	Committed bool
}

// Runner executes a Plan over injected collaborators.
type Runner struct {
	Uploader   Uploader
	Downloader Downloader
	Committer  Committer

	// OnLog receives progress messages. Optional.
	OnLog func(format string, args ...any)
}

func (r *Runner) logf(format string, args ...any) {
	if r.OnLog != nil {
		r.OnLog(format, args...)
	}
}

// Run executes the plan stage by stage, stopping at the first error.
// Later stages of an aborted run are simply never reached; no rollback
// is attempted.
func (r *Runner) Run(ctx context.Context, plan Plan) (Result, error) {
	var res Result

	if !plan.Upload {
		r.logf("credential not configured, skipping synchronization")
		res.Skipped = true
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := r.Uploader.UploadSource(ctx); err != nil {
		return res, fmt.Errorf("upload: %w", err)
	}
	res.Uploaded = true
	r.logf("uploaded source strings")

	if !plan.Download {
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	changed, err := r.Downloader.DownloadAll(ctx)
	if err != nil {
		return res, fmt.Errorf("download: %w", err)
	}
	res.Downloaded = true
	res.ChangedFiles = changed
	r.logf("downloaded translations, %d file(s) changed", changed)

	if !plan.Commit {
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	committed, err := r.Committer.CommitAndPush(ctx)
	if err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Committed = committed
	if committed {
		r.logf("committed and pushed translation updates")
	} else {
		r.logf("working tree clean, nothing to commit")
	}

	return res, nil
}
