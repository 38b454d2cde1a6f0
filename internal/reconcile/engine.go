package reconcile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
	"github.com/spellgate/spellgate/pkg/shared/files"
)

// Engine reconciles the current set of spell-check findings with the
// pull request's existing suggestion threads and source branch content.
type Engine struct {
	Threads azuredevops.ThreadsService
	Pushes  azuredevops.PushesService

	// SourceDir is the local checkout of the PR source branch.
	SourceDir string

	// CommentMode controls whether new suggestion threads are opened.
	CommentMode bool
	// CommitMode controls whether fixes and placeholders are pushed.
	CommitMode bool

	logger hclog.Logger
}

// NewEngine wires a reconciliation engine against the platform gateway.
func NewEngine(threads azuredevops.ThreadsService, pushes azuredevops.PushesService, sourceDir string, commentMode, commitMode bool, logger hclog.Logger) *Engine {
	return &Engine{
		Threads:     threads,
		Pushes:      pushes,
		SourceDir:   sourceDir,
		CommentMode: commentMode,
		CommitMode:  commitMode,
		logger:      logger.Named("reconcile"),
	}
}

// Input gathers everything one reconciliation pass operates on.
type Input struct {
	// UserID is the account id the engine authenticates as.
	UserID string
	// PullRequestID identifies the PR whose threads are reconciled.
	PullRequestID int
	// SourceRefName is the full ref of the PR source branch.
	SourceRefName string
	// BaseCommit is the source branch tip the run checked out. It is used
	// as the explicit old object id of the push so concurrent updates are
	// rejected by the server instead of silently overwritten.
	BaseCommit string

	// Findings is the current spell-check result.
	Findings []codespell.Finding
	// FixedFiles lists paths the checker rewrote in place.
	FixedFiles []string
	// Threads is the PR's current thread listing.
	Threads []azuredevops.Thread
	// ChangedPaths is the set of files the PR itself adds or edits. Findings
	// outside this set never get a thread.
	ChangedPaths []string
	// ExtraEdits lists additional locally mutated paths that should ride
	// along in the push, such as ignore-config edits made by reply-commands.
	ExtraEdits []string
}

// Outcome reports what a reconciliation pass did. Individual operation
// failures are logged and counted rather than aborting the pass.
type Outcome struct {
	ResolvedThreads int
	NewThreads      int
	PushedPaths     []string
	Failures        int
}

// Reconcile runs one full pass: resolve stale threads, stage and push local
// changes, then open threads for findings that do not have one yet.
func (e *Engine) Reconcile(in Input) Outcome {
	var out Outcome

	e.resolveStale(in, &out)

	eligible := e.selectEligible(in)
	staged := e.stageChanges(in, eligible, &out)
	e.push(in, staged, &out)
	e.openThreads(in, eligible, &out)

	return out
}

// resolveStale closes engine-owned active threads whose finding no longer
// occurs. A thread survives only while some current finding has the same
// identity triple.
func (e *Engine) resolveStale(in Input, out *Outcome) {
	for _, thread := range in.Threads {
		if thread.IsDeleted || thread.Status != azuredevops.ThreadStatusActive {
			continue
		}
		if !thread.HasCommentBy(in.UserID) {
			continue
		}
		if _, ok := EmbeddedFinding(thread); !ok {
			continue
		}

		live := false
		for _, f := range in.Findings {
			if IsThreadForFinding(in.UserID, thread, f) {
				live = true
				break
			}
		}
		if live {
			continue
		}

		if err := e.Threads.SetStatus(in.PullRequestID, thread.ID, azuredevops.ThreadStatusFixed); err != nil {
			e.logger.Error("failed to resolve stale suggestion thread", "thread", thread.ID, "error", err)
			out.Failures++
			continue
		}
		e.logger.Debug("resolved stale suggestion thread", "thread", thread.ID)
		out.ResolvedThreads++
	}
}

// selectEligible picks the findings that get a new thread this pass: inside
// the PR's changed set, no live thread yet, deduplicated by identity triple.
func (e *Engine) selectEligible(in Input) []codespell.Finding {
	changed := make(map[string]bool, len(in.ChangedPaths))
	for _, p := range in.ChangedPaths {
		changed[NormalizePath(p)] = true
	}

	seen := make(map[string]bool)
	var eligible []codespell.Finding
	for _, f := range in.Findings {
		if !changed[NormalizePath(f.Path)] {
			e.logger.Debug("finding outside pull request changes, skipping", "path", f.Path, "line", f.Line, "word", f.Word)
			continue
		}

		key := fmt.Sprintf("%s:%d:%s", NormalizePath(f.Path), f.Line, f.Word)
		if seen[key] {
			continue
		}
		seen[key] = true

		covered := false
		for _, thread := range in.Threads {
			if IsThreadForFinding(in.UserID, thread, f) {
				covered = true
				break
			}
		}
		if covered {
			e.logger.Debug("finding already has a live thread, skipping", "path", f.Path, "line", f.Line, "word", f.Word)
			continue
		}
		eligible = append(eligible, f)
	}
	return eligible
}

// stageChanges collects the file contents the push will carry: files the
// checker fixed in place, placeholder substitutions for ambiguous findings,
// and any extra locally mutated paths. Returns normalized path -> content.
func (e *Engine) stageChanges(in Input, eligible []codespell.Finding, out *Outcome) map[string]string {
	if !e.CommitMode {
		return nil
	}

	paths := make(map[string]bool, len(in.FixedFiles)+len(in.ExtraEdits))
	for _, p := range in.FixedFiles {
		paths[NormalizePath(p)] = true
	}
	for _, p := range in.ExtraEdits {
		paths[NormalizePath(p)] = true
	}

	for _, f := range eligible {
		if len(f.Suggestions) < 2 {
			continue
		}
		changed, err := e.substitutePlaceholder(f)
		if err != nil {
			e.logger.Error("failed to substitute placeholder", "path", f.Path, "line", f.Line, "error", err)
			out.Failures++
			continue
		}
		if changed {
			paths[NormalizePath(f.Path)] = true
		}
	}

	staged := make(map[string]string, len(paths))
	for p := range paths {
		content, err := files.ReadString(e.localPath(p))
		if err != nil {
			e.logger.Error("failed to read staged file, leaving it out of the push", "path", p, "error", err)
			out.Failures++
			continue
		}
		staged[p] = content
	}
	return staged
}

// substitutePlaceholder rewrites the finding's line so the word reads
// "word --> cand1|cand2". Idempotent: a line already carrying the
// substitution is left alone, as is a line the word vanished from.
func (e *Engine) substitutePlaceholder(f codespell.Finding) (bool, error) {
	marker := f.Word + " --> "
	return files.RewriteLine(e.localPath(f.Path), f.Line, func(line string) (string, bool) {
		if strings.Contains(line, marker) {
			return line, false
		}
		if !strings.Contains(line, f.Word) {
			return line, false
		}
		return strings.Replace(line, f.Word, placeholderText(f), 1), true
	})
}

func placeholderText(f codespell.Finding) string {
	return f.Word + " --> " + strings.Join(f.Suggestions, "|")
}

func (e *Engine) localPath(p string) string {
	return filepath.Join(e.SourceDir, filepath.FromSlash(NormalizePath(p)))
}

// push sends all staged content as a single commit on top of the checked-out
// tip. A push failure is loud but non-fatal: the next run re-stages the same
// content.
func (e *Engine) push(in Input, staged map[string]string, out *Outcome) {
	if len(staged) == 0 {
		return
	}

	pushPaths := make([]string, 0, len(staged))
	for p := range staged {
		pushPaths = append(pushPaths, p)
	}
	sort.Strings(pushPaths)

	edits := make([]azuredevops.FileEdit, 0, len(pushPaths))
	for _, p := range pushPaths {
		edits = append(edits, azuredevops.FileEdit{Path: p, Content: staged[p]})
	}

	_, err := e.Pushes.Create(azuredevops.NewPush{
		RefName:     in.SourceRefName,
		OldObjectID: in.BaseCommit,
		Comment:     "spellgate: apply spelling fixes",
		Edits:       edits,
	})
	if err != nil {
		e.logger.Error("failed to push spelling fixes", "ref", in.SourceRefName, "paths", pushPaths, "error", err)
		out.Failures++
		return
	}
	e.logger.Info("pushed spelling fixes", "ref", in.SourceRefName, "paths", pushPaths)
	out.PushedPaths = pushPaths
}

// openThreads creates one suggestion thread per eligible finding, anchored to
// the word (or its placeholder) on the finding's line.
func (e *Engine) openThreads(in Input, eligible []codespell.Finding, out *Outcome) {
	if !e.CommentMode {
		return
	}

	for _, f := range eligible {
		thread, err := e.buildThread(f)
		if err != nil {
			e.logger.Error("failed to build suggestion thread", "path", f.Path, "line", f.Line, "error", err)
			out.Failures++
			continue
		}
		if _, err := e.Threads.Create(in.PullRequestID, thread); err != nil {
			e.logger.Error("failed to create suggestion thread", "path", f.Path, "line", f.Line, "error", err)
			out.Failures++
			continue
		}
		e.logger.Debug("created suggestion thread", "path", f.Path, "line", f.Line, "word", f.Word)
		out.NewThreads++
	}
}

func (e *Engine) buildThread(f codespell.Finding) (azuredevops.NewThread, error) {
	encoded, err := EncodeFinding(f)
	if err != nil {
		return azuredevops.NewThread{}, err
	}

	line, anchor := e.anchorFor(f)
	start := strings.Index(line, anchor)
	if start < 0 {
		// The word is gone from the line on disk. Anchor the whole line so
		// the thread still lands somewhere visible.
		anchor = line
		start = 0
	}

	return azuredevops.NewThread{
		Status: azuredevops.ThreadStatusActive,
		Comments: []azuredevops.NewComment{{
			ParentCommentID: 0,
			CommentType:     "text",
			Content:         commentBody(f),
		}},
		ThreadContext: &azuredevops.ThreadContext{
			FilePath:       "/" + NormalizePath(f.Path),
			RightFileStart: &azuredevops.Position{Line: f.Line, Offset: start + 1},
			RightFileEnd:   &azuredevops.Position{Line: f.Line, Offset: start + 1 + len(anchor)},
		},
		Properties: azuredevops.StringProperties(map[string]string{
			SuggestionPropertyKey: encoded,
		}),
	}, nil
}

// anchorFor returns the line text to search in and the token the thread
// anchors. When a placeholder was substituted, the anchor is the placeholder
// so that accepting a suggestion replaces the whole "word --> a|b" run.
func (e *Engine) anchorFor(f codespell.Finding) (line, anchor string) {
	line = f.LineText
	anchor = f.Word

	if current, err := files.Line(e.localPath(f.Path), f.Line); err == nil {
		line = current
	}
	if e.CommitMode && len(f.Suggestions) > 1 {
		if placeholder := placeholderText(f); strings.Contains(line, placeholder) {
			anchor = placeholder
		}
	}
	return line, anchor
}

// commentBody renders the suggestion blocks followed by the reply-command
// help. Each candidate becomes its own suggestion block replacing the
// anchored token.
func commentBody(f codespell.Finding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "`%s` is a possible misspelling.\n", f.Word)
	for _, candidate := range f.Suggestions {
		fmt.Fprintf(&b, "\n```suggestion\n%s\n```\n", candidate)
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "Reply `%s ignore <scope>` to suppress this finding. Scopes:\n", CommandPrefix)
	b.WriteString("- `this` (default): this word on this line only\n")
	b.WriteString("- `line`: everything on this line\n")
	fmt.Fprintf(&b, "- `word`: the word `%s` everywhere\n", strings.ToLower(f.Word))
	fmt.Fprintf(&b, "- `file`: the file `%s`\n", NormalizePath(f.Path))
	b.WriteString("- `file-type`: all files with this extension\n")
	b.WriteString("- `dir`: all files in this directory\n")
	b.WriteString("- any other token: used verbatim as a skip glob\n")

	return b.String()
}
