package reconcile

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
	"github.com/spellgate/spellgate/internal/ignore"
	"github.com/spellgate/spellgate/pkg/shared/files"
)

// CommandPrefix is the mention that addresses a reply-command to the engine.
const CommandPrefix = "@spellgate"

// inlineIgnoreMarker is the in-source comment codespell honors to suppress
// findings on the carrying line.
const inlineIgnoreMarker = "codespell:ignore"

// CommandProcessor scans engine-owned threads for reply-commands and applies
// the requested suppressions to the local checkout. A processed command is
// marked by liking it with the engine identity, which survives across runs.
type CommandProcessor struct {
	threads   azuredevops.ThreadsService
	ignore    *ignore.Config
	sourceDir string
	logger    hclog.Logger

	mutated map[string]bool
}

// NewCommandProcessor builds a processor over the given ignore configuration
// and local checkout.
func NewCommandProcessor(threads azuredevops.ThreadsService, ignoreCfg *ignore.Config, sourceDir string, logger hclog.Logger) *CommandProcessor {
	return &CommandProcessor{
		threads:   threads,
		ignore:    ignoreCfg,
		sourceDir: sourceDir,
		logger:    logger.Named("commands"),
		mutated:   make(map[string]bool),
	}
}

// Run processes every pending reply-command on the engine's threads and
// returns the normalized paths it mutated locally so the caller can stage
// them into the fix commit.
func (p *CommandProcessor) Run(userID string, pullRequestID int, threads []azuredevops.Thread) []string {
	for _, thread := range threads {
		if thread.IsDeleted || thread.Status != azuredevops.ThreadStatusActive {
			continue
		}
		finding, ok := EmbeddedFinding(thread)
		if !ok {
			continue
		}
		for _, comment := range thread.Comments {
			p.processComment(userID, pullRequestID, thread, comment, finding)
		}
	}

	paths := make([]string, 0, len(p.mutated))
	for mutatedPath := range p.mutated {
		paths = append(paths, mutatedPath)
	}
	return paths
}

// processComment handles one comment and reports whether it was a command
// this run dealt with, either now or on an earlier run. Commands that fail to
// apply are left unmarked so the next run retries them.
func (p *CommandProcessor) processComment(userID string, pullRequestID int, thread azuredevops.Thread, comment azuredevops.Comment, finding codespell.Finding) bool {
	content := strings.TrimSpace(comment.Content)
	if !strings.HasPrefix(content, CommandPrefix) {
		return false
	}
	if comment.LikedBy(userID) {
		// Already processed on an earlier run.
		return true
	}

	tokens := strings.Fields(strings.ToLower(strings.TrimPrefix(content, CommandPrefix)))
	if len(tokens) == 0 || tokens[0] != "ignore" {
		p.logger.Warn("unrecognized reply-command", "thread", thread.ID, "comment", comment.ID, "content", content)
		return false
	}
	scope := "this"
	if len(tokens) > 1 {
		scope = tokens[1]
	}

	if err := p.applyIgnore(scope, finding); err != nil {
		p.logger.Error("failed to apply reply-command", "thread", thread.ID, "comment", comment.ID, "scope", scope, "error", err)
		return false
	}

	if err := p.threads.LikeComment(pullRequestID, thread.ID, comment.ID); err != nil {
		// The suppression itself succeeded. The unmarked like means the next
		// run re-applies the command, which every scope tolerates.
		p.logger.Error("failed to mark reply-command as processed", "thread", thread.ID, "comment", comment.ID, "error", err)
	}
	p.logger.Info("applied reply-command", "thread", thread.ID, "scope", scope, "word", finding.Word)
	return true
}

// applyIgnore executes one ignore scope against the checkout. Every scope is
// idempotent so a lost processed-marker only costs a no-op re-application.
func (p *CommandProcessor) applyIgnore(scope string, finding codespell.Finding) error {
	switch scope {
	case "this":
		return p.insertInlineMarker(finding, finding.Word)
	case "line":
		return p.insertInlineMarker(finding, "")
	case "word":
		return p.appendIgnoreWord(strings.ToLower(finding.Word))
	case "file":
		return p.appendSkip(NormalizePath(finding.Path))
	case "file-type", "ext":
		ext := path.Ext(NormalizePath(finding.Path))
		if ext == "" {
			return p.appendSkip(NormalizePath(finding.Path))
		}
		return p.appendSkip("*" + ext)
	case "dir":
		return p.appendSkip(path.Dir(NormalizePath(finding.Path)) + "/*")
	default:
		// Any other token is a user-supplied skip glob.
		return p.appendSkip(scope)
	}
}

// insertInlineMarker appends the inline suppression comment to the finding's
// line. With a word the marker targets that word, without one it silences the
// whole line. A line already carrying a marker is left untouched.
func (p *CommandProcessor) insertInlineMarker(finding codespell.Finding, word string) error {
	marker := inlineIgnoreMarker
	if word != "" {
		marker += " " + word
	}

	abs := filepath.Join(p.sourceDir, filepath.FromSlash(NormalizePath(finding.Path)))
	changed, err := files.RewriteLine(abs, finding.Line, func(line string) (string, bool) {
		if strings.Contains(line, inlineIgnoreMarker) {
			return line, false
		}
		return line + "  # " + marker, true
	})
	if err != nil {
		return err
	}
	if changed {
		p.mutated[NormalizePath(finding.Path)] = true
	}
	return nil
}

func (p *CommandProcessor) appendIgnoreWord(word string) error {
	added, err := p.ignore.AppendIgnoreWord(word)
	if err != nil {
		return err
	}
	if added {
		p.markConfigMutated()
	}
	return nil
}

func (p *CommandProcessor) appendSkip(pattern string) error {
	added, err := p.ignore.AppendSkip(pattern)
	if err != nil {
		return err
	}
	if added {
		p.markConfigMutated()
	}
	return nil
}

func (p *CommandProcessor) markConfigMutated() {
	rel, err := filepath.Rel(p.sourceDir, p.ignore.Path())
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(p.ignore.Path())
	}
	p.mutated[NormalizePath(rel)] = true
}
