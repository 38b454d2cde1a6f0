// Package reconcile implements the pull-request suggestion reconciliation
// engine: matching current spell-check findings against existing review
// threads, resolving stale threads, staging the commit that makes new
// suggestions visible as diffs, opening suggestion threads, and processing
// human reply-commands.
package reconcile

import (
	"strings"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
)

// NormalizePath maps both the platform's and the local filesystem's path
// spellings onto one canonical form: forward slashes, no leading "./" and no
// leading "/". Normalization is idempotent.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// SamePath compares two paths under normalization.
func SamePath(a, b string) bool {
	return NormalizePath(a) == NormalizePath(b)
}

// IsThreadForFinding reports whether the thread is this engine's live thread
// for the finding. True only when the thread is not deleted, still active,
// carries a comment authored by the engine identity, embeds a finding, and
// that finding's (path, line, word) triple equals the candidate's. The
// suggestion lists are deliberately not compared.
func IsThreadForFinding(userID string, thread azuredevops.Thread, finding codespell.Finding) bool {
	if thread.IsDeleted || thread.Status != azuredevops.ThreadStatusActive {
		return false
	}
	if !thread.HasCommentBy(userID) {
		return false
	}

	embedded, ok := EmbeddedFinding(thread)
	if !ok {
		return false
	}
	return SamePath(embedded.Path, finding.Path) &&
		embedded.Line == finding.Line &&
		embedded.Word == finding.Word
}
