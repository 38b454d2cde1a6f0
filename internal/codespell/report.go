// Package codespell invokes the external spell-checking tool and parses its
// line-oriented report into structured findings.
package codespell

// Finding is a single misspelling occurrence reported by the tool.
// Identity across runs is (Path, Line, Word); the suggestion list is
// deliberately excluded so re-derived or re-ordered candidates still
// describe the same finding.
type Finding struct {
	Path        string   `json:"path"`      // relative path, forward slashes
	Line        int      `json:"line"`      // 1-based line number
	Word        string   `json:"word"`      // the misspelled token
	Suggestions []string `json:"sugg"`      // ordered candidate replacements, never empty
	LineText    string   `json:"line_text"` // full text of the containing line at detection time
}

// Report aggregates one tool invocation.
type Report struct {
	Findings   []Finding // misspellings still present after the run
	FixedFiles []string  // files rewritten in place by the tool's auto-fix mode
	Warnings   []string  // WARNING lines surfaced by the tool
	Errors     []string  // ERROR lines surfaced by the tool
}
