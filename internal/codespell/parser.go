package codespell

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// findingPattern matches `<path>:<line>:<context> ==> <comma-separated candidates>`.
var findingPattern = regexp.MustCompile(`^(.+?):(\d+):(.*?)\s*==>\s*(.+)$`)

const (
	fixedPrefix   = "FIXED: "
	warningPrefix = "WARNING: "
	errorPrefix   = "ERROR: "
)

// ParseFindings consumes the tool's stdout. The tool emits a one-line context
// line immediately before each match line, so the parser keeps a one-line
// lookback buffer.
func ParseFindings(r io.Reader) ([]Finding, error) {
	var findings []Finding
	var previous string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if f, ok := parseFindingLine(line, previous); ok {
			findings = append(findings, f)
		}
		previous = line
	}
	if err := scanner.Err(); err != nil {
		return findings, err
	}
	return findings, nil
}

// parseFindingLine parses one stdout line, with lookback holding the line
// emitted just before it.
func parseFindingLine(line, lookback string) (Finding, bool) {
	m := findingPattern.FindStringSubmatch(line)
	if m == nil {
		return Finding{}, false
	}

	lineNumber, err := strconv.Atoi(m[2])
	if err != nil || lineNumber < 1 {
		return Finding{}, false
	}

	suggestions := splitCandidates(m[4])
	if len(suggestions) == 0 {
		return Finding{}, false
	}

	context := strings.TrimSpace(m[3])
	lineText := lookback
	if lineText == "" {
		lineText = context
	}

	word := extractWord(context, lineText, suggestions[0])
	if word == "" {
		return Finding{}, false
	}

	return Finding{
		Path:        strings.TrimSpace(m[1]),
		Line:        lineNumber,
		Word:        word,
		Suggestions: suggestions,
		LineText:    lineText,
	}, true
}

// extractWord determines the misspelled token. When the context group is a
// single token it is the word itself; when the tool echoes the whole source
// line instead, the token closest to the first candidate is picked.
func extractWord(context, lineText, firstCandidate string) string {
	if context != "" && !strings.ContainsAny(context, " \t") {
		return context
	}

	source := context
	if source == "" {
		source = lineText
	}

	best := ""
	bestDistance := -1
	for _, token := range strings.Fields(source) {
		token = strings.Trim(token, ".,;:!?\"'()[]{}")
		if token == "" {
			continue
		}
		d := editDistance(strings.ToLower(token), strings.ToLower(firstCandidate))
		if bestDistance == -1 || d < bestDistance {
			best = token
			bestDistance = d
		}
	}
	return best
}

// splitCandidates splits the comma-separated candidate list, dropping blanks.
func splitCandidates(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// ParseNotices consumes the tool's stderr stream and splits it into
// fixed-file notices, warnings and errors. Unmatched lines are ignored.
func ParseNotices(r io.Reader) (fixed, warnings, errs []string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, fixedPrefix):
			fixed = append(fixed, strings.TrimSpace(strings.TrimPrefix(line, fixedPrefix)))
		case strings.HasPrefix(line, warningPrefix):
			warnings = append(warnings, strings.TrimPrefix(line, warningPrefix))
		case strings.HasPrefix(line, errorPrefix):
			errs = append(errs, strings.TrimPrefix(line, errorPrefix))
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return fixed, warnings, errs, scanErr
	}
	return fixed, warnings, errs, nil
}

// editDistance computes the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	previous := make([]int, len(rb)+1)
	current := make([]int, len(rb)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, min(current[j-1]+1, previous[j-1]+cost))
		}
		previous, current = current, previous
	}
	return previous[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
