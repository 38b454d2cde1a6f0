package files

import (
	"fmt"
	"os"
	"strings"
)

// ReadString reads the whole file as a string.
func ReadString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return string(data), nil
}

// Line returns the 1-based line of the file, without the line terminator.
func Line(path string, lineNumber int) (string, error) {
	lines, _, err := readLines(path)
	if err != nil {
		return "", err
	}
	if lineNumber < 1 || lineNumber > len(lines) {
		return "", fmt.Errorf("file %q has no line %d", path, lineNumber)
	}
	return lines[lineNumber-1], nil
}

// RewriteLine applies rewrite to the 1-based line of the file and writes the
// file back when the rewrite reports a change. The rewrite receives the line
// without its terminator and returns the replacement plus a changed flag.
func RewriteLine(path string, lineNumber int, rewrite func(string) (string, bool)) (bool, error) {
	lines, info, err := readLines(path)
	if err != nil {
		return false, err
	}
	if lineNumber < 1 || lineNumber > len(lines) {
		return false, fmt.Errorf("file %q has no line %d", path, lineNumber)
	}

	replacement, changed := rewrite(lines[lineNumber-1])
	if !changed {
		return false, nil
	}
	lines[lineNumber-1] = replacement

	content := strings.Join(lines, "\n")
	if info.trailingNewline {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), info.mode); err != nil {
		return false, fmt.Errorf("failed to write file %q: %w", path, err)
	}
	return true, nil
}

type lineInfo struct {
	trailingNewline bool
	mode            os.FileMode
}

func readLines(path string) ([]string, lineInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, lineInfo{}, fmt.Errorf("failed to stat file %q: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lineInfo{}, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	content := string(data)
	info := lineInfo{
		trailingNewline: strings.HasSuffix(content, "\n"),
		mode:            stat.Mode(),
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n"), info, nil
}
