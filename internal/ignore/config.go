// Package ignore reads and appends to the codespell ignore configuration:
// an INI-style section holding a comma-separated skip-path list and a
// comma-separated ignore-word list. All other file content is preserved
// byte for byte across rewrites.
package ignore

import (
	"fmt"
	"os"
	"strings"
)

const (
	sectionHeader  = "[codespell]"
	skipKey        = "skip"
	ignoreWordsKey = "ignore-words-list"
)

// Config is the loaded ignore configuration of one checkout.
type Config struct {
	path            string
	lines           []string
	trailingNewline bool
}

// Load reads the configuration file at path. A missing file surfaces the
// underlying os error so callers can treat absent configuration as a
// deliberate skip.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore configuration %q: %w", path, err)
	}

	content := string(data)
	cfg := &Config{
		path:            path,
		trailingNewline: strings.HasSuffix(content, "\n"),
	}
	cfg.lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	return cfg, nil
}

// Path returns the file path the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SkipPatterns returns the ordered skip-path patterns.
func (c *Config) SkipPatterns() []string {
	return c.values(skipKey)
}

// IgnoreWords returns the ordered globally ignored words.
func (c *Config) IgnoreWords() []string {
	return c.values(ignoreWordsKey)
}

// AppendSkip appends a skip pattern and persists the file. It reports false
// without touching the file when the pattern is already present.
func (c *Config) AppendSkip(pattern string) (bool, error) {
	return c.appendValue(skipKey, pattern)
}

// AppendIgnoreWord appends a word to the global ignore list and persists the
// file. It reports false without touching the file when the word is already
// present.
func (c *Config) AppendIgnoreWord(word string) (bool, error) {
	return c.appendValue(ignoreWordsKey, word)
}

// values returns the non-blank comma-separated entries for the key.
func (c *Config) values(key string) []string {
	_, raw, found := c.findKey(key)
	if !found {
		return nil
	}

	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func (c *Config) appendValue(key, value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, fmt.Errorf("refusing to append a blank %s entry", key)
	}

	for _, existing := range c.values(key) {
		if existing == value {
			return false, nil
		}
	}

	idx, raw, found := c.findKey(key)
	switch {
	case found && strings.TrimSpace(raw) == "":
		c.lines[idx] = fmt.Sprintf("%s = %s", key, value)
	case found:
		c.lines[idx] = c.lines[idx] + "," + value
	default:
		line := fmt.Sprintf("%s = %s", key, value)
		if end, ok := c.sectionEnd(); ok {
			tail := append([]string{line}, c.lines[end:]...)
			c.lines = append(c.lines[:end:end], tail...)
		} else {
			c.lines = append(c.lines, sectionHeader, line)
		}
	}

	if err := c.save(); err != nil {
		return false, err
	}
	return true, nil
}

// findKey locates the key line inside the codespell section and returns its
// index, raw value and whether it exists.
func (c *Config) findKey(key string) (int, string, bool) {
	inSection := false
	for i, line := range c.lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inSection = trimmed == sectionHeader
			continue
		}
		if !inSection {
			continue
		}
		name, value, ok := splitKeyValue(trimmed)
		if ok && name == key {
			return i, value, true
		}
	}
	return 0, "", false
}

// sectionEnd returns the index just past the last line of the codespell
// section, and whether the section exists at all.
func (c *Config) sectionEnd() (int, bool) {
	start := -1
	for i, line := range c.lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			if start >= 0 {
				return i, true
			}
			if trimmed == sectionHeader {
				start = i
			}
		}
	}
	if start >= 0 {
		return len(c.lines), true
	}
	return 0, false
}

func splitKeyValue(line string) (string, string, bool) {
	for _, sep := range []string{"=", ":"} {
		if idx := strings.Index(line, sep); idx > 0 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
		}
	}
	return "", "", false
}

func (c *Config) save() error {
	content := strings.Join(c.lines, "\n")
	if c.trailingNewline {
		content += "\n"
	}
	if err := os.WriteFile(c.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write ignore configuration %q: %w", c.path, err)
	}
	return nil
}
