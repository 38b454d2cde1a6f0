package codespell

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// exitFindings is the exit code the tool uses when misspellings were found.
// Any other nonzero code is a crash and must not be read as "zero findings".
const exitFindings = 65

// Runner configures and executes the external spell-checking tool.
type Runner struct {
	binary string       // Path or name of the tool binary
	logger hclog.Logger // Logger for logging messages and errors
}

// NewRunner creates a new Runner for the given binary.
func NewRunner(binary string, logger hclog.Logger) *Runner {
	if binary == "" {
		binary = "codespell"
	}
	return &Runner{
		binary: binary,
		logger: logger,
	}
}

// RunRequest holds the arguments for one tool invocation.
type RunRequest struct {
	TargetDir    string   // Checkout root; the tool runs with this as working directory
	WriteChanges bool     // Apply unambiguous corrections in place
	SkipPatterns []string // Comma-joined into the tool's skip option
	IgnoreWords  []string // Comma-joined into the tool's ignore-words option
}

// buildArgs translates a request into the tool's command line. The tool is
// asked for minimal-context output with zero surrounding lines so each match
// is preceded by exactly one context line.
func buildArgs(req RunRequest) []string {
	args := []string{"--context", "0", "--disable-colors"}
	if req.WriteChanges {
		args = append(args, "--write-changes")
	}
	if len(req.SkipPatterns) > 0 {
		args = append(args, "--skip", strings.Join(req.SkipPatterns, ","))
	}
	if len(req.IgnoreWords) > 0 {
		args = append(args, "--ignore-words-list", strings.Join(req.IgnoreWords, ","))
	}
	return append(args, ".")
}

// Run executes the tool over the target directory and parses its report.
// An exit code indicating findings is a successful run; any other nonzero
// exit is returned as an error.
func (r *Runner) Run(req RunRequest) (*Report, error) {
	args := buildArgs(req)
	r.logger.Debug("invoking spell checker", "binary", r.binary, "args", args, "dir", req.TargetDir)

	cmd := exec.Command(r.binary, args...)
	cmd.Dir = req.TargetDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code, execErr := classifyExit(runErr)
	if execErr != nil {
		return nil, fmt.Errorf("failed to execute %q: %w", r.binary, execErr)
	}

	report := &Report{}
	var err error
	report.Findings, err = ParseFindings(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool output: %w", err)
	}
	report.FixedFiles, report.Warnings, report.Errors, err = ParseNotices(&stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool notices: %w", err)
	}

	if !exitOK(code) {
		detail := ""
		if len(report.Errors) > 0 {
			detail = ": " + report.Errors[0]
		}
		return nil, fmt.Errorf("spell checker crashed with exit code %d%s", code, detail)
	}

	r.logger.Debug("spell checker finished", "exitCode", code,
		"findings", len(report.Findings), "fixedFiles", len(report.FixedFiles))
	return report, nil
}

// classifyExit extracts the process exit code. Errors that are not exit
// statuses (missing binary, permissions) are returned as-is.
func classifyExit(runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, runErr
}

// exitOK reports whether the exit code means a completed scan, with or
// without findings.
func exitOK(code int) bool {
	return code == 0 || code == exitFindings
}
