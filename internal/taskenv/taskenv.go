// Package taskenv provides helpers for discovering Azure Pipelines task metadata.
package taskenv

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spellgate/spellgate/pkg/shared/errors"
)

// LookupFunc fetches environment variables and defaults to os.Getenv.
type LookupFunc func(string) string

// Environment captures canonical pipeline metadata derived from environment variables.
type Environment struct {
	IsPipeline    bool   // IsPipeline reports whether the execution runs inside an Azure Pipelines job.
	CollectionURL string // CollectionURL is the organization collection URL (e.g. https://dev.azure.com/org/).
	Project       string // Project is the team project name.
	Repository    string // Repository is the repository name within the project.
	PullRequestID int    // PullRequestID is the pull request that triggered the run, 0 when absent.
	SourceBranch  string // SourceBranch is the fully qualified source ref (e.g. refs/heads/topic).
	SourcesDir    string // SourcesDir is the local checkout root.
	AccessToken   string // AccessToken is the job OAuth token for the collection.
	BuildID       string // BuildID is the numeric identifier of the running build.
}

// Resolve collects pipeline metadata from the process environment.
func Resolve() Environment {
	return resolveWithLookup(os.Getenv)
}

// resolveWithLookup resolves pipeline metadata with the supplied lookup function.
// See https://learn.microsoft.com/azure/devops/pipelines/build/variables.
func resolveWithLookup(lookup LookupFunc) Environment {
	if lookup == nil {
		lookup = os.Getenv
	}

	prID, _ := strconv.Atoi(lookup("SYSTEM_PULLREQUEST_PULLREQUESTID"))

	return Environment{
		IsPipeline:    lookup("TF_BUILD") != "" || lookup("SYSTEM_TEAMFOUNDATIONCOLLECTIONURI") != "",
		CollectionURL: lookup("SYSTEM_TEAMFOUNDATIONCOLLECTIONURI"),
		Project:       lookup("SYSTEM_TEAMPROJECT"),
		Repository:    lookup("BUILD_REPOSITORY_NAME"),
		PullRequestID: prID,
		SourceBranch:  lookup("SYSTEM_PULLREQUEST_SOURCEBRANCH"),
		SourcesDir:    lookup("BUILD_SOURCESDIRECTORY"),
		AccessToken:   lookup("SYSTEM_ACCESSTOKEN"),
		BuildID:       lookup("BUILD_BUILDID"),
	}
}

// RunID returns a stable identifier for this run, used as the lock owner.
// The build id is preferred so a retried job step re-enters its own lock;
// outside a pipeline a random identifier is generated.
func (e Environment) RunID() string {
	if e.BuildID != "" {
		return "build-" + e.BuildID
	}
	return uuid.NewString()
}

// vsoResult maps a run status onto the pipeline task result values.
func vsoResult(status errors.RunStatus) string {
	switch status {
	case errors.StatusSucceeded:
		return "Succeeded"
	case errors.StatusSucceededWithIssues:
		return "SucceededWithIssues"
	case errors.StatusSkipped:
		return "Skipped"
	default:
		return "Failed"
	}
}

// Complete emits the task completion logging command so the pipeline reflects
// the run status independent of the process exit code. Outside a pipeline it
// emits nothing.
func (e Environment) Complete(w io.Writer, status errors.RunStatus) {
	if !e.IsPipeline {
		return
	}
	fmt.Fprintf(w, "##vso[task.complete result=%s;]%s\n", vsoResult(status), status)
}

// LogIssue emits a warning or error logging command visible in the pipeline summary.
func (e Environment) LogIssue(w io.Writer, issueType, message string) {
	if !e.IsPipeline {
		return
	}
	if issueType != "error" {
		issueType = "warning"
	}
	fmt.Fprintf(w, "##vso[task.logissue type=%s;]%s\n", issueType, strings.ReplaceAll(message, "\n", " "))
}
