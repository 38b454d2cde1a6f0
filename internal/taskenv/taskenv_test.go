package taskenv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spellgate/spellgate/pkg/shared/errors"
)

func lookupFromMap(values map[string]string) LookupFunc {
	return func(key string) string {
		return values[key]
	}
}

func TestResolveWithLookup(t *testing.T) {
	env := resolveWithLookup(lookupFromMap(map[string]string{
		"TF_BUILD":                           "True",
		"SYSTEM_TEAMFOUNDATIONCOLLECTIONURI": "https://dev.azure.com/acme/",
		"SYSTEM_TEAMPROJECT":                 "platform",
		"BUILD_REPOSITORY_NAME":              "docs",
		"SYSTEM_PULLREQUEST_PULLREQUESTID":   "42",
		"SYSTEM_PULLREQUEST_SOURCEBRANCH":    "refs/heads/topic",
		"BUILD_SOURCESDIRECTORY":             "/agent/_work/1/s",
		"SYSTEM_ACCESSTOKEN":                 "secret",
		"BUILD_BUILDID":                      "1234",
	}))

	assert.True(t, env.IsPipeline)
	assert.Equal(t, "https://dev.azure.com/acme/", env.CollectionURL)
	assert.Equal(t, "platform", env.Project)
	assert.Equal(t, "docs", env.Repository)
	assert.Equal(t, 42, env.PullRequestID)
	assert.Equal(t, "refs/heads/topic", env.SourceBranch)
	assert.Equal(t, "/agent/_work/1/s", env.SourcesDir)
	assert.Equal(t, "secret", env.AccessToken)
	assert.Equal(t, "build-1234", env.RunID())
}

func TestResolveOutsidePipeline(t *testing.T) {
	env := resolveWithLookup(lookupFromMap(nil))

	assert.False(t, env.IsPipeline)
	assert.Equal(t, 0, env.PullRequestID)

	// no build id: run ids must still be generated and unique
	first, second := env.RunID(), env.RunID()
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestComplete(t *testing.T) {
	env := Environment{IsPipeline: true}
	var buf bytes.Buffer
	env.Complete(&buf, errors.StatusSucceededWithIssues)
	assert.Equal(t, "##vso[task.complete result=SucceededWithIssues;]succeeded-with-issues\n", buf.String())

	buf.Reset()
	Environment{}.Complete(&buf, errors.StatusFailed)
	assert.Empty(t, buf.String())
}

func TestLogIssue(t *testing.T) {
	env := Environment{IsPipeline: true}
	var buf bytes.Buffer
	env.LogIssue(&buf, "bogus", "line one\nline two")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "##vso[task.logissue type=warning;]"))
	assert.NotContains(t, out[len("##vso[task.logissue type=warning;]"):], "\n"+"line")
}
