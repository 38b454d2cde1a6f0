package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
)

type fakeThreads struct {
	created   []azuredevops.NewThread
	statuses  map[int]azuredevops.ThreadStatus
	liked     map[int][]int
	createErr error
	statusErr error
	likeErr   error
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{
		statuses: make(map[int]azuredevops.ThreadStatus),
		liked:    make(map[int][]int),
	}
}

func (f *fakeThreads) List(prID int) ([]azuredevops.Thread, error) {
	return nil, nil
}

func (f *fakeThreads) Create(prID int, thread azuredevops.NewThread) (*azuredevops.Thread, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, thread)
	return &azuredevops.Thread{ID: len(f.created)}, nil
}

func (f *fakeThreads) SetStatus(prID, threadID int, status azuredevops.ThreadStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses[threadID] = status
	return nil
}

func (f *fakeThreads) LikeComment(prID, threadID, commentID int) error {
	if f.likeErr != nil {
		return f.likeErr
	}
	f.liked[threadID] = append(f.liked[threadID], commentID)
	return nil
}

type fakePushes struct {
	pushes []azuredevops.NewPush
	err    error
}

func (f *fakePushes) Create(push azuredevops.NewPush) (*azuredevops.Push, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pushes = append(f.pushes, push)
	return &azuredevops.Push{PushID: len(f.pushes)}, nil
}

func testEngine(t *testing.T, threads *fakeThreads, pushes *fakePushes, commentMode, commitMode bool) *Engine {
	t.Helper()
	return NewEngine(threads, pushes, t.TempDir(), commentMode, commitMode, hclog.NewNullLogger())
}

func writeSourceFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
}

func TestReconcileOpensThreadsForNewFindings(t *testing.T) {
	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, true, false)
	finding := testFinding()

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		Findings:      []codespell.Finding{finding},
		ChangedPaths:  []string{"/doc.txt"},
	})

	assert.Equal(t, 1, out.NewThreads)
	assert.Zero(t, out.Failures)
	require.Len(t, threads.created, 1)

	created := threads.created[0]
	assert.Equal(t, azuredevops.ThreadStatusActive, created.Status)
	require.Len(t, created.Comments, 1)
	assert.Contains(t, created.Comments[0].Content, "`qick` is a possible misspelling")
	assert.Contains(t, created.Comments[0].Content, "```suggestion\nquick\n```")
	assert.Contains(t, created.Comments[0].Content, CommandPrefix+" ignore")

	require.NotNil(t, created.ThreadContext)
	assert.Equal(t, "/doc.txt", created.ThreadContext.FilePath)
	// "qick" starts at column 5 of "The qick brown fox".
	assert.Equal(t, azuredevops.Position{Line: 3, Offset: 5}, *created.ThreadContext.RightFileStart)
	assert.Equal(t, azuredevops.Position{Line: 3, Offset: 9}, *created.ThreadContext.RightFileEnd)

	embedded, ok := EmbeddedFinding(azuredevops.Thread{Properties: created.Properties})
	require.True(t, ok)
	assert.Equal(t, finding, embedded)
}

func TestReconcileSkipsFindingsOutsideChangedPaths(t *testing.T) {
	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, true, false)

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		Findings:      []codespell.Finding{testFinding()},
		ChangedPaths:  []string{"/other.txt"},
	})

	assert.Zero(t, out.NewThreads)
	assert.Empty(t, threads.created)
}

func TestReconcileIsIdempotent(t *testing.T) {
	const userID = "bot-id"
	finding := testFinding()

	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, true, false)

	out := engine.Reconcile(Input{
		UserID:        userID,
		PullRequestID: 7,
		Findings:      []codespell.Finding{finding},
		Threads:       []azuredevops.Thread{ownedThread(t, 11, userID, finding)},
		ChangedPaths:  []string{"doc.txt"},
	})

	assert.Zero(t, out.NewThreads)
	assert.Zero(t, out.ResolvedThreads)
	assert.Empty(t, threads.created)
	assert.Empty(t, threads.statuses)
}

func TestReconcileDeduplicatesIdenticalFindings(t *testing.T) {
	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, true, false)
	finding := testFinding()

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		Findings:      []codespell.Finding{finding, finding},
		ChangedPaths:  []string{"doc.txt"},
	})

	assert.Equal(t, 1, out.NewThreads)
	assert.Len(t, threads.created, 1)
}

func TestReconcileResolvesStaleThreads(t *testing.T) {
	const userID = "bot-id"
	live := testFinding()
	stale := testFinding()
	stale.Line = 9

	foreign := azuredevops.Thread{
		ID:     30,
		Status: azuredevops.ThreadStatusActive,
		Comments: []azuredevops.Comment{{
			ID:      1,
			Author:  azuredevops.IdentityRef{ID: "reviewer"},
			Content: "please rephrase this paragraph",
		}},
	}

	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, true, false)

	out := engine.Reconcile(Input{
		UserID:        userID,
		PullRequestID: 7,
		Findings:      []codespell.Finding{live},
		Threads: []azuredevops.Thread{
			ownedThread(t, 10, userID, live),
			ownedThread(t, 20, userID, stale),
			foreign,
		},
		ChangedPaths: []string{"doc.txt"},
	})

	assert.Equal(t, 1, out.ResolvedThreads)
	assert.Equal(t, azuredevops.ThreadStatusFixed, threads.statuses[20])
	assert.NotContains(t, threads.statuses, 10)
	assert.NotContains(t, threads.statuses, 30)
}

func TestReconcileResolveFailureIsNonFatal(t *testing.T) {
	const userID = "bot-id"
	stale := testFinding()

	threads := newFakeThreads()
	threads.statusErr = errors.New("409 conflict")
	engine := testEngine(t, threads, &fakePushes{}, true, false)

	out := engine.Reconcile(Input{
		UserID:        userID,
		PullRequestID: 7,
		Threads:       []azuredevops.Thread{ownedThread(t, 10, userID, stale)},
	})

	assert.Zero(t, out.ResolvedThreads)
	assert.Equal(t, 1, out.Failures)
}

func TestReconcilePushesFixesAndPlaceholders(t *testing.T) {
	threads := newFakeThreads()
	pushes := &fakePushes{}
	engine := testEngine(t, threads, pushes, true, true)

	ambiguous := codespell.Finding{
		Path:        "notes/todo.txt",
		Line:        2,
		Word:        "wont",
		Suggestions: []string{"won't", "wont"},
		LineText:    "it wont matter",
	}
	writeSourceFile(t, engine.SourceDir, "notes/todo.txt", "first line\nit wont matter\n")
	writeSourceFile(t, engine.SourceDir, "doc.txt", "The quick brown fox\n")

	input := Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		SourceRefName: "refs/heads/feature",
		BaseCommit:    "abc123",
		Findings:      []codespell.Finding{ambiguous},
		FixedFiles:    []string{"doc.txt"},
		ChangedPaths:  []string{"doc.txt", "notes/todo.txt"},
	}
	out := engine.Reconcile(input)

	assert.Equal(t, 1, out.NewThreads)
	assert.Equal(t, []string{"doc.txt", "notes/todo.txt"}, out.PushedPaths)

	require.Len(t, pushes.pushes, 1)
	push := pushes.pushes[0]
	assert.Equal(t, "refs/heads/feature", push.RefName)
	assert.Equal(t, "abc123", push.OldObjectID)
	require.Len(t, push.Edits, 2)
	assert.Equal(t, "doc.txt", push.Edits[0].Path)
	assert.Equal(t, "notes/todo.txt", push.Edits[1].Path)
	assert.Equal(t, "first line\nit wont --> won't|wont matter\n", push.Edits[1].Content)

	// The thread anchors the placeholder so accepting a suggestion replaces
	// the whole substitution.
	created := threads.created[0]
	line := "it wont --> won't|wont matter"
	start := strings.Index(line, "wont --> won't|wont") + 1
	assert.Equal(t, start, created.ThreadContext.RightFileStart.Offset)
	assert.Equal(t, start+len("wont --> won't|wont"), created.ThreadContext.RightFileEnd.Offset)
}

func TestReconcilePlaceholderSubstitutionIsIdempotent(t *testing.T) {
	threads := newFakeThreads()
	pushes := &fakePushes{}
	engine := testEngine(t, threads, pushes, false, true)

	ambiguous := codespell.Finding{
		Path:        "todo.txt",
		Line:        1,
		Word:        "wont",
		Suggestions: []string{"won't", "wont"},
		LineText:    "it wont matter",
	}
	writeSourceFile(t, engine.SourceDir, "todo.txt", "it wont matter\n")

	input := Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		SourceRefName: "refs/heads/feature",
		BaseCommit:    "abc123",
		Findings:      []codespell.Finding{ambiguous},
		ChangedPaths:  []string{"todo.txt"},
	}

	out := engine.Reconcile(input)
	assert.Equal(t, []string{"todo.txt"}, out.PushedPaths)
	require.Len(t, pushes.pushes, 1)

	// A second pass finds the placeholder already in place and pushes nothing.
	out = engine.Reconcile(input)
	assert.Empty(t, out.PushedPaths)
	assert.Len(t, pushes.pushes, 1)

	content, err := os.ReadFile(filepath.Join(engine.SourceDir, "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "wont --> "))
}

func TestReconcileSingleSuggestionNeverGetsPlaceholder(t *testing.T) {
	threads := newFakeThreads()
	pushes := &fakePushes{}
	engine := testEngine(t, threads, pushes, true, true)

	finding := testFinding()
	writeSourceFile(t, engine.SourceDir, "doc.txt", "one\ntwo\nThe qick brown fox\n")

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		SourceRefName: "refs/heads/feature",
		BaseCommit:    "abc123",
		Findings:      []codespell.Finding{finding},
		ChangedPaths:  []string{"doc.txt"},
	})

	assert.Equal(t, 1, out.NewThreads)
	assert.Empty(t, pushes.pushes)

	content, err := os.ReadFile(filepath.Join(engine.SourceDir, "doc.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "-->")
}

func TestReconcileCommentModeOff(t *testing.T) {
	threads := newFakeThreads()
	engine := testEngine(t, threads, &fakePushes{}, false, false)

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		Findings:      []codespell.Finding{testFinding()},
		ChangedPaths:  []string{"doc.txt"},
	})

	assert.Zero(t, out.NewThreads)
	assert.Empty(t, threads.created)
}

func TestReconcilePushFailureIsNonFatal(t *testing.T) {
	threads := newFakeThreads()
	pushes := &fakePushes{err: errors.New("ref update rejected")}
	engine := testEngine(t, threads, pushes, true, true)

	writeSourceFile(t, engine.SourceDir, "doc.txt", "fixed content\n")

	out := engine.Reconcile(Input{
		UserID:        "bot-id",
		PullRequestID: 7,
		SourceRefName: "refs/heads/feature",
		BaseCommit:    "abc123",
		FixedFiles:    []string{"doc.txt"},
	})

	assert.Empty(t, out.PushedPaths)
	assert.Equal(t, 1, out.Failures)
}
