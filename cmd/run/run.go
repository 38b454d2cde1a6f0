package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
	"github.com/spellgate/spellgate/internal/git"
	"github.com/spellgate/spellgate/internal/ignore"
	"github.com/spellgate/spellgate/internal/lock"
	"github.com/spellgate/spellgate/internal/reconcile"
	"github.com/spellgate/spellgate/internal/taskenv"
	"github.com/spellgate/spellgate/pkg/shared/config"
	"github.com/spellgate/spellgate/pkg/shared/errors"
	"github.com/spellgate/spellgate/pkg/shared/logger"
)

// RunOptions holds the arguments for the run command. Unset values fall back
// to the pipeline environment and then to the local checkout metadata.
type RunOptions struct {
	Commit            bool
	Comment           bool
	FailOnMisspelling bool

	CollectionURL string
	Project       string
	Repository    string
	PullRequestID int
	SourceBranch  string
	SourceDir     string
	Token         string
	Binary        string
	IgnoreFile    string
}

var (
	AppConfig  *config.Config
	runOptions RunOptions

	exampleRunUsage = `  # Inside an Azure Pipelines PR build, with fixes pushed and threads opened
  spellgate run --commit --comment

  # Comment-only mode against an explicit pull request
  spellgate run --comment --collection-url https://dev.azure.com/org --project docs --repository handbook --pull-request 42 --token $PAT

  # Gate the build on any remaining misspelling
  spellgate run --commit --comment --fail-on-misspelling`
)

// RunCmd represents the run command.
var RunCmd = &cobra.Command{
	Use:                   "run [--commit] [--comment] [--fail-on-misspelling] [flags]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRunUsage,
	Short:                 "Spell-check the checkout and reconcile findings with the pull request",
	RunE:                  runRunCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !hasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	log := logger.NewLogger(AppConfig, "spellgate")
	env := taskenv.Resolve()

	ctx, err := resolveRunContext(&runOptions, env, log)
	if err != nil {
		log.Error("invalid run context", "error", err)
		return err
	}

	status := errors.StatusFailed
	defer func() { env.Complete(os.Stdout, status) }()

	status, err = executeRun(ctx, env, log)
	if err != nil {
		log.Error("run failed", "error", err)
		env.LogIssue(os.Stdout, "error", err.Error())
		return err
	}
	return nil
}

// executeRun drives one reconciliation run and returns the final status.
func executeRun(ctx *runContext, env taskenv.Environment, log hclog.Logger) (errors.RunStatus, error) {
	ignoreCfg, err := ignore.Load(filepath.Join(ctx.SourceDir, ctx.IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no ignore configuration present, skipping run", "file", ctx.IgnoreFile)
			return errors.StatusSkipped, nil
		}
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1, err)
	}

	client, err := azuredevops.New(AppConfig, log, ctx.CollectionURL, ctx.Project, ctx.Repository,
		azuredevops.AuthInfo{Token: ctx.Token})
	if err != nil {
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1, err)
	}

	prLock := lock.New(client.Properties, ctx.PullRequestID, env.RunID(), log)
	acq, err := prLock.Acquire()
	if err != nil {
		// An unreachable property store means another run may already be
		// active. Skipping is always safe, the next run catches up.
		log.Warn("could not determine lock state, skipping run", "error", err)
		return errors.StatusSkipped, nil
	}
	if !acq.Acquired {
		log.Info("pull request is being processed by another run, skipping", "owner", acq.OwnerID)
		return errors.StatusSkipped, nil
	}
	defer prLock.Release()

	pr, err := client.PullRequests.Get(ctx.PullRequestID)
	if err != nil {
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1,
			fmt.Errorf("failed to fetch pull request %d: %w", ctx.PullRequestID, err))
	}
	sourceRef := pr.SourceRefName
	if sourceRef == "" {
		sourceRef = ctx.SourceBranch
	}

	userID, err := client.Identity.AuthenticatedUserID()
	if err != nil {
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1, err)
	}

	threads, err := client.Threads.List(ctx.PullRequestID)
	if err != nil {
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1,
			fmt.Errorf("failed to list pull request threads: %w", err))
	}

	// Reply-commands first: suppressions they add must be in effect for the
	// check below, and the config edits ride along in the fix commit.
	processor := reconcile.NewCommandProcessor(client.Threads, ignoreCfg, ctx.SourceDir, log)
	mutatedPaths := processor.Run(userID, ctx.PullRequestID, threads)

	runner := codespell.NewRunner(ctx.Binary, log)
	report, err := runner.Run(codespell.RunRequest{
		TargetDir:    ctx.SourceDir,
		WriteChanges: ctx.Commit,
		SkipPatterns: ignoreCfg.SkipPatterns(),
		IgnoreWords:  ignoreCfg.IgnoreWords(),
	})
	if err != nil {
		return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 1, err)
	}

	baseCommit := localBaseCommit(ctx, pr, log)

	changedPaths, err := client.PullRequests.ListChangedPaths(ctx.PullRequestID)
	if err != nil {
		// Without the changed set no new threads open this run; stale
		// resolution and pushes still proceed.
		log.Warn("failed to list pull request changes, deferring new threads", "error", err)
		changedPaths = nil
	}

	engine := reconcile.NewEngine(client.Threads, client.Pushes, ctx.SourceDir, ctx.Comment, ctx.Commit, log)
	outcome := engine.Reconcile(reconcile.Input{
		UserID:        userID,
		PullRequestID: ctx.PullRequestID,
		SourceRefName: sourceRef,
		BaseCommit:    baseCommit,
		Findings:      report.Findings,
		FixedFiles:    report.FixedFiles,
		Threads:       threads,
		ChangedPaths:  changedPaths,
		ExtraEdits:    mutatedPaths,
	})

	for _, warning := range report.Warnings {
		env.LogIssue(os.Stdout, "warning", warning)
	}
	for _, f := range report.Findings {
		log.Warn("possible misspelling",
			"path", f.Path, "line", f.Line, "word", f.Word, "candidates", f.Suggestions)
	}
	for _, fixed := range report.FixedFiles {
		log.Info("applied unambiguous fix", "path", fixed)
	}
	log.Info("run finished",
		"findings", len(report.Findings),
		"fixedFiles", len(report.FixedFiles),
		"newThreads", outcome.NewThreads,
		"resolvedThreads", outcome.ResolvedThreads,
		"pushedPaths", len(outcome.PushedPaths),
		"failures", outcome.Failures,
	)

	if len(report.Findings) > 0 {
		env.LogIssue(os.Stdout, "warning", fmt.Sprintf("%d possible misspellings remain in this pull request", len(report.Findings)))
		if ctx.FailOnMisspelling {
			return errors.StatusFailed, errors.NewCommandError(errors.StatusFailed, 2,
				fmt.Errorf("%d possible misspellings remain", len(report.Findings)))
		}
		return errors.StatusSucceededWithIssues, nil
	}
	if outcome.Failures > 0 {
		return errors.StatusSucceededWithIssues, nil
	}
	return errors.StatusSucceeded, nil
}

// localBaseCommit returns the commit the push pins as the expected branch
// tip. The local HEAD is authoritative since that is what the check ran
// against; a divergence from the PR's recorded tip means new commits arrived
// after the checkout and the push will be rejected cleanly.
func localBaseCommit(ctx *runContext, pr *azuredevops.PullRequest, log hclog.Logger) string {
	md, err := git.CollectRepositoryMetadata(ctx.SourceDir, log)
	if err != nil {
		log.Warn("failed to read checkout metadata, using recorded pull request tip", "error", err)
		return pr.LastMergeSourceCommit.CommitID
	}
	if !md.MatchesTip(pr.LastMergeSourceCommit.CommitID) {
		log.Warn("checkout is behind the pull request tip",
			"local", md.Commit, "remote", pr.LastMergeSourceCommit.CommitID)
	}
	return md.Commit
}

// hasFlags reports whether any flag was explicitly set on the command line.
func hasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(*pflag.Flag) { changed = true })
	return changed
}

// Initialize flags for the run command.
func init() {
	RunCmd.Flags().BoolVar(&runOptions.Commit, "commit", false, "Push unambiguous fixes and placeholder substitutions to the source branch.")
	RunCmd.Flags().BoolVar(&runOptions.Comment, "comment", false, "Open inline suggestion threads for findings inside the pull request changes.")
	RunCmd.Flags().BoolVar(&runOptions.FailOnMisspelling, "fail-on-misspelling", false, "Exit nonzero when any misspelling remains after reconciliation.")
	RunCmd.Flags().StringVar(&runOptions.CollectionURL, "collection-url", "", "Collection URL, e.g. https://dev.azure.com/org. Defaults to the pipeline environment.")
	RunCmd.Flags().StringVar(&runOptions.Project, "project", "", "Team project name. Defaults to the pipeline environment.")
	RunCmd.Flags().StringVar(&runOptions.Repository, "repository", "", "Repository name. Defaults to the pipeline environment.")
	RunCmd.Flags().IntVar(&runOptions.PullRequestID, "pull-request", 0, "Pull request id. Defaults to the pipeline environment.")
	RunCmd.Flags().StringVar(&runOptions.SourceBranch, "source-branch", "", "Fully qualified source ref, e.g. refs/heads/topic. Defaults to the pipeline environment.")
	RunCmd.Flags().StringVar(&runOptions.SourceDir, "source-dir", "", "Local checkout root. Defaults to the pipeline sources directory.")
	RunCmd.Flags().StringVar(&runOptions.Token, "token", "", "Access token for the collection. Defaults to the job access token.")
	RunCmd.Flags().StringVar(&runOptions.Binary, "binary", "", "Path to the codespell binary.")
	RunCmd.Flags().StringVar(&runOptions.IgnoreFile, "ignore-file", "", "Ignore configuration file relative to the checkout root.")
}
