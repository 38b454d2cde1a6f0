package run

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/spellgate/spellgate/internal/git"
	"github.com/spellgate/spellgate/internal/taskenv"
	"github.com/spellgate/spellgate/pkg/shared/config"
	"github.com/spellgate/spellgate/pkg/shared/errors"
)

// runContext is the fully resolved run configuration: flags layered over the
// pipeline environment layered over the local checkout metadata.
type runContext struct {
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

// resolveRunContext merges the option sources and validates the result.
func resolveRunContext(opts *RunOptions, env taskenv.Environment, log hclog.Logger) (*runContext, error) {
	ctx := &runContext{
		Commit:            opts.Commit,
		Comment:           opts.Comment,
		FailOnMisspelling: opts.FailOnMisspelling,
		CollectionURL:     firstOf(opts.CollectionURL, env.CollectionURL),
		Project:           firstOf(opts.Project, env.Project),
		Repository:        firstOf(opts.Repository, env.Repository),
		PullRequestID:     opts.PullRequestID,
		SourceBranch:      firstOf(opts.SourceBranch, env.SourceBranch),
		SourceDir:         firstOf(opts.SourceDir, env.SourcesDir, "."),
		Token:             firstOf(opts.Token, env.AccessToken),
		Binary:            opts.Binary,
		IgnoreFile:        opts.IgnoreFile,
	}
	if ctx.PullRequestID == 0 {
		ctx.PullRequestID = env.PullRequestID
	}

	applyCodespellDefaults(ctx, AppConfig)

	if ctx.CollectionURL == "" || ctx.Project == "" || ctx.Repository == "" {
		fillFromCheckout(ctx, log)
	}

	if err := validateRunContext(ctx); err != nil {
		return nil, err
	}
	ctx.CollectionURL = strings.TrimRight(ctx.CollectionURL, "/")
	return ctx, nil
}

// fillFromCheckout fills missing platform coordinates from the origin remote
// of the local checkout.
func fillFromCheckout(ctx *runContext, log hclog.Logger) {
	md, err := git.CollectRepositoryMetadata(ctx.SourceDir, log)
	if err != nil {
		log.Debug("could not read checkout metadata", "error", err)
		return
	}
	ctx.CollectionURL = firstOf(ctx.CollectionURL, md.CollectionURL)
	ctx.Project = firstOf(ctx.Project, md.Project)
	ctx.Repository = firstOf(ctx.Repository, md.Repository)
	if ctx.SourceBranch == "" && md.Branch != "" {
		ctx.SourceBranch = "refs/heads/" + md.Branch
	}
}

func applyCodespellDefaults(ctx *runContext, cfg *config.Config) {
	defaults := config.DefaultCodespellConfig()
	if cfg != nil {
		defaults.Binary = firstOf(cfg.Codespell.Binary, defaults.Binary)
		defaults.ConfigFile = firstOf(cfg.Codespell.ConfigFile, defaults.ConfigFile)
	}
	ctx.Binary = firstOf(ctx.Binary, defaults.Binary)
	ctx.IgnoreFile = firstOf(ctx.IgnoreFile, defaults.ConfigFile)
}

// validateRunContext checks that everything a run cannot work without is
// present before any platform call is made.
func validateRunContext(ctx *runContext) error {
	if !ctx.Commit && !ctx.Comment {
		return errors.NewConfigurationError("at least one of the 'commit' and 'comment' flags must be enabled")
	}
	if ctx.CollectionURL == "" {
		return errors.NewConfigurationError("the collection URL could not be determined; pass 'collection-url' or run inside a pipeline")
	}
	if ctx.Project == "" {
		return errors.NewConfigurationError("the project could not be determined; pass 'project' or run inside a pipeline")
	}
	if ctx.Repository == "" {
		return errors.NewConfigurationError("the repository could not be determined; pass 'repository' or run inside a pipeline")
	}
	if ctx.PullRequestID <= 0 {
		return errors.NewConfigurationError("the run is not associated with a pull request; pass 'pull-request' or trigger from a pull request build")
	}
	if ctx.Token == "" {
		return errors.NewConfigurationError("no access token available; pass 'token' or map the job access token into the step")
	}
	if info, err := os.Stat(ctx.SourceDir); err != nil || !info.IsDir() {
		return errors.NewConfigurationError("the source directory does not exist: %v", ctx.SourceDir)
	}
	return nil
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
