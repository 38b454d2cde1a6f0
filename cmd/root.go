package cmd

import (
	goerrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spellgate/spellgate/cmd/run"
	"github.com/spellgate/spellgate/cmd/version"
	"github.com/spellgate/spellgate/pkg/shared/config"
	"github.com/spellgate/spellgate/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "spellgate [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Spellgate runs a spell check against a pull request and reconciles the findings as review suggestions.",
		Long: `Spellgate wraps the codespell tool inside a CI pipeline step. It pushes
unambiguous fixes to the pull request source branch, opens inline suggestion
threads for ambiguous findings, resolves threads whose finding disappeared,
and applies reviewer reply-commands to the ignore configuration.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the application config file (optional)")
	rootCmd.AddCommand(run.RunCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and maps the resulting error to a process
// exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		var cmdErr *errors.CommandError
		if goerrors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	run.Init(AppConfig)
}
