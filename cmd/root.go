package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/config"
	"github.com/zdunecki/onboarding/pkg/logging"
)

var configFile string

// cfg and logger are set by the root command before any subcommand runs.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Student onboarding wizard",
	Long: `Collects a student's profile, education, eligibility and course
preferences step by step, validates every step and submits the answers
to the onboarding backend. Runs as a terminal wizard or as an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.DefaultPath()
		}
		loaded, err := config.Load(path, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded

		// The terminal wizard owns the screen and logs to a file instead.
		if cmd == wizardCmd {
			return nil
		}
		l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (.yaml or .toml)")
	flags.String("catalog", "", "Catalog directory overriding the built-in steps")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("session-driver", "", "Session store (file, sqlite, memory)")
	flags.String("session-path", "", "Session store path")
	flags.String("api-url", "", "Onboarding backend base URL")
	flags.Bool("offline", false, "Do not send answers to the backend")
}

// Execute runs the CLI. Without arguments it starts the wizard.
func Execute() error {
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"wizard"})
	}
	return rootCmd.Execute()
}
