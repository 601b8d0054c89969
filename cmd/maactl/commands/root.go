package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/cli"
)

const appName = "maactl"

var (
	// Global flags
	configPath   string
	profileName  string
	outputFormat string
	outputQuery  string
	verbose      bool

	styles = cli.NewStyles(cli.DefaultTheme)
)

var rootCmd = &cobra.Command{
	Use:   "maactl",
	Short: "Drive MaaFramework automation from the command line",
	Long: `maactl - run MaaFramework pipelines against android devices and desktop windows.

A profile names the library location, the device to connect to, the
resource bundles to load and where screenshots and run history go.

Configuration is stored in ~/.maafw/maactl/config.yaml.

Examples:
  # Create a profile for a local emulator
  maactl config add-profile emu --address 127.0.0.1:5555 --bundle ./resource

  # Discover devices
  maactl devices adb

  # Run a task, keep a screenshot, then look at the history
  maactl run StartUp --screenshot
  maactl history list
  maactl history show 0190c2f4 -o json -q '.nodes[].name'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.ParseFormat(outputFormat); err != nil {
			return err
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.maafw/maactl/config.yaml)")
	pf.StringVarP(&profileName, "profile", "p", "", "profile to use (default: current profile)")
	pf.StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json or raw")
	pf.StringVarP(&outputQuery, "query", "q", "", "jq expression applied to the output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// GetConfig loads the configuration. It is called by the commands that
// need it, so 'maactl version' works with a broken config file.
func GetConfig() (*cli.Config, error) {
	cfg, err := cli.LoadConfigWithPath(appName, configPath)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	return cfg, nil
}

// currentProfile resolves --profile or the current profile.
func currentProfile() (*cli.Profile, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	p, err := cfg.ResolveProfile(profileName)
	if err != nil {
		return nil, fmt.Errorf("%w (use --profile or 'maactl config use')", err)
	}
	return p, nil
}

// printResult writes v to stdout in the format chosen by --output and
// --query.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.Output(v, cli.OutputOptions{
		Format: format,
		Query:  outputQuery,
		Writer: cmd.OutOrStdout(),
	})
}

// structured reports whether the user asked for machine-readable output.
func structured() bool {
	return outputFormat == string(cli.FormatJSON) || outputQuery != ""
}
