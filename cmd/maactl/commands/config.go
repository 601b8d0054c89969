package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/artifact"
	"github.com/haivivi/maafw/pkg/cli"
)

// add-profile flags
var (
	addLibrary     string
	addAdbPath     string
	addAddress     string
	addAdbConfig   string
	addBundles     []string
	addHistoryDir  string
	addLogDir      string
	addArtifactDir string
	addS3          artifact.S3Config
	addUse         bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage profiles",
	Long: `Manage profiles. A profile holds the library location, the device
address, the resource bundles and where history and screenshots go.

Examples:
  maactl config add-profile emu --address 127.0.0.1:5555 --bundle ./resource
  maactl config add-profile phone --address R58M123 --bundle ./resource \
    --s3-bucket shots --s3-endpoint http://minio:9000 --s3-path-style
  maactl config use phone
  maactl config list
  maactl config show`,
}

var configAddProfileCmd = &cobra.Command{
	Use:   "add-profile <name>",
	Short: "Create or replace a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]
		p := &cli.Profile{
			Library:    addLibrary,
			AdbPath:    addAdbPath,
			AdbAddress: addAddress,
			AdbConfig:  addAdbConfig,
			Bundles:    addBundles,
			HistoryDir: addHistoryDir,
			LogDir:     addLogDir,
		}
		if addAdbConfig != "" {
			if _, err := cli.ParseDocument([]byte(addAdbConfig), "adb-config.json"); err != nil {
				return fmt.Errorf("--adb-config: %w", err)
			}
		}
		switch {
		case addS3.Bucket != "":
			s3 := addS3
			p.Artifacts = &artifact.Config{Kind: "s3", S3: &s3}
		case addArtifactDir != "":
			p.Artifacts = &artifact.Config{Kind: "local", Dir: addArtifactDir}
		}

		_, existed := cfg.Profiles[name]
		if err := cfg.AddProfile(name, p); err != nil {
			return err
		}
		if addUse {
			if err := cfg.UseProfile(name); err != nil {
				return err
			}
		}
		verb := "created"
		if existed {
			verb = "replaced"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %q %s.\n", name, verb)
		if cfg.CurrentProfile == name {
			fmt.Fprintf(cmd.OutOrStdout(), "Current profile is %q.\n", name)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseProfile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %q.\n", args[0])
		return nil
	},
}

// profileSummary is one entry of `config list`.
type profileSummary struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
	Address string `json:"address,omitempty"`
	Bundles int    `json:"bundles"`
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		var list []profileSummary
		for _, name := range cfg.ProfileNames() {
			p := cfg.Profiles[name]
			list = append(list, profileSummary{
				Name:    name,
				Current: name == cfg.CurrentProfile,
				Address: p.AdbAddress,
				Bundles: len(p.Bundles),
			})
		}
		if structured() {
			return printResult(cmd, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No profiles configured.")
			fmt.Fprintln(cmd.OutOrStdout(), "Create one with: maactl config add-profile <name>")
			return nil
		}
		rows := make([]cli.Row, 0, len(list))
		for _, s := range list {
			current := ""
			if s.Current {
				current = "*"
			}
			rows = append(rows, cli.Row{current, s.Name, s.Address, fmt.Sprint(s.Bundles)})
		}
		styles.Table(cmd.OutOrStdout(), cli.Row{"CURRENT", "NAME", "ADDRESS", "BUNDLES"}, rows)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := profileName
		if len(args) == 1 {
			name = args[0]
		}
		p, err := cfg.ResolveProfile(name)
		if err != nil {
			return err
		}
		return printResult(cmd, p.Redacted())
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteProfile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	f := configAddProfileCmd.Flags()
	f.StringVar(&addLibrary, "library", "", "MaaFramework library file or directory")
	f.StringVar(&addAdbPath, "adb", "", "adb executable")
	f.StringVar(&addAddress, "address", "", "device address, e.g. 127.0.0.1:5555")
	f.StringVar(&addAdbConfig, "adb-config", "", "extra adb controller config (JSON)")
	f.StringArrayVar(&addBundles, "bundle", nil, "resource bundle directory, repeatable")
	f.StringVar(&addHistoryDir, "history-dir", "", "run history directory")
	f.StringVar(&addLogDir, "log-dir", "", "library log directory")
	f.StringVar(&addArtifactDir, "artifact-dir", "", "local screenshot directory")
	f.StringVar(&addS3.Bucket, "s3-bucket", "", "store screenshots in this S3 bucket")
	f.StringVar(&addS3.Prefix, "s3-prefix", "", "S3 key prefix")
	f.StringVar(&addS3.Region, "s3-region", "", "S3 region")
	f.StringVar(&addS3.Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	f.BoolVar(&addS3.PathStyle, "s3-path-style", false, "use path-style bucket addressing")
	f.StringVar(&addS3.AccessKey, "s3-access-key", "", "S3 access key (default AWS_ACCESS_KEY_ID)")
	f.StringVar(&addS3.SecretKey, "s3-secret-key", "", "S3 secret key (default AWS_SECRET_ACCESS_KEY)")
	f.BoolVar(&addUse, "use", false, "make the profile current")

	configCmd.AddCommand(configAddProfileCmd, configUseCmd, configListCmd, configShowCmd, configDeleteCmd)
	rootCmd.AddCommand(configCmd)
}
