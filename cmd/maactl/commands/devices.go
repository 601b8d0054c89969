package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/maa"
)

var devicesAdbPath string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Discover devices and windows",
	Long: `Discover android devices through adb and desktop windows through win32.

Both need the MaaToolkit library next to MaaFramework.`,
}

var devicesAdbCmd = &cobra.Command{
	Use:   "adb",
	Short: "List android devices visible to adb",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, err := openToolkit()
		if err != nil {
			return err
		}
		defer tk.Close()

		var devices []maa.AdbDevice
		if devicesAdbPath != "" {
			devices, err = tk.FindAdbDevicesAt(devicesAdbPath)
		} else {
			devices, err = tk.FindAdbDevices()
		}
		if err != nil {
			return err
		}
		if structured() {
			return printResult(cmd, devices)
		}
		if len(devices) == 0 {
			styles.PrintInfo(cmd.OutOrStdout(), "No devices found.")
			return nil
		}
		rows := make([]cli.Row, 0, len(devices))
		for _, d := range devices {
			rows = append(rows, cli.Row{d.Name, d.Address, d.AdbPath})
		}
		styles.Table(cmd.OutOrStdout(), cli.Row{"NAME", "ADDRESS", "ADB"}, rows)
		return nil
	},
}

var devicesWin32Cmd = &cobra.Command{
	Use:   "win32",
	Short: "List desktop windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, err := openToolkit()
		if err != nil {
			return err
		}
		defer tk.Close()

		windows, err := tk.FindDesktopWindows()
		if err != nil {
			return err
		}
		if structured() {
			return printResult(cmd, windows)
		}
		if len(windows) == 0 {
			styles.PrintInfo(cmd.OutOrStdout(), "No windows found.")
			return nil
		}
		rows := make([]cli.Row, 0, len(windows))
		for _, w := range windows {
			rows = append(rows, cli.Row{fmt.Sprintf("%#x", w.HWnd), w.ClassName, w.Name})
		}
		styles.Table(cmd.OutOrStdout(), cli.Row{"HWND", "CLASS", "TITLE"}, rows)
		return nil
	},
}

// openToolkit loads the library for the selected profile, falling back to
// the default library search when no profile exists.
func openToolkit() (*maa.Toolkit, error) {
	p, err := currentProfile()
	if err != nil {
		p = &cli.Profile{}
	}
	if err := loadLibrary(p); err != nil {
		return nil, err
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, err
	}
	return maa.NewToolkit(paths.AppDir(), nil)
}

func init() {
	devicesAdbCmd.Flags().StringVar(&devicesAdbPath, "adb", "", "scan with this adb executable only")
	devicesCmd.AddCommand(devicesAdbCmd, devicesWin32Cmd)
	rootCmd.AddCommand(devicesCmd)
}
