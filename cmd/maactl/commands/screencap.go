package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/artifact"
	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/history"
)

var screencapFile string

type screencapResult struct {
	Width    int32  `json:"width"`
	Height   int32  `json:"height"`
	Device   string `json:"device,omitempty"`
	Location string `json:"location"`
}

var screencapCmd = &cobra.Command{
	Use:   "screencap",
	Short: "Capture the device screen as PNG",
	Long: `Connect to the profile's device and capture one screenshot.

Without --file the image goes to the profile's artifact store under
captures/<id>/screen.png.

Examples:
  maactl screencap
  maactl screencap --file screen.png --address emulator-5554`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := currentProfile()
		if err != nil {
			return err
		}
		if err := loadLibrary(p); err != nil {
			return err
		}
		ctx := cmd.Context()
		ctrl, err := connect(ctx, p)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		job, err := ctrl.PostScreencap()
		if err != nil {
			return err
		}
		st, err := job.WaitContext(ctx)
		if err != nil {
			return err
		}
		if !st.Succeeded() {
			return fmt.Errorf("screencap %s", st)
		}
		img, err := ctrl.CachedImage()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := img.EncodePNG(&buf); err != nil {
			return err
		}

		res := screencapResult{Width: int32(img.Width), Height: int32(img.Height)}
		res.Device, _ = ctrl.UUID()
		if screencapFile != "" {
			if err := os.WriteFile(screencapFile, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			res.Location = screencapFile
		} else {
			store, err := openArtifacts(p)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("captures/%s/screen.png", history.NewID())
			start := time.Now()
			if err := artifact.SavePNG(ctx, store, key, buf.Bytes()); err != nil {
				return err
			}
			res.Location = store.Location(key)
			slog.Debug("maactl: screenshot stored", "location", res.Location,
				"size", cli.FormatBytes(int64(buf.Len())), "took", time.Since(start))
		}

		if structured() {
			return printResult(cmd, res)
		}
		styles.PrintSuccess(cmd.OutOrStdout(), "%dx%d screenshot saved to %s", res.Width, res.Height, res.Location)
		return nil
	},
}

func init() {
	f := screencapCmd.Flags()
	f.StringVar(&screencapFile, "file", "", "write the PNG to this file instead of the artifact store")
	f.StringVar(&deviceAdbPath, "adb", "", "adb executable (overrides the profile)")
	f.StringVar(&deviceAddress, "address", "", "device address (overrides the profile)")
	f.DurationVar(&connectWait, "connect-timeout", 30*time.Second, "give up connecting after this long")
	rootCmd.AddCommand(screencapCmd)
}
