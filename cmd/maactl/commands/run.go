package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/history"
	"github.com/haivivi/maafw/pkg/maa"
)

var (
	runBundles    []string
	runOverride   string
	runTimeout    time.Duration
	runScreenshot bool
	runNoHistory  bool
)

// runResult is what `maactl run` prints in structured mode.
type runResult struct {
	Run    *history.Run    `json:"run"`
	Detail *maa.TaskDetail `json:"detail,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <entry>",
	Short: "Run a pipeline task",
	Long: `Load the profile's bundles, connect to its device and run the pipeline
starting at <entry>. The outcome is printed and recorded in history.

An override file (YAML or JSON, '-' for stdin) is merged into the pipeline
for this task only. When --timeout expires or the command is interrupted,
the task is stopped and reported as cancelled.

Examples:
  maactl run StartUp
  maactl run Daily --bundle ./base --bundle ./event --override tweaks.yaml
  maactl run Daily --timeout 5m --screenshot -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := args[0]
		p, err := currentProfile()
		if err != nil {
			return err
		}
		var override any
		if runOverride != "" {
			doc, err := cli.LoadDocument(runOverride)
			if err != nil {
				return err
			}
			override = doc
		}
		if err := loadLibrary(p); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		bundles := runBundles
		if len(bundles) == 0 {
			bundles = p.Bundles
		}
		res, err := loadResource(ctx, bundles)
		if err != nil {
			return err
		}
		defer res.Close()
		ctrl, err := connect(ctx, p)
		if err != nil {
			return err
		}
		defer ctrl.Close()
		tasker, err := maa.NewTasker()
		if err != nil {
			return err
		}
		defer tasker.Close()
		if err := tasker.BindResource(res); err != nil {
			return err
		}
		if err := tasker.BindController(ctrl); err != nil {
			return err
		}
		if verbose {
			if _, err := tasker.AddContextSink(logEvent); err != nil {
				slog.Warn("maactl: event logging unavailable", "error", err)
			}
		}

		run := &history.Run{
			ID:      history.NewID(),
			Profile: p.Name,
			Entry:   entry,
			Started: time.Now(),
		}
		run.Device, _ = ctrl.UUID()

		job, err := tasker.PostTask(entry, override)
		if err != nil {
			return err
		}
		st, waitErr := waitTask(ctx, job, runTimeout)
		run.Duration = time.Since(run.Started)
		run.Status = st.String()
		if waitErr != nil {
			run.Error = waitErr.Error()
		}

		detail, err := job.Detail()
		if err != nil {
			slog.Warn("maactl: task detail unavailable", "task", job.ID(), "error", err)
		} else {
			run.FromDetail(detail)
			// The detail may lag the job status after a cancel.
			run.Status = st.String()
		}

		if runScreenshot {
			loc, err := saveScreenshot(ctx, p, ctrl, run.ID)
			if err != nil {
				slog.Warn("maactl: screenshot failed", "error", err)
			} else {
				run.Artifact = loc
			}
		}
		if fault := tasker.LastFault(); fault != nil && run.Error == "" {
			run.Error = fault.Error()
		}

		if !runNoHistory {
			if err := recordRun(cmd.Context(), p, run); err != nil {
				slog.Warn("maactl: history not recorded", "error", err)
			}
		}

		if structured() {
			if err := printResult(cmd, runResult{Run: run, Detail: detail}); err != nil {
				return err
			}
		} else {
			printRun(cmd, run)
		}

		if waitErr != nil {
			return waitErr
		}
		if !st.Succeeded() {
			return fmt.Errorf("task %s %s", entry, st)
		}
		return nil
	},
}

// waitTask waits for job, stopping it when ctx ends or timeout expires.
func waitTask(ctx context.Context, job *maa.TaskJob, timeout time.Duration) (maa.Status, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	st, err := job.WaitContext(ctx)
	if !errors.Is(err, maa.ErrTimeout) {
		return st, err
	}
	slog.Info("maactl: stopping task", "task", job.ID(), "reason", context.Cause(ctx))
	if cerr := job.Cancel(); cerr != nil {
		return st, errors.Join(err, cerr)
	}
	st, werr := job.Wait()
	if werr != nil {
		return st, werr
	}
	return st, nil
}

func saveScreenshot(ctx context.Context, p *cli.Profile, ctrl *maa.Controller, runID string) (string, error) {
	store, err := openArtifacts(p)
	if err != nil {
		return "", err
	}
	return screenshot(ctx, ctrl, store, runID)
}

func recordRun(ctx context.Context, p *cli.Profile, run *history.Run) error {
	h, err := openHistory(p)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.Put(ctx, run)
}

func logEvent(ev maa.Event) {
	slog.Debug("maa: "+ev.Message, "handle", ev.Handle, "details", string(ev.Details))
}

// printRun writes a human-readable run summary.
func printRun(cmd *cobra.Command, run *history.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s in %s\n",
		styles.Title.Render(run.Entry),
		styles.Help.Render(cli.ShortID(run.ID)),
		styles.Status(run.Status),
		cli.FormatDuration(run.Duration))
	if run.Device != "" {
		styles.PrintInfo(out, "device %s", run.Device)
	}
	if len(run.Nodes) > 0 {
		rows := make([]cli.Row, 0, len(run.Nodes))
		for _, n := range run.Nodes {
			rows = append(rows, cli.Row{n.Name, n.Algorithm, yesNo(n.Hit), n.Action, yesNo(n.Success)})
		}
		styles.Table(out, cli.Row{"NODE", "RECOGNITION", "HIT", "ACTION", "OK"}, rows)
	}
	if run.Artifact != "" {
		styles.PrintSuccess(out, "screenshot saved to %s", run.Artifact)
	}
	if run.Error != "" {
		styles.PrintFailure(out, "%s", run.Error)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVarP(&runBundles, "bundle", "b", nil, "resource bundle directory, repeatable (default: profile bundles)")
	f.StringVarP(&runOverride, "override", "f", "", "pipeline override file, YAML or JSON ('-' for stdin)")
	f.DurationVar(&runTimeout, "timeout", 0, "stop the task after this long (0 waits forever)")
	f.BoolVar(&runScreenshot, "screenshot", false, "store a screenshot after the task")
	f.BoolVar(&runNoHistory, "no-history", false, "do not record the run")
	f.StringVar(&deviceAdbPath, "adb", "", "adb executable (overrides the profile)")
	f.StringVar(&deviceAddress, "address", "", "device address (overrides the profile)")
	f.DurationVar(&connectWait, "connect-timeout", 30*time.Second, "give up connecting after this long")
	rootCmd.AddCommand(runCmd)
}
