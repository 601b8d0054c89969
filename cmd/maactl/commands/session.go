package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/maafw/pkg/artifact"
	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/history"
	"github.com/haivivi/maafw/pkg/maa"
)

// Device flags shared by run and screencap. They override the profile.
var (
	deviceAdbPath string
	deviceAddress string
	connectWait   time.Duration
)

// loadLibrary loads MaaFramework once per process and applies the
// profile's global options.
func loadLibrary(p *cli.Profile) error {
	if !maa.Loaded() {
		err := maa.LoadLibrary(p.Library)
		if err != nil && !errors.Is(err, maa.ErrAlreadyLoaded) {
			return err
		}
		slog.Debug("maactl: library loaded", "path", p.Library)
	}
	if p.LogDir != "" {
		if err := maa.SetLogDir(p.LogDir); err != nil {
			return err
		}
	}
	level := maa.LogOff
	if verbose {
		level = maa.LogInfo
	}
	return maa.SetStdoutLevel(level)
}

// connect builds the adb controller of p and waits for the connection.
func connect(ctx context.Context, p *cli.Profile) (*maa.Controller, error) {
	cfg := maa.AdbConfig{
		AdbPath:   p.AdbPath,
		Address:   p.AdbAddress,
		Screencap: maa.AdbScreencapMethod(p.ScreencapMethods),
		Input:     maa.AdbInputMethod(p.InputMethods),
	}
	if p.AdbConfig != "" {
		cfg.Config = p.AdbConfig
	}
	if deviceAdbPath != "" {
		cfg.AdbPath = deviceAdbPath
	}
	if deviceAddress != "" {
		cfg.Address = deviceAddress
	}
	if cfg.AdbPath == "" {
		cfg.AdbPath = "adb"
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("no device address: set adb_address in profile %q or pass --address", p.Name)
	}

	ctrl, err := maa.NewAdbController(cfg)
	if err != nil {
		return nil, err
	}
	if connectWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectWait)
		defer cancel()
	}
	job, err := ctrl.PostConnection()
	if err == nil {
		var st maa.Status
		st, err = job.WaitContext(ctx)
		if err == nil && !st.Succeeded() {
			err = fmt.Errorf("connect %s: %s", cfg.Address, st)
		}
	}
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	slog.Debug("maactl: connected", "address", cfg.Address)
	return ctrl, nil
}

// loadResource loads every bundle in order.
func loadResource(ctx context.Context, bundles []string) (*maa.Resource, error) {
	if len(bundles) == 0 {
		return nil, fmt.Errorf("no resource bundle: set bundles in the profile or pass --bundle")
	}
	res, err := maa.NewResource()
	if err != nil {
		return nil, err
	}
	for _, dir := range bundles {
		job, err := res.PostBundle(dir)
		if err == nil {
			var st maa.Status
			st, err = job.WaitContext(ctx)
			if err == nil && !st.Succeeded() {
				err = fmt.Errorf("load bundle %s: %s", dir, st)
			}
		}
		if err != nil {
			res.Close()
			return nil, err
		}
		slog.Debug("maactl: bundle loaded", "dir", dir)
	}
	return res, nil
}

func openHistory(p *cli.Profile) (*history.Store, error) {
	dir := p.HistoryDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		dir = paths.HistoryDir(p.Name)
	}
	return history.Open(history.Options{Dir: dir})
}

func openArtifacts(p *cli.Profile) (artifact.Store, error) {
	if p.Artifacts != nil {
		cfg := *p.Artifacts
		if (cfg.Kind == "" || cfg.Kind == "local") && cfg.Dir == "" {
			paths, err := cli.NewPaths(appName)
			if err != nil {
				return nil, err
			}
			cfg.Dir = paths.ArtifactDir(p.Name)
		}
		return artifact.Open(cfg)
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, err
	}
	return artifact.NewLocal(paths.ArtifactDir(p.Name))
}

// screenshot captures the screen and stores it under the run's key.
func screenshot(ctx context.Context, ctrl *maa.Controller, store artifact.Store, runID string) (string, error) {
	job, err := ctrl.PostScreencap()
	if err != nil {
		return "", err
	}
	st, err := job.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !st.Succeeded() {
		return "", fmt.Errorf("screencap: %s", st)
	}
	img, err := ctrl.CachedImage()
	if err != nil {
		return "", err
	}
	key := artifact.RunKey(runID, "screen.png")
	if err := artifact.SaveImage(ctx, store, key, img); err != nil {
		return "", err
	}
	return store.Location(key), nil
}
