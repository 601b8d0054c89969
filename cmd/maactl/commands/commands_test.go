package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/maafw/cmd/maactl/internal/build"
	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/history"
	"github.com/haivivi/maafw/pkg/maa/maatest"
	"github.com/haivivi/maafw/pkg/maa/native"
)

const twoNodes = `{"Start": {"next": ["End"]}, "End": {}}`

func TestVersion(t *testing.T) {
	setupEnv(t, nil)
	stdout, _, err := runMaactl(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, "maactl dev") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, maatest.Version) {
		t.Errorf("library version missing: %q", stdout)
	}
}

func TestVersion_JSON(t *testing.T) {
	path := setupEnv(t, &cli.Profile{})
	stdout, _, err := runMaactl(t, "--config", path, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info build.Info
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("not JSON: %q", stdout)
	}
	if info.Version != "dev" || info.Library != maatest.Version {
		t.Errorf("info = %+v", info)
	}
}

func TestRoot_BadOutputFormat(t *testing.T) {
	setupEnv(t, nil)
	if _, _, err := runMaactl(t, "version", "-o", "table"); err == nil {
		t.Fatal("unsupported format accepted")
	}
}

func TestConfigCommands(t *testing.T) {
	path := setupEnv(t, nil)

	stdout, _, err := runMaactl(t, "--config", path, "config", "list")
	if err != nil || !strings.Contains(stdout, "No profiles") {
		t.Fatalf("empty list = %q, %v", stdout, err)
	}

	_, _, err = runMaactl(t, "--config", path, "config", "add-profile", "emu",
		"--address", "127.0.0.1:5555", "--bundle", "/res/a", "--bundle", "/res/b",
		"--s3-bucket", "shots", "--s3-secret-key", "supersecretvalue")
	if err != nil {
		t.Fatalf("add-profile emu: %v", err)
	}
	if _, _, err := runMaactl(t, "--config", path, "config", "add-profile", "phone", "--address", "R58M"); err != nil {
		t.Fatalf("add-profile phone: %v", err)
	}

	stdout, _, err = runMaactl(t, "--config", path, "config", "list", "-o", "raw", "-q", ".[] | select(.current) | .name")
	if err != nil || stdout != "emu\n" {
		t.Errorf("current profile = %q, %v", stdout, err)
	}

	if _, _, err := runMaactl(t, "--config", path, "config", "use", "phone"); err != nil {
		t.Fatalf("use: %v", err)
	}
	cfg, _ := cli.LoadConfigWithPath(appName, path)
	if cfg.CurrentProfile != "phone" {
		t.Errorf("current = %q", cfg.CurrentProfile)
	}
	emu := cfg.Profiles["emu"]
	if !slices.Equal(emu.Bundles, []string{"/res/a", "/res/b"}) || emu.Artifacts == nil || emu.Artifacts.S3.Bucket != "shots" {
		t.Errorf("emu = %+v", emu)
	}

	stdout, _, err = runMaactl(t, "--config", path, "config", "show", "emu", "-o", "json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.Contains(stdout, "supersecretvalue") || !strings.Contains(stdout, "supe********alue") {
		t.Errorf("secret not masked: %s", stdout)
	}

	if _, _, err := runMaactl(t, "--config", path, "config", "delete", "emu"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := runMaactl(t, "--config", path, "config", "use", "emu"); err == nil {
		t.Error("use of deleted profile succeeded")
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	path := setupEnv(t, &cli.Profile{
		AdbAddress: "127.0.0.1:5555",
		Bundles:    []string{writeBundle(t, twoNodes)},
	})

	stdout, _, err := runMaactl(t, "--config", path, "run", "Start", "--screenshot", "-o", "json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res struct {
		Run    history.Run `json:"run"`
		Detail struct {
			Status string `json:"status"`
		} `json:"detail"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("not JSON: %q", stdout)
	}
	run := res.Run
	if run.Status != "succeeded" || res.Detail.Status != "succeeded" {
		t.Errorf("status = %q / %q", run.Status, res.Detail.Status)
	}
	if run.Device != "adb:127.0.0.1:5555" || run.Profile != "test" {
		t.Errorf("run = %+v", run)
	}
	var names []string
	for _, n := range run.Nodes {
		names = append(names, n.Name)
	}
	if !slices.Equal(names, []string{"Start", "End"}) {
		t.Errorf("nodes = %v", names)
	}
	data, err := os.ReadFile(run.Artifact)
	if err != nil {
		t.Fatalf("screenshot: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("screenshot is not a PNG")
	}

	stdout, _, err = runMaactl(t, "--config", path, "history", "list", "-o", "json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []history.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("not JSON: %q", stdout)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("history = %+v", runs)
	}

	stdout, _, err = runMaactl(t, "--config", path, "history", "show", run.ID[:13], "-o", "raw", "-q", ".entry")
	if err != nil || stdout != "Start\n" {
		t.Errorf("history show = %q, %v", stdout, err)
	}

	if _, _, err := runMaactl(t, "--config", path, "history", "delete", run.ID); err != nil {
		t.Fatalf("history delete: %v", err)
	}
	stdout, _, _ = runMaactl(t, "--config", path, "history", "list")
	if !strings.Contains(stdout, "No runs") {
		t.Errorf("list after delete = %q", stdout)
	}
}

func TestRun_Override(t *testing.T) {
	path := setupEnv(t, &cli.Profile{
		AdbAddress: "127.0.0.1:5555",
		Bundles:    []string{writeBundle(t, twoNodes)},
	})
	override := filepath.Join(t.TempDir(), "override.yaml")
	os.WriteFile(override, []byte("Start:\n  next: [Other]\nOther: {}\n"), 0o644)

	stdout, _, err := runMaactl(t, "--config", path, "run", "Start", "--override", override,
		"--no-history", "-o", "raw", "-q", ".run.nodes[].name")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "Start\nOther\n" {
		t.Errorf("nodes = %q", stdout)
	}

	stdout, _, _ = runMaactl(t, "--config", path, "history", "list", "-o", "json")
	if strings.TrimSpace(stdout) != "null" {
		t.Errorf("--no-history recorded a run: %s", stdout)
	}
}

func TestRun_VerboseSinkRejected(t *testing.T) {
	path := setupEnv(t, &cli.Profile{
		AdbAddress: "127.0.0.1:5555",
		Bundles:    []string{writeBundle(t, twoNodes)},
	})
	l, err := native.Current()
	if err != nil {
		t.Fatal(err)
	}
	orig := l.MaaTaskerAddContextSink
	l.MaaTaskerAddContextSink = func(tasker, sink, arg uintptr) int64 { return native.InvalidID }
	t.Cleanup(func() { l.MaaTaskerAddContextSink = orig })

	_, stderr, err := runMaactl(t, "--config", path, "-v", "run", "Start", "--no-history")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "event logging unavailable") {
		t.Errorf("stderr = %q, want a warning", stderr)
	}
}

func TestRun_FailedTask(t *testing.T) {
	path := setupEnv(t, &cli.Profile{
		AdbAddress: "127.0.0.1:5555",
		Bundles:    []string{writeBundle(t, twoNodes)},
	})
	stdout, _, err := runMaactl(t, "--config", path, "run", "Missing")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("err = %v, want a failed task", err)
	}
	if !strings.Contains(stdout, "failed") {
		t.Errorf("summary = %q", stdout)
	}

	stdout, _, _ = runMaactl(t, "--config", path, "history", "list", "-o", "raw", "-q", ".[0].status")
	if stdout != "failed\n" {
		t.Errorf("recorded status = %q", stdout)
	}
}

func TestRun_NeedsProfileAndDevice(t *testing.T) {
	path := setupEnv(t, nil)
	if _, _, err := runMaactl(t, "--config", path, "run", "Start"); err == nil || !strings.Contains(err.Error(), "no profile") {
		t.Errorf("no profile: err = %v", err)
	}

	path = setupEnv(t, &cli.Profile{Bundles: []string{writeBundle(t, twoNodes)}})
	if _, _, err := runMaactl(t, "--config", path, "run", "Start"); err == nil || !strings.Contains(err.Error(), "no device address") {
		t.Errorf("no address: err = %v", err)
	}
	// --address fills in for the profile.
	if _, _, err := runMaactl(t, "--config", path, "run", "Start", "--address", "emulator-5554", "--no-history"); err != nil {
		t.Errorf("run with --address: %v", err)
	}

	path = setupEnv(t, &cli.Profile{AdbAddress: "x"})
	if _, _, err := runMaactl(t, "--config", path, "run", "Start"); err == nil || !strings.Contains(err.Error(), "no resource bundle") {
		t.Errorf("no bundle: err = %v", err)
	}
}

func TestScreencap(t *testing.T) {
	path := setupEnv(t, &cli.Profile{AdbAddress: "127.0.0.1:5555"})
	file := filepath.Join(t.TempDir(), "screen.png")

	stdout, _, err := runMaactl(t, "--config", path, "screencap", "--file", file, "-o", "json")
	if err != nil {
		t.Fatalf("screencap: %v", err)
	}
	var res screencapResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("not JSON: %q", stdout)
	}
	if res.Width != maatest.ScreenWidth || res.Height != maatest.ScreenHeight || res.Location != file {
		t.Errorf("result = %+v", res)
	}
	if data, err := os.ReadFile(file); err != nil || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("file: %v", err)
	}

	stdout, _, err = runMaactl(t, "--config", path, "screencap", "-o", "raw", "-q", ".location")
	if err != nil {
		t.Fatalf("screencap to store: %v", err)
	}
	loc := strings.TrimSpace(stdout)
	if !strings.Contains(filepath.ToSlash(loc), "artifacts/test/captures/") {
		t.Errorf("location = %q", loc)
	}
	if _, err := os.Stat(loc); err != nil {
		t.Errorf("stored screenshot: %v", err)
	}
}

func TestDevices(t *testing.T) {
	setupEnv(t, nil)
	engine.SetAdbDevices(maatest.AdbDevice{
		Name: "Pixel", AdbPath: "/usr/bin/adb", Address: "R58M", Screencap: 1, Input: 1, Config: "{}",
	})
	engine.SetDesktopWindows(maatest.DesktopWindow{HWnd: 0x1234, ClassName: "Chrome_WidgetWin_1", Name: "Game"})
	t.Cleanup(func() {
		engine.SetAdbDevices()
		engine.SetDesktopWindows()
	})

	stdout, _, err := runMaactl(t, "devices", "adb")
	if err != nil {
		t.Fatalf("devices adb: %v", err)
	}
	if !strings.Contains(stdout, "Pixel") || !strings.Contains(stdout, "R58M") {
		t.Errorf("adb table = %q", stdout)
	}

	stdout, _, err = runMaactl(t, "devices", "adb", "-o", "raw", "-q", ".[].address")
	if err != nil || stdout != "R58M\n" {
		t.Errorf("adb query = %q, %v", stdout, err)
	}

	stdout, _, err = runMaactl(t, "devices", "win32")
	if err != nil {
		t.Fatalf("devices win32: %v", err)
	}
	if !strings.Contains(stdout, "0x1234") || !strings.Contains(stdout, "Game") {
		t.Errorf("win32 table = %q", stdout)
	}
}
