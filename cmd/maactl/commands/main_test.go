package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/maa/maatest"
)

var engine *maatest.Engine

func TestMain(m *testing.M) {
	e, err := maatest.Install()
	if err != nil {
		fmt.Fprintln(os.Stderr, "install engine:", err)
		os.Exit(1)
	}
	engine = e
	os.Exit(m.Run())
}

// setupEnv points HOME at a temp dir and writes a config holding p as the
// current profile "test". It returns the config path.
func setupEnv(t *testing.T, p *cli.Profile) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "maactl.yaml")
	cfg, err := cli.LoadConfigWithPath(appName, path)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		if err := cfg.AddProfile("test", p); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

// writeBundle creates a resource bundle whose pipeline is doc.
func writeBundle(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pipeline"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pipeline", "main.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runMaactl(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	resetFlags(rootCmd)
	return out.String(), errOut.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
			return
		}
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
