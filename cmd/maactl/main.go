// Command maactl drives MaaFramework from the terminal.
//
// Usage:
//
//	maactl [flags] <command> [subcommand] [args]
//
// Commands:
//
//	config     - Profiles (library path, device, bundles, artifact store)
//	devices    - Discover adb devices and desktop windows
//	run        - Run a pipeline task and record it in history
//	screencap  - Capture the device screen
//	history    - Inspect recorded runs
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/maafw/cmd/maactl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
